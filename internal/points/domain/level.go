package domain

// Level is a tier reached by cumulative lifetime earned points.
type Level struct {
	Level     int      `json:"level"`
	MinPoints int64    `json:"min_points"`
	Benefits  []string `json:"benefits"`
}

var levels = []Level{
	{Level: 1, MinPoints: 0, Benefits: []string{"basic features"}},
	{Level: 2, MinPoints: 500, Benefits: []string{"basic features", "premium templates"}},
	{Level: 3, MinPoints: 1500, Benefits: []string{"basic features", "premium templates", "ai analysis"}},
	{Level: 4, MinPoints: 3000, Benefits: []string{"basic features", "premium templates", "ai analysis", "priority support"}},
	{Level: 5, MinPoints: 6000, Benefits: []string{"all features", "dedicated support", "custom services"}},
}

// Levels returns a copy of the level table in ascending order.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// LevelFor derives the level from lifetime earned points. Spending never
// lowers a level.
func LevelFor(lifetimeEarned int64) int {
	current := levels[0].Level
	for _, l := range levels {
		if lifetimeEarned >= l.MinPoints {
			current = l.Level
		}
	}
	return current
}
