package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidateRejects(t *testing.T) {
	valid := RuleSpec{Name: "r", Type: "earn", Action: "a", Points: 1}

	tests := []struct {
		name string
		mod  func(r *RuleSpec)
	}{
		{"missing name", func(r *RuleSpec) { r.Name = " " }},
		{"unknown type", func(r *RuleSpec) { r.Type = "refund" }},
		{"missing action", func(r *RuleSpec) { r.Action = "" }},
		{"zero points", func(r *RuleSpec) { r.Points = 0 }},
		{"zero daily limit", func(r *RuleSpec) { r.DailyLimit = int64Ptr(0) }},
		{"negative total limit", func(r *RuleSpec) { r.TotalLimit = int64Ptr(-1) }},
		{"unknown condition", func(r *RuleSpec) { r.Conditions = map[string]any{"min_votes": 2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mod(&rule)
			assert.Error(t, Validate(Catalog{Rules: []RuleSpec{rule}}))
		})
	}

	assert.Error(t, Validate(Catalog{}))
	assert.Error(t, Validate(Catalog{Rules: []RuleSpec{valid, valid}}))
}

func TestCatalogRules(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inactive := false

	rules, err := Catalog{Rules: []RuleSpec{
		{Name: " weekly ", Type: "earn", Action: "weekly_streak", Points: 15, Conditions: map[string]any{"min_questions": 2}},
		{Name: "retired", Type: "spend", Action: "boost", Points: 5, Active: &inactive},
	}}.RuleRows(node, now)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "weekly", rules[0].Name)
	assert.Equal(t, domain.DirectionEarn, rules[0].Type)
	assert.True(t, rules[0].IsActive)
	assert.JSONEq(t, `{"min_questions":2}`, string(rules[0].Conditions))
	assert.Equal(t, now, rules[0].CreatedAt)

	assert.Equal(t, domain.DirectionSpend, rules[1].Type)
	assert.False(t, rules[1].IsActive)
	assert.JSONEq(t, `{}`, string(rules[1].Conditions))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yml")
	content := `rules:
  - name: daily_login
    type: earn
    action: daily_login
    points: 10
    daily_limit: 10
  - name: template_purchase
    type: spend
    action: template_purchase
    points: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	holder, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	cat := holder.Get()
	require.Len(t, cat.Rules, 2)
	assert.Equal(t, int64(10), cat.Rules[0].Points)
	require.NotNil(t, cat.Rules[0].DailyLimit)
	assert.Equal(t, int64(10), *cat.Rules[0].DailyLimit)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o600))

	_, err := Load(path, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadFallsBackToDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, len(Default().Rules), len(holder.Get().Rules))
}
