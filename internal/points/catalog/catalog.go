package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// RuleSpec is the file representation of a reward rule.
type RuleSpec struct {
	Name        string         `mapstructure:"name"`
	Type        string         `mapstructure:"type"`
	Action      string         `mapstructure:"action"`
	Points      int64          `mapstructure:"points"`
	Conditions  map[string]any `mapstructure:"conditions"`
	DailyLimit  *int64         `mapstructure:"daily_limit"`
	TotalLimit  *int64         `mapstructure:"total_limit"`
	Active      *bool          `mapstructure:"active"`
	Description string         `mapstructure:"description"`
}

type Catalog struct {
	Rules []RuleSpec `mapstructure:"rules"`
}

func int64Ptr(v int64) *int64 { return &v }

// Default returns the built-in reward rules used when no rewards file exists.
func Default() Catalog {
	return Catalog{Rules: []RuleSpec{
		{
			Name:        "survey_complete",
			Type:        string(domain.DirectionEarn),
			Action:      string(domain.SourceSurveyComplete),
			Points:      20,
			Conditions:  map[string]any{"min_questions": 3},
			DailyLimit:  int64Ptr(200),
			Description: "Completed a survey",
		},
		{
			Name:        "survey_create",
			Type:        string(domain.DirectionEarn),
			Action:      string(domain.SourceSurveyCreate),
			Points:      50,
			Conditions:  map[string]any{"min_questions": 5},
			DailyLimit:  int64Ptr(500),
			Description: "Published a survey",
		},
		{
			Name:        "template_create",
			Type:        string(domain.DirectionEarn),
			Action:      string(domain.SourceTemplateCreate),
			Points:      100,
			Conditions:  map[string]any{"require_public": true, "require_free": true},
			Description: "Shared a free public template",
		},
		{
			Name:        "daily_login",
			Type:        string(domain.DirectionEarn),
			Action:      string(domain.SourceDailyLogin),
			Points:      5,
			DailyLimit:  int64Ptr(5),
			Description: "Daily login",
		},
		{
			Name:        "signup_bonus",
			Type:        string(domain.DirectionEarn),
			Action:      string(domain.SourceSignupBonus),
			Points:      100,
			TotalLimit:  int64Ptr(100),
			Description: "Welcome bonus",
		},
		{
			Name:        "template_purchase",
			Type:        string(domain.DirectionSpend),
			Action:      string(domain.SourceTemplatePurchase),
			Points:      100,
			Description: "Template purchase",
		},
	}}
}

// Validate rejects catalogs that could not be applied to the rules table.
func Validate(c Catalog) error {
	if len(c.Rules) == 0 {
		return errors.New("rewards.rules cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Rules))
	for i, r := range c.Rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("rewards.rules[%d]: name is required", i)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("rewards.rules[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}

		switch domain.Direction(strings.ToUpper(strings.TrimSpace(r.Type))) {
		case domain.DirectionEarn, domain.DirectionSpend:
		default:
			return fmt.Errorf("rewards.rules[%d]: unknown type %q", i, r.Type)
		}
		if strings.TrimSpace(r.Action) == "" {
			return fmt.Errorf("rewards.rules[%d]: action is required", i)
		}
		if r.Points <= 0 {
			return fmt.Errorf("rewards.rules[%d]: points must be positive", i)
		}
		if r.DailyLimit != nil && *r.DailyLimit <= 0 {
			return fmt.Errorf("rewards.rules[%d]: daily_limit must be positive", i)
		}
		if r.TotalLimit != nil && *r.TotalLimit <= 0 {
			return fmt.Errorf("rewards.rules[%d]: total_limit must be positive", i)
		}
		if _, err := conditionsJSON(r.Conditions); err != nil {
			return fmt.Errorf("rewards.rules[%d]: %w", i, err)
		}
	}
	return nil
}

func conditionsJSON(conditions map[string]any) (datatypes.JSON, error) {
	if len(conditions) == 0 {
		return datatypes.JSON("{}"), nil
	}
	raw, err := json.Marshal(conditions)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseConditions(raw); err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// RuleRows converts a validated catalog to rule rows.
func (c Catalog) RuleRows(genID *snowflake.Node, now time.Time) ([]domain.Rule, error) {
	out := make([]domain.Rule, 0, len(c.Rules))
	for _, spec := range c.Rules {
		conditions, err := conditionsJSON(spec.Conditions)
		if err != nil {
			return nil, err
		}
		active := true
		if spec.Active != nil {
			active = *spec.Active
		}
		out = append(out, domain.Rule{
			ID:          genID.Generate(),
			Name:        strings.TrimSpace(spec.Name),
			Type:        domain.Direction(strings.ToUpper(strings.TrimSpace(spec.Type))),
			Action:      domain.Source(strings.TrimSpace(spec.Action)),
			Points:      spec.Points,
			Conditions:  conditions,
			DailyLimit:  spec.DailyLimit,
			TotalLimit:  spec.TotalLimit,
			IsActive:    active,
			Description: strings.TrimSpace(spec.Description),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out, nil
}

// Holder keeps the current catalog and reloads it when the rewards file changes.
type Holder struct {
	current  atomic.Value
	v        *viper.Viper
	fromFile bool
	log      *zap.Logger

	mu        sync.Mutex
	listeners []func(Catalog)
}

// Load reads rewards.yml from path, or from /etc/quorum and the working
// directory when path is empty. A missing file yields the default catalog.
func Load(path string, log *zap.Logger) (*Holder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := viper.New()
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rewards")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/quorum")
		v.AddConfigPath(".")
	}

	holder := &Holder{v: v, log: log.Named("points.catalog")}

	cat := Default()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.log.Info("rewards file not found, using default rules")
	} else {
		holder.fromFile = true
		if err := v.Unmarshal(&cat); err != nil {
			return nil, err
		}
	}
	if err := Validate(cat); err != nil {
		return nil, err
	}
	holder.current.Store(cat)
	return holder, nil
}

func (h *Holder) Get() Catalog {
	return h.current.Load().(Catalog)
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(Catalog)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Watch starts hot reload of the rewards file. It is a no-op for the default catalog.
func (h *Holder) Watch() {
	if !h.fromFile {
		return
	}
	h.v.OnConfigChange(func(e fsnotify.Event) {
		var updated Catalog
		if err := h.v.Unmarshal(&updated); err != nil {
			h.log.Warn("rewards reload failed", zap.Error(err))
			return
		}
		if err := Validate(updated); err != nil {
			h.log.Warn("invalid rewards file ignored", zap.Error(err))
			return
		}
		h.current.Store(updated)
		h.log.Info("rewards reloaded", zap.String("file", e.Name))
		h.notify(updated)
	})
	h.v.WatchConfig()
}

func (h *Holder) notify(c Catalog) {
	h.mu.Lock()
	listeners := append([]func(Catalog){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(c)
	}
}
