package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Direction carries the sign of a transaction; amounts are always positive.
type Direction string

const (
	DirectionEarn  Direction = "EARN"
	DirectionSpend Direction = "SPEND"
)

// Source tags the action that produced a transaction.
type Source string

const (
	SourceSurveyComplete   Source = "survey_complete"
	SourceSurveyCreate     Source = "survey_create"
	SourceTemplateCreate   Source = "template_create"
	SourceTemplatePurchase Source = "template_purchase"
	SourceTemplateSale     Source = "template_sale"
	SourceDailyLogin       Source = "daily_login"
	SourceSignupBonus      Source = "signup_bonus"
)

const (
	ReferenceTypeUser     = "user"
	ReferenceTypeResponse = "response"
	ReferenceTypeSurvey   = "survey"
	ReferenceTypeTemplate = "template"
	ReferenceTypePurchase = "purchase"
)

// Account is the balance embedded in the user record. It is only mutated by
// the ledger service.
type Account struct {
	UserID         int64     `gorm:"column:id;primaryKey" json:"user_id"`
	Role           string    `gorm:"type:text;not null" json:"role"`
	Points         int64     `gorm:"not null;check:points >= 0" json:"points"`
	Level          int       `gorm:"not null" json:"level"`
	LifetimeEarned int64     `gorm:"not null" json:"lifetime_earned"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "users" }

// Transaction is an immutable ledger row.
type Transaction struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID        int64             `gorm:"not null;uniqueIndex:ux_point_transactions_reference,priority:1;index:ix_point_transactions_user_created,priority:1" json:"user_id"`
	Direction     Direction         `gorm:"type:text;not null" json:"direction"`
	Amount        int64             `gorm:"not null;check:amount > 0" json:"amount"`
	BalanceAfter  int64             `gorm:"not null;check:balance_after >= 0" json:"balance_after"`
	Source        Source            `gorm:"type:text;not null;uniqueIndex:ux_point_transactions_reference,priority:2" json:"source"`
	ReferenceID   *string           `gorm:"type:text;uniqueIndex:ux_point_transactions_reference,priority:3" json:"reference_id,omitempty"`
	ReferenceType *string           `gorm:"type:text" json:"reference_type,omitempty"`
	Description   string            `gorm:"type:text;not null" json:"description"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index:ix_point_transactions_user_created,priority:2" json:"created_at"`
}

func (Transaction) TableName() string { return "point_transactions" }

// SignedAmount returns the balance delta of the transaction.
func (t Transaction) SignedAmount() int64 {
	if t.Direction == DirectionSpend {
		return -t.Amount
	}
	return t.Amount
}

// Rule maps an action to a point amount, eligibility conditions and caps.
// DailyLimit and TotalLimit are point ceilings per user.
type Rule struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"column:rule_name;type:text;not null;uniqueIndex" json:"rule_name"`
	Type        Direction      `gorm:"column:rule_type;type:text;not null" json:"rule_type"`
	Action      Source         `gorm:"type:text;not null;index" json:"action"`
	Points      int64          `gorm:"not null" json:"points"`
	Conditions  datatypes.JSON `json:"conditions,omitempty"`
	DailyLimit  *int64         `json:"daily_limit,omitempty"`
	TotalLimit  *int64         `json:"total_limit,omitempty"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	Description string         `gorm:"type:text;not null" json:"description"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Rule) TableName() string { return "point_rules" }

// Totals aggregates a user's transaction log.
type Totals struct {
	Earned int64
	Spent  int64
	Count  int64
}

// HistoryFilter narrows a history query.
type HistoryFilter struct {
	Source    Source
	Direction Direction
}
