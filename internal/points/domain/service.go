package domain

import (
	"context"

	"github.com/smallbiznis/quorum/pkg/db/pagination"
)

type OpenAccountRequest struct {
	UserID int64
	Role   string
}

type ApplyTransactionRequest struct {
	UserID        int64
	Direction     Direction
	Amount        int64
	Source        Source
	ReferenceID   string
	ReferenceType string
	Description   string
	Metadata      map[string]any
}

type AwardStatus string

const (
	AwardApplied AwardStatus = "applied"
	AwardSkipped AwardStatus = "skipped"
)

type SkipReason string

const (
	SkipRuleNotFound   SkipReason = "rule_not_found"
	SkipConditionUnmet SkipReason = "condition_unmet"
	SkipDuplicate      SkipReason = "duplicate"
	SkipCapReached     SkipReason = "cap_reached"
)

// AwardRequest fires the rule bound to Action. A positive Amount overrides the
// rule's configured points.
type AwardRequest struct {
	UserID        int64
	Action        Source
	ReferenceID   string
	ReferenceType string
	Description   string
	Amount        int64
	Facts         Facts
	Metadata      map[string]any
}

// AwardResult is either an applied transaction or a skip with its reason.
// Skips are not errors.
type AwardResult struct {
	Status      AwardStatus  `json:"status"`
	Reason      SkipReason   `json:"reason,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

func (r AwardResult) Applied() bool { return r.Status == AwardApplied }

type Answer struct {
	QuestionID string
	Type       string
	Text       string
}

type SurveyCompletionRequest struct {
	UserID        int64
	ResponseID    string
	SurveyTitle   string
	QuestionCount int
	Answers       []Answer
}

type PurchaseTemplateRequest struct {
	BuyerID    int64
	CreatorID  int64
	TemplateID string
	PurchaseID string
	Title      string
	Price      int64
}

type PurchaseResult struct {
	Purchase    Transaction  `json:"purchase"`
	Sale        *Transaction `json:"sale,omitempty"`
	CreatorEarn int64        `json:"creator_earn"`
}

type HistoryRequest struct {
	UserID    int64
	Page      int
	PageSize  int
	Source    Source
	Direction Direction
}

type HistoryPage struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Summary struct {
	UserID           int64 `json:"user_id"`
	CurrentBalance   int64 `json:"current_balance"`
	CurrentLevel     int   `json:"current_level"`
	LifetimeEarned   int64 `json:"lifetime_earned"`
	LifetimeSpent    int64 `json:"lifetime_spent"`
	TransactionCount int64 `json:"transaction_count"`
	NextLevelAt      int64 `json:"next_level_at,omitempty"`
}

type RuleUsage struct {
	Rule
	DailyUsed      int64  `json:"daily_used"`
	DailyRemaining *int64 `json:"daily_remaining"`
}

type RuleCatalog struct {
	EarnRules  []RuleUsage `json:"earn_rules"`
	SpendRules []Rule      `json:"spend_rules"`
	Levels     []Level     `json:"levels"`
}

type Service interface {
	OpenAccount(context.Context, OpenAccountRequest) (Account, error)
	ApplyTransaction(context.Context, ApplyTransactionRequest) (Transaction, error)
	AwardForAction(context.Context, AwardRequest) (AwardResult, error)
	AwardSurveyCompletion(context.Context, SurveyCompletionRequest) (AwardResult, error)
	PurchaseTemplate(context.Context, PurchaseTemplateRequest) (PurchaseResult, error)
	GetHistory(context.Context, HistoryRequest) (HistoryPage, error)
	GetSummary(ctx context.Context, userID int64) (Summary, error)
	ListRules(ctx context.Context, userID int64) (RuleCatalog, error)
}
