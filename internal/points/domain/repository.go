package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/quorum/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) (bool, error)
	FindAccount(ctx context.Context, db *gorm.DB, userID int64) (*Account, error)
	// LockAccount reads the account with a row lock where the dialect supports one.
	LockAccount(ctx context.Context, db *gorm.DB, userID int64) (*Account, error)
	// UpdateBalance writes next only if the stored balance still equals expectedPoints.
	UpdateBalance(ctx context.Context, db *gorm.DB, next *Account, expectedPoints int64) (bool, error)

	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	FindTransactionByReference(ctx context.Context, db *gorm.DB, userID int64, source Source, referenceID string) (*Transaction, error)
	ListTransactions(ctx context.Context, db *gorm.DB, userID int64, filter HistoryFilter, page pagination.Pagination) ([]Transaction, error)
	CountTransactions(ctx context.Context, db *gorm.DB, userID int64, filter HistoryFilter) (int64, error)
	SumEarned(ctx context.Context, db *gorm.DB, userID int64, source Source, since *time.Time) (int64, error)
	SumEarnedBySource(ctx context.Context, db *gorm.DB, userID int64, since time.Time) (map[Source]int64, error)
	Totals(ctx context.Context, db *gorm.DB, userID int64) (Totals, error)

	FindActiveRule(ctx context.Context, db *gorm.DB, action Source, ruleType Direction) (*Rule, error)
	ListActiveRules(ctx context.Context, db *gorm.DB) ([]Rule, error)
	UpsertRule(ctx context.Context, db *gorm.DB, rule *Rule) error
}
