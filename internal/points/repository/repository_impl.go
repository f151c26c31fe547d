package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/quorum/internal/points/domain"
	dbpkg "github.com/smallbiznis/quorum/pkg/db"
	"github.com/smallbiznis/quorum/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(account)
	return inserted(result)
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, userID int64) (*domain.Account, error) {
	var account domain.Account
	result := db.WithContext(ctx).
		Where("id = ?", userID).
		Limit(1).
		Find(&account)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) LockAccount(ctx context.Context, db *gorm.DB, userID int64) (*domain.Account, error) {
	var account domain.Account
	result := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		Limit(1).
		Find(&account)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, next *domain.Account, expectedPoints int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET points = ?, level = ?, lifetime_earned = ?, updated_at = ?
		 WHERE id = ? AND points = ?`,
		next.Points,
		next.Level,
		next.LifetimeEarned,
		next.UpdatedAt,
		next.UserID,
		expectedPoints,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(txn)
	return inserted(result)
}

// inserted reports whether a DoNothing insert wrote a row. Dialects that still
// surface the unique violation are read as a no-op.
func inserted(result *gorm.DB) (bool, error) {
	if result.Error != nil {
		if dbpkg.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindTransactionByReference(ctx context.Context, db *gorm.DB, userID int64, source domain.Source, referenceID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	result := db.WithContext(ctx).
		Where("user_id = ? AND source = ? AND reference_id = ?", userID, source, referenceID).
		Limit(1).
		Find(&txn)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, userID int64, filter domain.HistoryFilter, page pagination.Pagination) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	err := applyHistoryFilter(db.WithContext(ctx).Model(&domain.Transaction{}), userID, filter).
		Order("created_at desc, id desc").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) CountTransactions(ctx context.Context, db *gorm.DB, userID int64, filter domain.HistoryFilter) (int64, error) {
	var total int64
	err := applyHistoryFilter(db.WithContext(ctx).Model(&domain.Transaction{}), userID, filter).
		Count(&total).Error
	return total, err
}

func applyHistoryFilter(stmt *gorm.DB, userID int64, filter domain.HistoryFilter) *gorm.DB {
	stmt = stmt.Where("user_id = ?", userID)
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", filter.Source)
	}
	if filter.Direction != "" {
		stmt = stmt.Where("direction = ?", filter.Direction)
	}
	return stmt
}

func (r *repo) SumEarned(ctx context.Context, db *gorm.DB, userID int64, source domain.Source, since *time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM point_transactions
		 WHERE user_id = ? AND source = ? AND direction = ?`
	args := []any{userID, source, domain.DirectionEarn}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}

	var total int64
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) SumEarnedBySource(ctx context.Context, db *gorm.DB, userID int64, since time.Time) (map[domain.Source]int64, error) {
	var rows []struct {
		Source domain.Source
		Total  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT source, COALESCE(SUM(amount), 0) AS total
		 FROM point_transactions
		 WHERE user_id = ? AND direction = ? AND created_at >= ?
		 GROUP BY source`,
		userID,
		domain.DirectionEarn,
		since.UTC(),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[domain.Source]int64, len(rows))
	for _, row := range rows {
		out[row.Source] = row.Total
	}
	return out, nil
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, userID int64) (domain.Totals, error) {
	var totals domain.Totals
	err := db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS earned,
			COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS spent,
			COUNT(*) AS count
		 FROM point_transactions
		 WHERE user_id = ?`,
		domain.DirectionEarn,
		domain.DirectionSpend,
		userID,
	).Scan(&totals).Error
	return totals, err
}

func (r *repo) FindActiveRule(ctx context.Context, db *gorm.DB, action domain.Source, ruleType domain.Direction) (*domain.Rule, error) {
	var rule domain.Rule
	result := db.WithContext(ctx).
		Where("action = ? AND rule_type = ? AND is_active = ?", action, ruleType, true).
		Order("id asc").
		Limit(1).
		Find(&rule)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) ListActiveRules(ctx context.Context, db *gorm.DB) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("rule_type asc, rule_name asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) UpsertRule(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rule_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"rule_type",
				"action",
				"points",
				"conditions",
				"daily_limit",
				"total_limit",
				"is_active",
				"description",
				"updated_at",
			}),
		}).
		Create(rule).Error
}
