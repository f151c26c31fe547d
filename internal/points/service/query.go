package service

import (
	"context"

	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/smallbiznis/quorum/pkg/db/pagination"
)

func (s *Service) GetHistory(ctx context.Context, req domain.HistoryRequest) (domain.HistoryPage, error) {
	if req.UserID <= 0 {
		return domain.HistoryPage{}, domain.ErrInvalidUser
	}

	filter := domain.HistoryFilter{Source: req.Source}
	if req.Direction != "" {
		direction, err := normalizeDirection(req.Direction)
		if err != nil {
			return domain.HistoryPage{}, err
		}
		filter.Direction = direction
	}
	page := pagination.Pagination{Page: req.Page, PageSize: req.PageSize}.Normalize()

	total, err := s.repo.CountTransactions(ctx, s.db, req.UserID, filter)
	if err != nil {
		return domain.HistoryPage{}, err
	}
	txns, err := s.repo.ListTransactions(ctx, s.db, req.UserID, filter, page)
	if err != nil {
		return domain.HistoryPage{}, err
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	return domain.HistoryPage{
		PageInfo:     pagination.BuildPageInfo(page, total),
		Transactions: txns,
	}, nil
}

func (s *Service) GetSummary(ctx context.Context, userID int64) (domain.Summary, error) {
	if userID <= 0 {
		return domain.Summary{}, domain.ErrInvalidUser
	}

	account, err := s.repo.FindAccount(ctx, s.db, userID)
	if err != nil {
		return domain.Summary{}, err
	}
	if account == nil {
		return domain.Summary{}, domain.ErrAccountNotFound
	}
	totals, err := s.repo.Totals(ctx, s.db, userID)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		UserID:           userID,
		CurrentBalance:   account.Points,
		CurrentLevel:     domain.LevelFor(totals.Earned),
		LifetimeEarned:   totals.Earned,
		LifetimeSpent:    totals.Spent,
		TransactionCount: totals.Count,
	}
	for _, l := range domain.Levels() {
		if l.MinPoints > totals.Earned {
			summary.NextLevelAt = l.MinPoints
			break
		}
	}
	return summary, nil
}

// ListRules returns active rules grouped by type. When userID is set, earn
// rules carry the user's usage since local midnight.
func (s *Service) ListRules(ctx context.Context, userID int64) (domain.RuleCatalog, error) {
	rules, err := s.repo.ListActiveRules(ctx, s.db)
	if err != nil {
		return domain.RuleCatalog{}, err
	}

	used := map[domain.Source]int64{}
	if userID > 0 {
		used, err = s.repo.SumEarnedBySource(ctx, s.db, userID, s.startOfDay(s.clock.Now()))
		if err != nil {
			return domain.RuleCatalog{}, err
		}
	}

	catalog := domain.RuleCatalog{
		EarnRules:  []domain.RuleUsage{},
		SpendRules: []domain.Rule{},
		Levels:     domain.Levels(),
	}
	for _, rule := range rules {
		if rule.Type == domain.DirectionSpend {
			catalog.SpendRules = append(catalog.SpendRules, rule)
			continue
		}
		usage := domain.RuleUsage{Rule: rule, DailyUsed: used[rule.Action]}
		if rule.DailyLimit != nil {
			remaining := *rule.DailyLimit - usage.DailyUsed
			if remaining < 0 {
				remaining = 0
			}
			usage.DailyRemaining = &remaining
		}
		catalog.EarnRules = append(catalog.EarnRules, usage)
	}
	return catalog, nil
}
