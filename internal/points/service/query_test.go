package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHistoryNewestFirstWithPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, 1, 100)

	for i := 0; i < 5; i++ {
		env.clock.Advance(time.Minute)
		_, err := env.svc.ApplyTransaction(ctx, domain.ApplyTransactionRequest{
			UserID:      1,
			Direction:   domain.DirectionEarn,
			Amount:      int64(i + 1),
			Source:      "bonus",
			ReferenceID: fmt.Sprintf("b-%d", i),
		})
		require.NoError(t, err)
	}
	env.clock.Advance(time.Minute)
	_, err := env.svc.ApplyTransaction(ctx, domain.ApplyTransactionRequest{
		UserID: 1, Direction: domain.DirectionSpend, Amount: 3, Source: domain.SourceTemplatePurchase,
	})
	require.NoError(t, err)

	page, err := env.svc.GetHistory(ctx, domain.HistoryRequest{UserID: 1, Page: 1, PageSize: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasMore)
	require.Len(t, page.Transactions, 4)
	assert.Equal(t, domain.DirectionSpend, page.Transactions[0].Direction)
	for i := 1; i < len(page.Transactions); i++ {
		assert.False(t, page.Transactions[i].CreatedAt.After(page.Transactions[i-1].CreatedAt))
	}

	second, err := env.svc.GetHistory(ctx, domain.HistoryRequest{UserID: 1, Page: 2, PageSize: 4})
	require.NoError(t, err)
	require.Len(t, second.Transactions, 3)
	assert.False(t, second.HasMore)
	assert.Equal(t, domain.SourceSignupBonus, second.Transactions[2].Source)

	earns, err := env.svc.GetHistory(ctx, domain.HistoryRequest{UserID: 1, Direction: "earn"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), earns.Total)

	bonus, err := env.svc.GetHistory(ctx, domain.HistoryRequest{UserID: 1, Source: "bonus"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), bonus.Total)
}

func TestGetHistoryEmpty(t *testing.T) {
	env := newTestEnv(t)

	page, err := env.svc.GetHistory(context.Background(), domain.HistoryRequest{UserID: 404})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.NotNil(t, page.Transactions)
	assert.Empty(t, page.Transactions)
}

func TestGetSummaryLevelIgnoresSpending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, 1, 100)

	_, err := env.svc.ApplyTransaction(ctx, domain.ApplyTransactionRequest{
		UserID: 1, Direction: domain.DirectionEarn, Amount: 450, Source: "bonus",
	})
	require.NoError(t, err)
	_, err = env.svc.ApplyTransaction(ctx, domain.ApplyTransactionRequest{
		UserID: 1, Direction: domain.DirectionSpend, Amount: 500, Source: domain.SourceTemplatePurchase,
	})
	require.NoError(t, err)

	summary, err := env.svc.GetSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), summary.CurrentBalance)
	assert.Equal(t, int64(550), summary.LifetimeEarned)
	assert.Equal(t, int64(500), summary.LifetimeSpent)
	assert.Equal(t, int64(3), summary.TransactionCount)
	assert.Equal(t, 2, summary.CurrentLevel)
	assert.Equal(t, int64(1500), summary.NextLevelAt)

	_, err = env.svc.GetSummary(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestListRulesWithDailyUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, 2, 0)

	_, err := env.svc.AwardForAction(ctx, domain.AwardRequest{UserID: 2, Action: domain.SourceDailyLogin, ReferenceID: "d-1"})
	require.NoError(t, err)

	catalog, err := env.svc.ListRules(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, catalog.EarnRules, 5)
	require.Len(t, catalog.SpendRules, 1)
	assert.Equal(t, domain.SourceTemplatePurchase, catalog.SpendRules[0].Action)
	assert.Len(t, catalog.Levels, 5)

	var login *domain.RuleUsage
	for i := range catalog.EarnRules {
		if catalog.EarnRules[i].Action == domain.SourceDailyLogin {
			login = &catalog.EarnRules[i]
		}
	}
	require.NotNil(t, login)
	assert.Equal(t, int64(5), login.DailyUsed)
	require.NotNil(t, login.DailyRemaining)
	assert.Equal(t, int64(0), *login.DailyRemaining)

	anonymous, err := env.svc.ListRules(ctx, 0)
	require.NoError(t, err)
	for _, usage := range anonymous.EarnRules {
		assert.Zero(t, usage.DailyUsed)
	}
}
