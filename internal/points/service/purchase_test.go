package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseTemplateSplitsPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, 10, 500) // buyer
	env.openAccount(t, 20, 0)   // creator

	result, err := env.svc.PurchaseTemplate(ctx, domain.PurchaseTemplateRequest{
		BuyerID:    10,
		CreatorID:  20,
		TemplateID: "tpl-1",
		PurchaseID: "purchase-1",
		Title:      "NPS starter",
		Price:      200,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(140), result.CreatorEarn)
	assert.Equal(t, domain.DirectionSpend, result.Purchase.Direction)
	assert.Equal(t, int64(300), result.Purchase.BalanceAfter)
	require.NotNil(t, result.Sale)
	assert.Equal(t, domain.SourceTemplateSale, result.Sale.Source)
	assert.Equal(t, int64(140), result.Sale.BalanceAfter)

	assert.Equal(t, int64(300), env.balance(t, 10))
	assert.Equal(t, int64(140), env.balance(t, 20))

	replay, err := env.svc.PurchaseTemplate(ctx, domain.PurchaseTemplateRequest{
		BuyerID: 10, CreatorID: 20, TemplateID: "tpl-1", PurchaseID: "purchase-1", Price: 200,
	})
	require.NoError(t, err)
	assert.Equal(t, result.Purchase.ID, replay.Purchase.ID)
	assert.Equal(t, int64(300), env.balance(t, 10))
	assert.Equal(t, int64(140), env.balance(t, 20))
}

func TestPurchaseTemplateInsufficientBalanceWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, 10, 50)
	env.openAccount(t, 20, 0)
	buyerTxns := len(env.transactions(t, 10))
	creatorTxns := len(env.transactions(t, 20))

	_, err := env.svc.PurchaseTemplate(ctx, domain.PurchaseTemplateRequest{
		BuyerID: 10, CreatorID: 20, PurchaseID: "purchase-2", Price: 200,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Equal(t, int64(50), env.balance(t, 10))
	assert.Equal(t, int64(0), env.balance(t, 20))
	assert.Len(t, env.transactions(t, 10), buyerTxns)
	assert.Len(t, env.transactions(t, 20), creatorTxns)
}

func TestPurchaseTemplateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.PurchaseTemplateRequest
		want error
	}{
		{"self purchase", domain.PurchaseTemplateRequest{BuyerID: 1, CreatorID: 1, PurchaseID: "p", Price: 10}, domain.ErrSelfPurchase},
		{"free template", domain.PurchaseTemplateRequest{BuyerID: 1, CreatorID: 2, PurchaseID: "p", Price: 0}, domain.ErrInvalidPrice},
		{"missing purchase id", domain.PurchaseTemplateRequest{BuyerID: 1, CreatorID: 2, Price: 10}, domain.ErrInvalidReference},
		{"missing creator", domain.PurchaseTemplateRequest{BuyerID: 1, PurchaseID: "p", Price: 10}, domain.ErrInvalidUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.PurchaseTemplate(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreatorShareFloors(t *testing.T) {
	rate, _, err := apd.NewFromString("0.70")
	require.NoError(t, err)
	svc := &Service{creatorRate: rate}

	tests := []struct {
		price int64
		want  int64
	}{
		{price: 200, want: 140},
		{price: 1, want: 0},
		{price: 99, want: 69},
		{price: 1001, want: 700},
	}
	for _, tt := range tests {
		got, err := svc.creatorShare(tt.price)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "price %d", tt.price)
	}
}
