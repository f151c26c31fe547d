package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/smallbiznis/quorum/internal/points/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var decimalCtx = apd.BaseContext.WithPrecision(34)

// PurchaseTemplate charges the buyer the template price and credits the
// creator floor(price * share rate) in one database transaction. Both users
// are locked in ascending id order. Replaying a purchase id returns the
// recorded transactions.
func (s *Service) PurchaseTemplate(ctx context.Context, req domain.PurchaseTemplateRequest) (domain.PurchaseResult, error) {
	if req.BuyerID <= 0 || req.CreatorID <= 0 {
		return domain.PurchaseResult{}, domain.ErrInvalidUser
	}
	if req.BuyerID == req.CreatorID {
		return domain.PurchaseResult{}, domain.ErrSelfPurchase
	}
	if req.Price <= 0 {
		return domain.PurchaseResult{}, domain.ErrInvalidPrice
	}
	purchaseID := strings.TrimSpace(req.PurchaseID)
	if purchaseID == "" {
		return domain.PurchaseResult{}, domain.ErrInvalidReference
	}

	creatorEarn, err := s.creatorShare(req.Price)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	title := strings.TrimSpace(req.Title)
	metadata := map[string]any{
		"template_id": strings.TrimSpace(req.TemplateID),
		"price":       req.Price,
	}

	var (
		result    domain.PurchaseResult
		committed []domain.Transaction
	)
	err = s.withUsers(ctx, func(tx *gorm.DB) error {
		purchase, inserted, err := s.apply(ctx, tx, applyInput{
			UserID:        req.BuyerID,
			Direction:     domain.DirectionSpend,
			Amount:        req.Price,
			Source:        domain.SourceTemplatePurchase,
			ReferenceID:   purchaseID,
			ReferenceType: domain.ReferenceTypePurchase,
			Description:   "Purchased template: " + title,
			Metadata:      metadata,
		})
		if err != nil {
			return err
		}
		if inserted {
			committed = append(committed, purchase)
		}
		result = domain.PurchaseResult{Purchase: purchase, CreatorEarn: creatorEarn}

		if creatorEarn == 0 {
			return nil
		}
		sale, inserted, err := s.apply(ctx, tx, applyInput{
			UserID:        req.CreatorID,
			Direction:     domain.DirectionEarn,
			Amount:        creatorEarn,
			Source:        domain.SourceTemplateSale,
			ReferenceID:   purchaseID,
			ReferenceType: domain.ReferenceTypePurchase,
			Description:   "Template sold: " + title,
			Metadata: map[string]any{
				"template_id": strings.TrimSpace(req.TemplateID),
				"buyer_id":    req.BuyerID,
			},
		})
		if err != nil {
			return err
		}
		if inserted {
			committed = append(committed, sale)
		}
		result.Sale = &sale
		return nil
	}, req.BuyerID, req.CreatorID)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	s.recordCommitted(ctx, committed...)
	s.log.Info("template purchased",
		zap.Int64("buyer_id", req.BuyerID),
		zap.Int64("creator_id", req.CreatorID),
		zap.String("purchase_id", purchaseID),
		zap.Int64("price", req.Price),
		zap.Int64("creator_earn", creatorEarn),
	)
	return result, nil
}

func (s *Service) creatorShare(price int64) (int64, error) {
	var product, floored apd.Decimal
	if _, err := decimalCtx.Mul(&product, apd.New(price, 0), s.creatorRate); err != nil {
		return 0, fmt.Errorf("creator share: %w", err)
	}
	if _, err := decimalCtx.Floor(&floored, &product); err != nil {
		return 0, fmt.Errorf("creator share: %w", err)
	}
	return floored.Int64()
}
