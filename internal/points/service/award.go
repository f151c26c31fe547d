package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/smallbiznis/quorum/internal/points/rewards"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AwardForAction applies the active EARN rule bound to req.Action. Rule
// lookup, condition and cap checks run in the same critical section as the
// write so two concurrent awards cannot both pass a cap.
//
// Caps are all-or-nothing: an award that does not fit in the remaining daily
// or lifetime headroom is skipped, never truncated.
func (s *Service) AwardForAction(ctx context.Context, req domain.AwardRequest) (domain.AwardResult, error) {
	if req.UserID <= 0 {
		return domain.AwardResult{}, domain.ErrInvalidUser
	}
	action := domain.Source(strings.TrimSpace(string(req.Action)))
	if action == "" {
		return domain.AwardResult{}, domain.ErrInvalidSource
	}
	if req.Amount < 0 {
		return domain.AwardResult{}, domain.ErrInvalidAmount
	}

	var (
		result  domain.AwardResult
		created bool
	)
	err := s.withUsers(ctx, func(tx *gorm.DB) error {
		res, inserted, err := s.award(ctx, tx, action, req)
		if err != nil {
			return err
		}
		result, created = res, inserted
		return nil
	}, req.UserID)
	if err != nil {
		return domain.AwardResult{}, err
	}

	if created && result.Transaction != nil {
		s.recordCommitted(ctx, *result.Transaction)
	}
	if !result.Applied() {
		s.obsMetrics.RecordAwardSkipped(ctx, string(action), string(result.Reason))
		s.log.Debug("award skipped",
			zap.Int64("user_id", req.UserID),
			zap.String("action", string(action)),
			zap.String("reason", string(result.Reason)),
		)
	}
	return result, nil
}

func (s *Service) award(ctx context.Context, tx *gorm.DB, action domain.Source, req domain.AwardRequest) (domain.AwardResult, bool, error) {
	rule, err := s.repo.FindActiveRule(ctx, tx, action, domain.DirectionEarn)
	if err != nil {
		return domain.AwardResult{}, false, err
	}
	if rule == nil {
		return skipped(domain.SkipRuleNotFound, nil), false, nil
	}

	conditions, err := domain.ParseConditions(rule.Conditions)
	if err != nil {
		s.log.Warn("rule has unreadable conditions", zap.String("rule", rule.Name), zap.Error(err))
		return skipped(domain.SkipConditionUnmet, nil), false, nil
	}
	if !conditions.Satisfied(req.Facts) {
		return skipped(domain.SkipConditionUnmet, nil), false, nil
	}

	referenceID := strings.TrimSpace(req.ReferenceID)
	if referenceID != "" {
		existing, err := s.repo.FindTransactionByReference(ctx, tx, req.UserID, action, referenceID)
		if err != nil {
			return domain.AwardResult{}, false, err
		}
		if existing != nil {
			return skipped(domain.SkipDuplicate, existing), false, nil
		}
	}

	amount := rule.Points
	if req.Amount > 0 {
		amount = req.Amount
	}
	if amount <= 0 {
		return domain.AwardResult{}, false, domain.ErrInvalidAmount
	}

	withinCaps, err := s.withinCaps(ctx, tx, req.UserID, rule, amount)
	if err != nil {
		return domain.AwardResult{}, false, err
	}
	if !withinCaps {
		return skipped(domain.SkipCapReached, nil), false, nil
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = rule.Description
	}
	txn, inserted, err := s.apply(ctx, tx, applyInput{
		UserID:        req.UserID,
		Direction:     domain.DirectionEarn,
		Amount:        amount,
		Source:        action,
		ReferenceID:   referenceID,
		ReferenceType: strings.TrimSpace(req.ReferenceType),
		Description:   description,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return domain.AwardResult{}, false, err
	}
	if !inserted {
		return skipped(domain.SkipDuplicate, &txn), false, nil
	}
	return domain.AwardResult{Status: domain.AwardApplied, Transaction: &txn}, true, nil
}

func (s *Service) withinCaps(ctx context.Context, tx *gorm.DB, userID int64, rule *domain.Rule, amount int64) (bool, error) {
	if rule.DailyLimit != nil {
		since := s.startOfDay(s.clock.Now())
		used, err := s.repo.SumEarned(ctx, tx, userID, rule.Action, &since)
		if err != nil {
			return false, err
		}
		if used+amount > *rule.DailyLimit {
			return false, nil
		}
	}
	if rule.TotalLimit != nil {
		used, err := s.repo.SumEarned(ctx, tx, userID, rule.Action, nil)
		if err != nil {
			return false, err
		}
		if used+amount > *rule.TotalLimit {
			return false, nil
		}
	}
	return true, nil
}

func skipped(reason domain.SkipReason, existing *domain.Transaction) domain.AwardResult {
	return domain.AwardResult{Status: domain.AwardSkipped, Reason: reason, Transaction: existing}
}

// AwardSurveyCompletion awards a respondent for a submitted response. The rule
// points are the base amount; text answers and full completion add bonuses.
func (s *Service) AwardSurveyCompletion(ctx context.Context, req domain.SurveyCompletionRequest) (domain.AwardResult, error) {
	if req.UserID <= 0 {
		return domain.AwardResult{}, domain.ErrInvalidUser
	}
	responseID := strings.TrimSpace(req.ResponseID)
	if responseID == "" {
		return domain.AwardResult{}, domain.ErrInvalidReference
	}

	rule, err := s.repo.FindActiveRule(ctx, s.db, domain.SourceSurveyComplete, domain.DirectionEarn)
	if err != nil {
		return domain.AwardResult{}, err
	}
	if rule == nil {
		s.obsMetrics.RecordAwardSkipped(ctx, string(domain.SourceSurveyComplete), string(domain.SkipRuleNotFound))
		return skipped(domain.SkipRuleNotFound, nil), nil
	}

	amount := rewards.SurveyCompletion(rule.Points, req.QuestionCount, req.Answers)
	description := "Completed survey"
	if title := strings.TrimSpace(req.SurveyTitle); title != "" {
		description = "Completed survey: " + title
	}

	return s.AwardForAction(ctx, domain.AwardRequest{
		UserID:        req.UserID,
		Action:        domain.SourceSurveyComplete,
		ReferenceID:   responseID,
		ReferenceType: domain.ReferenceTypeResponse,
		Description:   description,
		Amount:        amount,
		Facts:         domain.Facts{QuestionCount: req.QuestionCount},
		Metadata: map[string]any{
			"question_count": req.QuestionCount,
			"answer_count":   len(req.Answers),
		},
	})
}
