package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/quorum/internal/points/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRole = "user"

// OpenAccount creates the balance for a user and, when enabled, awards the
// signup bonus as the account's seed transaction. Calling it again for an
// existing user returns the stored account.
func (s *Service) OpenAccount(ctx context.Context, req domain.OpenAccountRequest) (domain.Account, error) {
	if req.UserID <= 0 {
		return domain.Account{}, domain.ErrInvalidUser
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultRole
	}

	var (
		account domain.Account
		bonus   domain.AwardResult
		created bool
	)
	err := s.withUsers(ctx, func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()
		inserted, err := s.repo.InsertAccount(ctx, tx, &domain.Account{
			UserID:    req.UserID,
			Role:      role,
			Level:     domain.LevelFor(0),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}

		if inserted && s.signupBonus {
			bonus, created, err = s.award(ctx, tx, domain.SourceSignupBonus, domain.AwardRequest{
				UserID:        req.UserID,
				Action:        domain.SourceSignupBonus,
				ReferenceID:   userReference(req.UserID),
				ReferenceType: domain.ReferenceTypeUser,
				Description:   "Welcome bonus",
			})
			if err != nil {
				return err
			}
		}

		stored, err := s.repo.FindAccount(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrAccountNotFound
		}
		account = *stored
		return nil
	}, req.UserID)
	if err != nil {
		return domain.Account{}, err
	}

	if created && bonus.Transaction != nil {
		s.recordCommitted(ctx, *bonus.Transaction)
	}
	s.log.Info("points account opened",
		zap.Int64("user_id", account.UserID),
		zap.Int64("points", account.Points),
		zap.String("signup_bonus", string(bonus.Status)),
	)
	return account, nil
}
