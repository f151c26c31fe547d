package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/apd/v3"
	"github.com/smallbiznis/quorum/internal/clock"
	"github.com/smallbiznis/quorum/internal/config"
	obsmetrics "github.com/smallbiznis/quorum/internal/observability/metrics"
	"github.com/smallbiznis/quorum/internal/points/domain"
	"github.com/smallbiznis/quorum/internal/ratelimit"
	"github.com/smallbiznis/quorum/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultCreatorShareRate = "0.70"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Repo       domain.Repository
	Locker     *ratelimit.UserLocker `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
	ObsMetrics *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	locker      *ratelimit.UserLocker
	clock       clock.Clock
	obsMetrics  *obsmetrics.Metrics
	tracer      trace.Tracer
	location    *time.Location
	creatorRate *apd.Decimal
	signupBonus bool
}

func New(p Params) (domain.Service, error) {
	location, err := loadLocation(p.Cfg.Points.Timezone)
	if err != nil {
		return nil, err
	}
	rate, err := parseShareRate(p.Cfg.Points.CreatorShareRate)
	if err != nil {
		return nil, err
	}

	locker := p.Locker
	if locker == nil {
		locker = ratelimit.NewUserLocker(nil, p.Cfg.Points.LockTTL, p.Log)
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Service{
		db:          p.DB,
		log:         p.Log.Named("points.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		locker:      locker,
		clock:       clk,
		obsMetrics:  p.ObsMetrics,
		tracer:      otel.Tracer("quorum/points"),
		location:    location,
		creatorRate: rate,
		signupBonus: p.Cfg.Points.SignupBonus,
	}, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("points timezone %q: %w", name, err)
	}
	return loc, nil
}

func parseShareRate(raw string) (*apd.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = defaultCreatorShareRate
	}
	rate, _, err := apd.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("creator share rate %q: %w", raw, err)
	}
	if rate.Sign() < 0 || rate.Cmp(apd.New(1, 0)) > 0 {
		return nil, fmt.Errorf("creator share rate %q must be within [0, 1]", raw)
	}
	return rate, nil
}

// withUsers runs fn in one database transaction while holding the critical
// section of every user id.
func (s *Service) withUsers(ctx context.Context, fn func(tx *gorm.DB) error, userIDs ...int64) error {
	unlock, err := s.locker.Lock(ctx, userIDs...)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.WithContext(ctx).Transaction(fn)
}

type applyInput struct {
	UserID        int64
	Direction     domain.Direction
	Amount        int64
	Source        domain.Source
	ReferenceID   string
	ReferenceType string
	Description   string
	Metadata      map[string]any
}

func normalizeApply(req domain.ApplyTransactionRequest) (applyInput, error) {
	if req.UserID <= 0 {
		return applyInput{}, domain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return applyInput{}, domain.ErrInvalidAmount
	}
	direction, err := normalizeDirection(req.Direction)
	if err != nil {
		return applyInput{}, err
	}
	source := domain.Source(strings.TrimSpace(string(req.Source)))
	if source == "" {
		return applyInput{}, domain.ErrInvalidSource
	}
	return applyInput{
		UserID:        req.UserID,
		Direction:     direction,
		Amount:        req.Amount,
		Source:        source,
		ReferenceID:   strings.TrimSpace(req.ReferenceID),
		ReferenceType: strings.TrimSpace(req.ReferenceType),
		Description:   strings.TrimSpace(req.Description),
		Metadata:      req.Metadata,
	}, nil
}

func normalizeDirection(direction domain.Direction) (domain.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(string(direction))) {
	case string(domain.DirectionEarn):
		return domain.DirectionEarn, nil
	case string(domain.DirectionSpend):
		return domain.DirectionSpend, nil
	default:
		return "", domain.ErrInvalidDirection
	}
}

func (s *Service) ApplyTransaction(ctx context.Context, req domain.ApplyTransactionRequest) (domain.Transaction, error) {
	in, err := normalizeApply(req)
	if err != nil {
		return domain.Transaction{}, err
	}

	var (
		out     domain.Transaction
		created bool
	)
	err = s.withUsers(ctx, func(tx *gorm.DB) error {
		txn, inserted, err := s.apply(ctx, tx, in)
		if err != nil {
			return err
		}
		out, created = txn, inserted
		return nil
	}, in.UserID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if created {
		s.recordCommitted(ctx, out)
	}
	return out, nil
}

// apply appends the transaction row and moves the balance. It must be called
// inside withUsers. A reference already recorded for the user and source
// returns the stored transaction and writes nothing, provided the request
// matches it.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, in applyInput) (domain.Transaction, bool, error) {
	ctx, span := s.tracer.Start(ctx, "points.apply", trace.WithAttributes(
		attribute.String("points.direction", string(in.Direction)),
		attribute.String("points.source", string(in.Source)),
		attribute.Int64("points.amount", in.Amount),
	))
	defer span.End()

	if in.ReferenceID != "" {
		existing, err := s.replay(ctx, tx, in)
		if err != nil || existing != nil {
			span.SetAttributes(attribute.Bool("points.replayed", existing != nil))
			return derefTxn(existing), false, err
		}
	}

	account, err := s.repo.LockAccount(ctx, tx, in.UserID)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if account == nil {
		return domain.Transaction{}, false, domain.ErrAccountNotFound
	}

	now := s.clock.Now().UTC()
	next := *account
	switch in.Direction {
	case domain.DirectionSpend:
		if account.Points < in.Amount {
			return domain.Transaction{}, false, &domain.InsufficientBalanceError{
				Required:  in.Amount,
				Available: account.Points,
			}
		}
		next.Points -= in.Amount
	case domain.DirectionEarn:
		next.Points += in.Amount
		next.LifetimeEarned += in.Amount
	}
	next.Level = domain.LevelFor(next.LifetimeEarned)
	next.UpdatedAt = now

	txn := domain.Transaction{
		ID:           s.genID.Generate(),
		UserID:       in.UserID,
		Direction:    in.Direction,
		Amount:       in.Amount,
		BalanceAfter: next.Points,
		Source:       in.Source,
		Description:  in.Description,
		Metadata:     datatypes.JSONMap(correlation.Stamp(ctx, cloneMetadata(in.Metadata))),
		CreatedAt:    now,
	}
	if in.ReferenceID != "" {
		txn.ReferenceID = stringPtr(in.ReferenceID)
	}
	if in.ReferenceType != "" {
		txn.ReferenceType = stringPtr(in.ReferenceType)
	}

	// The row goes in before the balance moves: losing the unique reference
	// race to another process leaves the balance untouched.
	inserted, err := s.repo.InsertTransaction(ctx, tx, &txn)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if !inserted {
		existing, err := s.replay(ctx, tx, in)
		if err != nil {
			return domain.Transaction{}, false, err
		}
		if existing == nil {
			return domain.Transaction{}, false, fmt.Errorf("%w: reference %s not readable after conflict", domain.ErrBalanceConflict, in.ReferenceID)
		}
		span.SetAttributes(attribute.Bool("points.replayed", true))
		return *existing, false, nil
	}

	ok, err := s.repo.UpdateBalance(ctx, tx, &next, account.Points)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if !ok {
		return domain.Transaction{}, false, domain.ErrBalanceConflict
	}

	s.log.Debug("points transaction applied",
		zap.Int64("user_id", in.UserID),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("direction", string(in.Direction)),
		zap.String("source", string(in.Source)),
		zap.Int64("amount", in.Amount),
		zap.Int64("balance_after", txn.BalanceAfter),
	)
	return txn, true, nil
}

// replay returns the transaction already recorded for in's reference, or nil.
// A stored row with a different direction or amount is a reference conflict.
func (s *Service) replay(ctx context.Context, tx *gorm.DB, in applyInput) (*domain.Transaction, error) {
	existing, err := s.repo.FindTransactionByReference(ctx, tx, in.UserID, in.Source, in.ReferenceID)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.Direction != in.Direction || existing.Amount != in.Amount {
		return nil, &domain.ReferenceConflictError{
			ReferenceID: in.ReferenceID,
			Direction:   existing.Direction,
			Amount:      existing.Amount,
		}
	}
	return existing, nil
}

func derefTxn(txn *domain.Transaction) domain.Transaction {
	if txn == nil {
		return domain.Transaction{}
	}
	return *txn
}

func (s *Service) recordCommitted(ctx context.Context, txns ...domain.Transaction) {
	for _, txn := range txns {
		s.obsMetrics.RecordLedgerTransaction(ctx, string(txn.Direction), string(txn.Source), txn.Amount)
	}
}

func (s *Service) startOfDay(now time.Time) time.Time {
	local := now.In(s.location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

func cloneMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func stringPtr(v string) *string {
	return &v
}

func userReference(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
