package catalog

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quorum/internal/points/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Syncer upserts the catalog into point_rules keyed by rule name.
type Syncer struct {
	db    *gorm.DB
	repo  domain.Repository
	genID *snowflake.Node
	log   *zap.Logger
}

func NewSyncer(db *gorm.DB, repo domain.Repository, genID *snowflake.Node, log *zap.Logger) *Syncer {
	return &Syncer{db: db, repo: repo, genID: genID, log: log.Named("points.catalog")}
}

func (s *Syncer) Sync(ctx context.Context, c Catalog) error {
	rules, err := c.RuleRows(s.genID, time.Now().UTC())
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rules {
			if err := s.repo.UpsertRule(ctx, tx, &rules[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("reward rules synced", zap.Int("rules", len(rules)))
	return nil
}
