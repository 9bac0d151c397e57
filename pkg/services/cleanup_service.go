package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
	"github.com/pharmaflow/pharmaflow-engine/pkg/objectstore"
	"github.com/pharmaflow/pharmaflow-engine/pkg/repositories"
	"github.com/pharmaflow/pharmaflow-engine/pkg/search"
)

// CleanupService removes documents that nothing references anymore: no
// entity relation and older than the retention window. It runs on a cron
// schedule and can also be invoked directly.
type CleanupService struct {
	tx        TxRunner
	documents repositories.DocumentRepository
	store     objectstore.Store
	indexer   search.Indexer
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *zap.Logger
}

// NewCleanupService creates a CleanupService. schedule is a standard cron
// expression; retention is how long orphaned documents are kept.
func NewCleanupService(
	tx TxRunner,
	documents repositories.DocumentRepository,
	store objectstore.Store,
	indexer search.Indexer,
	schedule string,
	retention time.Duration,
	logger *zap.Logger,
) *CleanupService {
	return &CleanupService{
		tx:        tx,
		documents: documents,
		store:     store,
		indexer:   indexer,
		retention: retention,
		schedule:  schedule,
		logger:    logger.Named("cleanup"),
	}
}

// Start schedules the cleanup job. The returned stop function halts the
// scheduler and waits for a running job to finish.
func (s *CleanupService) Start() (stop func(), err error) {
	c := cron.New()
	_, err = c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.RemoveOrphanedDocuments(ctx); err != nil {
			s.logger.Error("scheduled cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("cleanup scheduled", zap.String("schedule", s.schedule))

	return func() {
		<-c.Stop().Done()
	}, nil
}

// RemoveOrphanedDocuments deletes documents older than the retention window
// that have no entity relations. Per-document failures are logged and
// counted, not fatal; the next run retries them.
func (s *CleanupService) RemoveOrphanedDocuments(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.retention)

	var orphans []*models.Document
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		var txErr error
		orphans, txErr = s.documents.ListOrphansOlderThan(txCtx, cutoff)
		return txErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list orphaned documents: %w", err)
	}

	removed := 0
	for _, doc := range orphans {
		if err := s.removeDocument(ctx, doc); err != nil {
			s.logger.Warn("failed to remove orphaned document",
				zap.Int64("doc_id", doc.DocID), zap.Error(err))
			continue
		}
		removed++
	}

	s.logger.Info("orphan cleanup finished",
		zap.Int("candidates", len(orphans)),
		zap.Int("removed", removed))

	return removed, nil
}

func (s *CleanupService) removeDocument(ctx context.Context, doc *models.Document) error {
	if err := s.store.Delete(ctx, doc.FilePath); err != nil {
		return err
	}
	if err := s.indexer.DeleteDocument(ctx, doc.DocID); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.documents.Delete(txCtx, doc.DocID)
	})
}
