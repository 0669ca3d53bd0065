package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-api/internal/models"
	"github.com/noah-isme/sma-risk-api/pkg/jobs"
)

type openCaseLister interface {
	ListOpenIDs(ctx context.Context, limit, offset int) ([]models.RiskCase, error)
}

type scoreRefresher interface {
	RefreshScore(ctx context.Context, caseID, studentID string) (bool, error)
}

// SweepService re-scores every open case against fresh indicators. The
// indicator/scorer path is read-only and safely parallel, so the sweep fans
// out over a bounded worker queue, pulling the backlog in batches; each case
// refresh is an independent guarded update. Terminal cases are never touched.
type SweepService struct {
	cases       openCaseLister
	refresher   scoreRefresher
	metrics     *MetricsService
	logger      *zap.Logger
	concurrency int
	batchSize   int
}

// NewSweepService constructs the service.
func NewSweepService(cases openCaseLister, refresher scoreRefresher, metrics *MetricsService, logger *zap.Logger, concurrency, batchSize int) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &SweepService{
		cases:       cases,
		refresher:   refresher,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
		batchSize:   batchSize,
	}
}

// Run executes one full sweep and blocks until every open case has been
// processed.
func (s *SweepService) Run(ctx context.Context) (*models.SweepResult, error) {
	started := time.Now().UTC()

	var refreshed, failed int64
	queue := jobs.NewQueue("risk-sweep", func(ctx context.Context, job jobs.Job) error {
		riskCase, ok := job.Payload.(models.RiskCase)
		if !ok {
			atomic.AddInt64(&failed, 1)
			return nil
		}
		ok, err := s.refresher.RefreshScore(ctx, riskCase.ID, riskCase.StudentID)
		if err != nil {
			atomic.AddInt64(&failed, 1)
			s.logger.Warn("sweep refresh failed",
				zap.String("case_id", riskCase.ID),
				zap.String("student_id", riskCase.StudentID),
				zap.Error(err))
			return nil
		}
		if ok {
			atomic.AddInt64(&refreshed, 1)
		}
		return nil
	}, jobs.QueueConfig{Workers: s.concurrency, BufferSize: s.batchSize, Logger: s.logger})

	queue.Start(ctx)
	defer queue.Stop()

	scanned := 0
	for offset := 0; ; {
		batch, err := s.cases.ListOpenIDs(ctx, s.batchSize, offset)
		if err != nil {
			queue.Drain()
			return nil, err
		}
		for _, riskCase := range batch {
			if err := queue.Enqueue(jobs.Job{ID: riskCase.ID, Type: "refresh_score", Payload: riskCase}); err != nil {
				atomic.AddInt64(&failed, 1)
			}
		}
		scanned += len(batch)
		offset += len(batch)
		if len(batch) < s.batchSize {
			break
		}
	}
	queue.Drain()

	result := &models.SweepResult{
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Scanned:    scanned,
		Refreshed:  int(atomic.LoadInt64(&refreshed)),
		Failed:     int(atomic.LoadInt64(&failed)),
	}
	if s.metrics != nil {
		s.metrics.ObserveSweep(result.FinishedAt.Sub(result.StartedAt), result.Refreshed)
	}
	s.logger.Info("risk sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
		zap.Duration("took", result.FinishedAt.Sub(result.StartedAt)))
	return result, nil
}

// Schedule runs the sweep on a fixed interval until the context is done.
func (s *SweepService) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("scheduled risk sweep failed", zap.Error(err))
			}
		}
	}
}
