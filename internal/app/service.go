// Package service wires the ledger, the scoring sessions, aggregation and
// the rating pipeline behind the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/crease/internal/adapters/lock"
	eventqueue "github.com/okian/crease/internal/adapters/mq/queue"
	workerpool "github.com/okian/crease/internal/adapters/mq/worker"
	"github.com/okian/crease/internal/adapters/repository"
	"github.com/okian/crease/internal/domain/aggregate"
	"github.com/okian/crease/internal/domain/dedupe"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/internal/domain/weights"
	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
)

const defaultLockWait = 2 * time.Second

// Publisher receives live updates for a match.
type Publisher interface {
	Publish(matchID, kind string, payload any)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}

// Service implements the API dependencies for the scoring and rating system.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	locker    lock.Locker
	deduper   dedupe.Deduper
	engine    *aggregate.Engine
	jobs      eventqueue.Queue
	pool      *workerpool.Pool
	publisher Publisher
	weights   weights.Config

	sessMu   sync.Mutex
	sessions map[string]*scoring.Session

	workerCount int
	queueSize   int
	dedupeSize  int

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Without a store it keeps everything in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  100_000,
		weights:     weights.Default(),
		publisher:   nopPublisher{},
		sessions:    make(map[string]*scoring.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.locker == nil {
		s.locker = lock.NewLocal(defaultLockWait)
	}
	return s
}

// Start creates the dedupe tracker, the aggregation queue and its workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting scoring service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.engine = aggregate.NewEngine(s.store, aggregate.WithLogger(s.logger.Named("aggregate")))
	s.jobs = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.jobs, s.engine, workerpool.WithDone(s.aggregated))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the aggregation queue and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	s.sessMu.Lock()
	stats["liveSessions"] = len(s.sessions)
	s.sessMu.Unlock()

	if s.started {
		stats["queueLength"] = s.jobs.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		if matches, err := s.store.ListMatches(ctx); err == nil {
			stats["matches"] = len(matches)
		}
	}
	return stats
}

// Weights returns the active rating configuration.
func (s *Service) Weights() weights.Config { return s.weights }

// RebuildStats re-aggregates every stored match, a bounded number at a time.
func (s *Service) RebuildStats(ctx context.Context) (int, error) {
	if err := s.running(); err != nil {
		return 0, err
	}
	matches, err := s.store.ListMatches(ctx)
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)
	for _, m := range matches {
		g.Go(func() error {
			_, err := s.engine.Run(gctx, m.ID)
			if errors.Is(err, model.ErrStaleStats) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("rebuild stats: %w", err)
	}
	s.logger.Info(ctx, "stats rebuilt", logger.Int("matches", len(matches)))
	return len(matches), nil
}

// schedule queues a re-aggregation; a full queue falls back to running it inline.
func (s *Service) schedule(ctx context.Context, matchID string, seq int) {
	err := s.jobs.Enqueue(ctx, eventqueue.Job{MatchID: matchID, Seq: seq})
	if err == nil || errors.Is(err, eventqueue.ErrClosed) {
		return
	}
	s.logger.Warn(ctx, "aggregation queue rejected job, running inline",
		logger.String("match_id", matchID), logger.Error(err))
	stats, err := s.engine.Run(ctx, matchID)
	switch {
	case errors.Is(err, model.ErrStaleStats):
	case err != nil:
		s.logger.Error(ctx, "inline aggregation failed", logger.String("match_id", matchID), logger.Error(err))
	default:
		s.aggregated(ctx, eventqueue.Job{MatchID: matchID, Seq: seq}, stats)
	}
}

func (s *Service) aggregated(_ context.Context, job eventqueue.Job, stats model.MatchStats) {
	s.publisher.Publish(job.MatchID, "stats", stats)
}

func (s *Service) updateLiveGauge() {
	live := 0
	for _, sess := range s.sessions {
		if sess.Match().State == model.StateInningsInProgress || sess.Match().State == model.StateInningsComplete {
			live++
		}
	}
	metrics.UpdateLiveMatches(live)
}
