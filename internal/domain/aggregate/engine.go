package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
)

// Store is the slice of the repository an aggregation run needs.
type Store interface {
	GetMatch(ctx context.Context, matchID string) (model.Match, error)
	Events(ctx context.Context, matchID string) ([]model.BallEvent, error)
	ReplaceMatchStats(ctx context.Context, stats model.MatchStats) error
}

// Engine recomputes and persists the stat rows of a match.
type Engine struct {
	store Store
	log   logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine builds an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Named("aggregate")
	}
	return e
}

// Run aggregates a match from its ledger and replaces its stored rows.
// Runs for one match may overlap; a run that read an older ledger than the
// stored rows reflect fails with model.ErrStaleStats and leaves them as is.
func (e *Engine) Run(ctx context.Context, matchID string) (stats model.MatchStats, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, model.ErrStaleStats) {
			metrics.RecordAggregation(metrics.Since(start), nil)
			return
		}
		metrics.RecordAggregation(metrics.Since(start), err)
	}()

	match, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		return model.MatchStats{}, fmt.Errorf("load match %s: %w", matchID, err)
	}
	events, err := e.store.Events(ctx, matchID)
	if err != nil {
		return model.MatchStats{}, fmt.Errorf("load ledger %s: %w", matchID, err)
	}

	stats = Aggregate(match, events)
	if err := e.store.ReplaceMatchStats(ctx, stats); err != nil {
		if errors.Is(err, model.ErrStaleStats) {
			e.log.Debug(ctx, "newer stats already stored",
				logger.String("match_id", matchID), logger.Int("seq", stats.Seq))
			return model.MatchStats{}, err
		}
		return model.MatchStats{}, fmt.Errorf("replace stats %s: %w", matchID, err)
	}

	e.log.Debug(ctx, "match aggregated",
		logger.String("match_id", matchID),
		logger.Int("seq", stats.Seq),
		logger.Int("events", len(events)),
		logger.Int("batting_rows", len(stats.Batting)),
		logger.Int("bowling_rows", len(stats.Bowling)),
		logger.Duration("took", time.Since(start)))
	return stats, nil
}
