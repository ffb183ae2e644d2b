package service

import (
	"context"

	"github.com/okian/crease/internal/adapters/repository"
	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/rating"
	"github.com/okian/crease/internal/domain/selection"
	"github.com/okian/crease/pkg/logger"
)

// History folds every aggregated match into cumulative player records.
func (s *Service) History(ctx context.Context) ([]history.Record, error) {
	return repository.History(ctx, s.store)
}

// SetAvailability marks a known player available or not for selection.
func (s *Service) SetAvailability(ctx context.Context, playerID string, available bool) error {
	if err := s.store.SetAvailability(ctx, playerID, available); err != nil {
		return err
	}
	s.logger.Info(ctx, "availability changed", logger.String("player_id", playerID), logger.Bool("available", available))
	return nil
}

// Rate rates recs, or the stored history when recs is nil.
func (s *Service) Rate(ctx context.Context, recs []history.Record) ([]rating.Result, error) {
	if recs == nil {
		var err error
		if recs, err = s.History(ctx); err != nil {
			return nil, err
		}
	}
	return rating.Rate(recs, s.weights)
}

// Team rates recs, or the stored history when recs is nil, and selects the
// XI. Shortfalls are reported on the team, not as an error.
func (s *Service) Team(ctx context.Context, recs []history.Record) (selection.Team, error) {
	results, err := s.Rate(ctx, recs)
	if err != nil {
		return selection.Team{}, err
	}
	team := selection.Select(results, s.weights)
	if err := team.Err(); err != nil {
		s.logger.Warn(ctx, "team has shortfalls", logger.Error(err))
	}
	return team, nil
}
