// Package repository stores the event ledger, derived stat rows and the
// player roster.
package repository

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/metrics"
)

// Store is the persistence port of the scoring service.
type Store interface {
	// CreateMatch stores a new match and registers its squads as players,
	// keeping the availability of players already known.
	// Returns ErrMatchExists if the id is taken.
	CreateMatch(ctx context.Context, m model.Match) error
	// UpdateMatch persists the toss, state and result of an existing match.
	UpdateMatch(ctx context.Context, m model.Match) error
	// GetMatch returns ErrNotFound for an unknown id.
	GetMatch(ctx context.Context, id string) (model.Match, error)
	ListMatches(ctx context.Context) ([]model.Match, error)

	// AppendEvent adds one ledger entry. Its Seq must directly follow the
	// last stored one (ErrSeqConflict) and a non-empty ClientID must be new
	// for the match (ErrDuplicateEvent).
	AppendEvent(ctx context.Context, ev model.BallEvent) error
	// Events returns the full ledger of a match ordered by Seq.
	Events(ctx context.Context, matchID string) ([]model.BallEvent, error)
	// LastSeq is the Seq of the newest ledger entry, 0 for an empty ledger.
	LastSeq(ctx context.Context, matchID string) (int, error)
	// EventByClientID returns ErrNotFound when the id was never recorded.
	EventByClientID(ctx context.Context, matchID, clientID string) (model.BallEvent, error)

	// ReplaceMatchStats swaps the stat rows of one match atomically.
	ReplaceMatchStats(ctx context.Context, stats model.MatchStats) error
	MatchStats(ctx context.Context, matchID string) (model.MatchStats, error)
	AllStats(ctx context.Context) ([]model.MatchStats, error)

	// UpsertPlayers writes roster rows as given, availability included.
	UpsertPlayers(ctx context.Context, players []model.PlayerInfo) error
	SetAvailability(ctx context.Context, playerID string, available bool) error
	Players(ctx context.Context) ([]model.PlayerInfo, error)

	Close() error
}

// History folds every stored stat row with the roster into cumulative
// records, sorted by player id.
func History(ctx context.Context, s Store) ([]history.Record, error) {
	var (
		players []model.PlayerInfo
		stats   []model.MatchStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		players, err = s.Players(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.AllStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	recs := history.Fold(players, stats...)
	metrics.UpdateHistoryPlayers(len(recs))
	return recs, nil
}

func squadPlayers(m model.Match) []model.PlayerInfo {
	out := make([]model.PlayerInfo, 0, len(m.Home.Players)+len(m.Away.Players))
	for _, t := range []model.Team{m.Home, m.Away} {
		for _, p := range t.Players {
			out = append(out, model.PlayerInfo{ID: p.ID, Name: p.Name, Role: p.Role, Available: true})
		}
	}
	return out
}
