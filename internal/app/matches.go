package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/crease/internal/adapters/repository"
	"github.com/okian/crease/internal/domain/dedupe"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
)

// MatchInput is a match setup as submitted by a scorer.
type MatchInput struct {
	ID    string     `json:"id,omitempty"`
	Home  model.Team `json:"home"`
	Away  model.Team `json:"away"`
	Overs int        `json:"overs"`
}

// BallOutcome is the answer to a delivery. A duplicate carries the event
// recorded the first time the client id was seen.
type BallOutcome struct {
	Event     model.BallEvent  `json:"event"`
	Duplicate bool             `json:"duplicate"`
	Snapshot  scoring.Snapshot `json:"snapshot"`
}

// Scorecard is the live state of a match beside its aggregated rows.
type Scorecard struct {
	Match    model.Match      `json:"match"`
	Snapshot scoring.Snapshot `json:"snapshot"`
	Stats    model.MatchStats `json:"stats"`
}

// CreateMatch validates and stores a new match.
func (s *Service) CreateMatch(ctx context.Context, in MatchInput) (model.Match, error) {
	if err := s.running(); err != nil {
		return model.Match{}, err
	}
	now := time.Now().UTC()
	m := model.Match{ID: in.ID, Home: in.Home, Away: in.Away, Overs: in.Overs, CreatedAt: now, UpdatedAt: now}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	sess, err := scoring.NewSession(m)
	if err != nil {
		return model.Match{}, err
	}
	m = sess.Match()
	if err := s.store.CreateMatch(ctx, m); err != nil {
		return model.Match{}, err
	}
	s.keep(m.ID, sess)
	s.logger.Info(ctx, "match created", logger.String("match_id", m.ID), logger.Int("overs", m.Overs))
	return m, nil
}

// ListMatches returns every stored match.
func (s *Service) ListMatches(ctx context.Context) ([]model.Match, error) {
	return s.store.ListMatches(ctx)
}

// GetMatch returns a match and its live state.
func (s *Service) GetMatch(ctx context.Context, matchID string) (model.Match, scoring.Snapshot, error) {
	var m model.Match
	snap, err := s.view(ctx, matchID, func(sess *scoring.Session) { m = sess.Match() })
	return m, snap, err
}

// SetToss records the toss of a match.
func (s *Service) SetToss(ctx context.Context, matchID string, winner model.Side, decision model.TossDecision) (scoring.Snapshot, error) {
	return s.mutate(ctx, matchID, func(sess *scoring.Session) error {
		return sess.SetToss(winner, decision)
	})
}

// StartInnings opens the next innings.
func (s *Service) StartInnings(ctx context.Context, matchID, striker, nonStriker, bowler string) (model.BallEvent, scoring.Snapshot, error) {
	var ev model.BallEvent
	snap, err := s.mutate(ctx, matchID, func(sess *scoring.Session) error {
		var err error
		ev, err = sess.StartInnings(striker, nonStriker, bowler, s.appendFn(ctx))
		return err
	})
	return ev, snap, err
}

// RecordBall validates and records a delivery. A client event id already
// seen for the match is answered with the original event.
func (s *Service) RecordBall(ctx context.Context, matchID string, p scoring.Proposal) (BallOutcome, error) {
	var out BallOutcome
	snap, err := s.mutate(ctx, matchID, func(sess *scoring.Session) error {
		if p.ClientID != "" {
			prev, dup, err := s.duplicate(ctx, sess, p.ClientID)
			if err != nil {
				return err
			}
			if dup {
				out.Event, out.Duplicate = prev, true
				return nil
			}
		}

		ev, err := sess.Record(p, s.appendFn(ctx))
		if errors.Is(err, repository.ErrDuplicateEvent) {
			prev, lookupErr := s.store.EventByClientID(ctx, matchID, p.ClientID)
			if lookupErr != nil {
				return errors.Join(err, lookupErr)
			}
			out.Event, out.Duplicate = prev, true
			return nil
		}
		if err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				metrics.RecordBallRejected(string(verr.Rule))
			}
			return err
		}

		out.Event = ev
		if ev.ClientID != "" {
			s.deduper.Record(ctx, dedupe.Key(matchID, ev.ClientID), ev.Seq)
		}
		metrics.RecordBallRecorded(string(ev.ExtraType))
		s.schedule(ctx, matchID, ev.Seq)
		return nil
	})
	if err != nil {
		return BallOutcome{}, err
	}
	if out.Duplicate {
		metrics.RecordBallDuplicate()
		s.logger.Debug(ctx, "duplicate delivery", logger.String("match_id", matchID), logger.String("event_id", p.ClientID))
	}
	out.Snapshot = snap
	return out, nil
}

// Undo voids the last delivery of the current innings.
func (s *Service) Undo(ctx context.Context, matchID string) (model.BallEvent, scoring.Snapshot, error) {
	var void model.BallEvent
	snap, err := s.mutate(ctx, matchID, func(sess *scoring.Session) error {
		var err error
		if void, err = sess.Undo(s.appendFn(ctx)); err != nil {
			return err
		}
		metrics.RecordBallVoided()
		s.schedule(ctx, matchID, void.Seq)
		return nil
	})
	return void, snap, err
}

// Balls pages through the ledger: entries after seq `after`, at most limit.
func (s *Service) Balls(ctx context.Context, matchID string, after, limit int) ([]model.BallEvent, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	events, err := s.store.Events(ctx, matchID)
	if err != nil {
		return nil, err
	}
	out := make([]model.BallEvent, 0, min(len(events), max(limit, 0)))
	for _, ev := range events {
		if ev.Seq <= after {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}

// Scorecard returns the live state and the last aggregated rows of a match.
func (s *Service) Scorecard(ctx context.Context, matchID string) (Scorecard, error) {
	m, snap, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return Scorecard{}, err
	}
	stats, err := s.store.MatchStats(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		stats, err = model.MatchStats{MatchID: matchID}, nil
	}
	if err != nil {
		return Scorecard{}, err
	}
	return Scorecard{Match: m, Snapshot: snap, Stats: stats}, nil
}

// mutate runs fn on the match session under the match lock, persists any
// change of match state and publishes the new live state.
func (s *Service) mutate(ctx context.Context, matchID string, fn func(*scoring.Session) error) (scoring.Snapshot, error) {
	var snap scoring.Snapshot
	err := s.locked(ctx, matchID, func(sess *scoring.Session) error {
		before := sess.Match()
		if err := fn(sess); err != nil {
			if errors.Is(err, repository.ErrSeqConflict) || errors.Is(err, scoring.ErrAppend) {
				s.forget(matchID)
			}
			return err
		}
		after := sess.Match()
		if after.State != before.State || after.TossWinner != before.TossWinner {
			if err := s.store.UpdateMatch(ctx, after); err != nil {
				s.forget(matchID)
				return fmt.Errorf("persist match %s: %w", matchID, err)
			}
			s.transition(ctx, before, after)
		}
		snap = sess.Snapshot()
		return nil
	})
	if err != nil {
		return scoring.Snapshot{}, err
	}
	s.publisher.Publish(matchID, "state", snap)
	return snap, nil
}

func (s *Service) view(ctx context.Context, matchID string, fn func(*scoring.Session)) (scoring.Snapshot, error) {
	var snap scoring.Snapshot
	err := s.locked(ctx, matchID, func(sess *scoring.Session) error {
		fn(sess)
		snap = sess.Snapshot()
		return nil
	})
	return snap, err
}

func (s *Service) locked(ctx context.Context, matchID string, fn func(*scoring.Session) error) error {
	if err := s.running(); err != nil {
		return err
	}
	unlock, err := s.locker.Lock(ctx, matchID)
	if err != nil {
		return fmt.Errorf("match %s: %w", matchID, err)
	}
	defer unlock()

	sess, err := s.session(ctx, matchID)
	if err != nil {
		return err
	}
	return fn(sess)
}

// session returns the cached session when it matches the stored ledger and
// otherwise rebuilds it by replay. Only a rebuild reads the ledger itself.
// Callers hold the match lock.
func (s *Service) session(ctx context.Context, matchID string) (*scoring.Session, error) {
	stored, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	last, err := s.store.LastSeq(ctx, matchID)
	if err != nil {
		return nil, err
	}

	s.sessMu.Lock()
	sess := s.sessions[matchID]
	s.sessMu.Unlock()
	if sess != nil && sess.Seq() == last && sess.Match().TossWinner == stored.TossWinner {
		return sess, nil
	}

	events, err := s.store.Events(ctx, matchID)
	if err != nil {
		return nil, err
	}
	sess, err = scoring.Replay(stored, events)
	if err != nil {
		return nil, fmt.Errorf("replay match %s: %w", matchID, err)
	}
	s.logger.Debug(ctx, "session rebuilt from ledger", logger.String("match_id", matchID), logger.Int("seq", last))
	s.keep(matchID, sess)
	return sess, nil
}

// duplicate finds an earlier delivery with the same client id.
func (s *Service) duplicate(ctx context.Context, sess *scoring.Session, clientID string) (model.BallEvent, bool, error) {
	matchID := sess.Match().ID
	key := dedupe.Key(matchID, clientID)
	if seq, ok := s.deduper.Lookup(ctx, key); ok {
		if events := sess.Events(); seq >= 1 && seq <= len(events) && events[seq-1].ClientID == clientID {
			return events[seq-1], true, nil
		}
	}
	ev, err := s.store.EventByClientID(ctx, matchID, clientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.BallEvent{}, false, nil
	case err != nil:
		return model.BallEvent{}, false, err
	}
	s.deduper.Record(ctx, key, ev.Seq)
	return ev, true, nil
}

func (s *Service) appendFn(ctx context.Context) scoring.AppendFunc {
	return func(ev model.BallEvent) error {
		start := time.Now()
		defer func() { metrics.RecordLedgerAppendLatency(metrics.Since(start)) }()
		return s.store.AppendEvent(ctx, ev)
	}
}

func (s *Service) transition(ctx context.Context, before, after model.Match) {
	switch after.State {
	case model.StateInningsComplete:
		metrics.RecordInningsCompleted()
	case model.StateMatchComplete:
		if before.State == model.StateInningsInProgress {
			metrics.RecordInningsCompleted()
		}
		label := "tie"
		if r := after.Result; r != nil && !r.Tie {
			label = r.By
		}
		metrics.RecordMatchCompleted(label)
		s.logger.Info(ctx, "match complete", logger.String("match_id", after.ID), logger.String("result", after.Result.String()))
	}
	s.sessMu.Lock()
	s.updateLiveGauge()
	s.sessMu.Unlock()
}

func (s *Service) keep(matchID string, sess *scoring.Session) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	s.sessions[matchID] = sess
	s.updateLiveGauge()
}

func (s *Service) forget(matchID string) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	delete(s.sessions, matchID)
}
