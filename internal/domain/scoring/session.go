// Package scoring implements the live scoring state machine for one match.
//
// A Session owns the state of a single match. It is not safe for concurrent
// use: callers serialise writers per match (see internal/adapters/lock).
// Every mutation drafts an event, hands it to an AppendFunc for durable
// storage, and only changes in-memory state once the append succeeded.
package scoring

import (
	"fmt"
	"slices"
	"time"

	"github.com/okian/crease/internal/domain/model"
)

// AppendFunc durably records an event. A nil AppendFunc skips persistence.
type AppendFunc func(model.BallEvent) error

// Proposal is a delivery as submitted by a scorer.
type Proposal struct {
	ClientID       string          `json:"event_id,omitempty"`
	Striker        string          `json:"striker,omitempty"` // optional cross-check against live state
	Bowler         string          `json:"bowler"`
	RunsOffBat     int             `json:"runs_off_bat"`
	ExtraType      model.ExtraType `json:"extra_type,omitempty"`
	Extras         int             `json:"extras"`
	Wicket         *model.Wicket   `json:"wicket,omitempty"`
	IncomingBatter string          `json:"incoming_batter,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// Session is the match-scoped scoring state machine.
type Session struct {
	match   model.Match
	innings []*Innings
	events  []model.BallEvent
	seq     int

	now   func() time.Time
	newID func() string
}

// NewSession validates the match setup and returns a session ready for the toss.
func NewSession(match model.Match, opts ...Option) (*Session, error) {
	if err := match.Validate(); err != nil {
		return nil, err
	}
	s := &Session{match: match}
	defaults(s)
	for _, opt := range opts {
		opt(s)
	}
	s.match.Result = nil
	s.match.State = model.StateNotStarted
	if s.match.TossWinner != "" {
		s.match.State = model.StateTossSet
	}
	return s, nil
}

// Replay rebuilds a session from a match setup and its full ledger.
func Replay(match model.Match, events []model.BallEvent, opts ...Option) (*Session, error) {
	s, err := NewSession(match, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.replay(events); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) replay(events []model.BallEvent) error {
	for _, ev := range model.Effective(events) {
		switch ev.Kind {
		case model.KindInningsStart:
			if err := s.checkStart(ev.Striker, ev.NonStriker, ev.Bowler); err != nil {
				return fmt.Errorf("%w: seq %d: %w", ErrCorrupt, ev.Seq, err)
			}
			s.startInnings(ev)
		case model.KindDelivery:
			in := s.current()
			if err := s.validateDelivery(in, &ev); err != nil {
				return fmt.Errorf("%w: seq %d: %w", ErrCorrupt, ev.Seq, err)
			}
			next := in.clone()
			next.apply(&ev)
			s.commitDelivery(next)
		}
	}
	s.events = slices.Clone(events)
	if n := len(events); n > 0 {
		s.seq = events[n-1].Seq
	}
	return nil
}

// Match returns a copy of the match with its current state and result.
func (s *Session) Match() model.Match { return s.match }

// Seq is the sequence number of the last ledger entry.
func (s *Session) Seq() int { return s.seq }

// Events returns a copy of the full ledger, void events included.
func (s *Session) Events() []model.BallEvent { return slices.Clone(s.events) }

// SetToss records the toss and fixes the batting order.
func (s *Session) SetToss(winner model.Side, decision model.TossDecision) error {
	if s.match.State != model.StateNotStarted {
		return model.NewValidationError(model.RuleState, "toss already set (match is %s)", s.match.State)
	}
	if !winner.Valid() {
		return model.NewValidationError(model.RuleSetup, "toss winner must be home or away, got %q", winner)
	}
	if decision != model.TossBat && decision != model.TossBowl {
		return model.NewValidationError(model.RuleSetup, "toss decision must be bat or bowl, got %q", decision)
	}
	s.match.TossWinner, s.match.TossDecision = winner, decision
	s.match.State = model.StateTossSet
	s.match.UpdatedAt = s.now()
	return nil
}

// StartInnings opens the next innings with its openers and opening bowler.
func (s *Session) StartInnings(striker, nonStriker, bowler string, appendFn AppendFunc) (model.BallEvent, error) {
	if err := s.checkStart(striker, nonStriker, bowler); err != nil {
		return model.BallEvent{}, err
	}
	ev := s.draft(model.KindInningsStart)
	ev.Innings = len(s.innings) + 1
	ev.Striker, ev.NonStriker, ev.Bowler = striker, nonStriker, bowler
	if err := s.append(appendFn, ev); err != nil {
		return model.BallEvent{}, err
	}
	s.startInnings(ev)
	return ev, nil
}

func (s *Session) checkStart(striker, nonStriker, bowler string) error {
	switch s.match.State {
	case model.StateTossSet, model.StateInningsComplete:
	default:
		return model.NewValidationError(model.RuleState, "cannot start an innings while match is %s", s.match.State)
	}
	batting := s.match.BattingSide(len(s.innings) + 1)
	return s.validateStart(striker, nonStriker, bowler, batting, batting.Other())
}

func (s *Session) startInnings(ev model.BallEvent) {
	batting := s.match.BattingSide(ev.Innings)
	in := &Innings{
		Number:      ev.Innings,
		BattingSide: batting,
		BowlingSide: batting.Other(),
		Overs:       model.FormatOvers(0),
		Striker:     ev.Striker,
		NonStriker:  ev.NonStriker,
		Bowler:      ev.Bowler,
		Batted:      []string{ev.Striker, ev.NonStriker},
		Dismissed:   []string{},
	}
	if ev.Innings == 2 {
		in.Target = s.innings[0].Runs + 1
	}
	s.innings = append(s.innings, in)
	s.match.State = model.StateInningsInProgress
	s.match.UpdatedAt = ev.RecordedAt
}

// Record validates a proposal, appends the resulting delivery and applies it.
// On any error the session is unchanged.
func (s *Session) Record(p Proposal, appendFn AppendFunc) (model.BallEvent, error) {
	in := s.current()

	ev := s.draft(model.KindDelivery)
	ev.ClientID = p.ClientID
	ev.Bowler = p.Bowler
	ev.RunsOffBat = p.RunsOffBat
	ev.ExtraType = p.ExtraType
	if ev.ExtraType == "" {
		ev.ExtraType = model.ExtraNone
	}
	ev.Extras = p.Extras
	ev.Wicket = p.Wicket
	ev.IncomingBatter = p.IncomingBatter
	ev.Notes = p.Notes
	if in != nil {
		ev.Innings = in.Number
		ev.Striker, ev.NonStriker = in.Striker, in.NonStriker
		if p.Striker != "" {
			ev.Striker = p.Striker
		}
		ev.Over, ev.BallInOver = in.over(), in.ballInOver()
		ev.Legal = ev.ExtraType.Legal()
	}

	if err := s.validateDelivery(in, &ev); err != nil {
		return model.BallEvent{}, err
	}

	next := in.clone()
	next.apply(&ev)
	if ev.Wicket != nil {
		if s.inningsOver(next) && ev.IncomingBatter != "" {
			// nobody walks in after the last wicket or ball
			ev.IncomingBatter = ""
			next = in.clone()
			next.apply(&ev)
		} else if !s.inningsOver(next) && ev.IncomingBatter == "" {
			return model.BallEvent{}, model.NewValidationError(model.RuleBatter, "wicket needs the incoming batter")
		}
	}

	if err := s.append(appendFn, ev); err != nil {
		return model.BallEvent{}, err
	}
	s.commitDelivery(next)
	return ev, nil
}

// Undo appends a void event for the last delivery of the latest innings and
// rebuilds the live state from the remaining ledger.
func (s *Session) Undo(appendFn AppendFunc) (model.BallEvent, error) {
	in := s.current()
	if in == nil {
		return model.BallEvent{}, ErrNothingUndo
	}
	target := -1
	for _, ev := range model.Effective(s.events) {
		if ev.Kind == model.KindDelivery && ev.Innings == in.Number {
			target = ev.Seq
		}
	}
	if target < 0 {
		return model.BallEvent{}, ErrNothingUndo
	}

	void := s.draft(model.KindVoid)
	void.Innings = in.Number
	void.VoidsSeq = target

	rebuilt, err := NewSession(s.setup(), WithClock(s.now), WithIDFunc(s.newID))
	if err != nil {
		return model.BallEvent{}, err
	}
	if err := rebuilt.replay(append(slices.Clone(s.events), void)); err != nil {
		return model.BallEvent{}, err
	}

	if err := s.append(appendFn, void); err != nil {
		return model.BallEvent{}, err
	}
	*s = *rebuilt
	return void, nil
}

// setup is the match as it was before any innings began.
func (s *Session) setup() model.Match {
	m := s.match
	m.Result = nil
	m.State = model.StateNotStarted
	return m
}

func (s *Session) draft(kind model.EventKind) model.BallEvent {
	return model.BallEvent{
		ID:         s.newID(),
		MatchID:    s.match.ID,
		Seq:        s.seq + 1,
		Kind:       kind,
		RecordedAt: s.now(),
	}
}

func (s *Session) append(appendFn AppendFunc, ev model.BallEvent) error {
	if appendFn != nil {
		if err := appendFn(ev); err != nil {
			return fmt.Errorf("%w: %w", ErrAppend, err)
		}
	}
	s.events = append(s.events, ev)
	s.seq = ev.Seq
	return nil
}

func (s *Session) current() *Innings {
	if len(s.innings) == 0 {
		return nil
	}
	return s.innings[len(s.innings)-1]
}

func (s *Session) inningsOver(in *Innings) bool {
	squad := len(s.match.Team(in.BattingSide).Players)
	return in.LegalBalls >= s.match.Overs*model.BallsPerOver ||
		in.Wickets >= squad-1 ||
		(in.Target > 0 && in.Runs >= in.Target)
}

func (s *Session) commitDelivery(next *Innings) {
	s.innings[len(s.innings)-1] = next
	if !s.inningsOver(next) {
		return
	}
	next.Complete = true
	next.Bowler = ""
	if next.Number < 2 {
		s.match.State = model.StateInningsComplete
		return
	}
	s.match.State = model.StateMatchComplete
	s.match.Result = s.result()
}

func (s *Session) result() *model.Result {
	first, second := s.innings[0], s.innings[1]
	switch {
	case second.Runs >= second.Target:
		squad := len(s.match.Team(second.BattingSide).Players)
		return &model.Result{Winner: second.BattingSide, Margin: squad - 1 - second.Wickets, By: "wickets"}
	case second.Runs == first.Runs:
		return &model.Result{Tie: true}
	default:
		return &model.Result{Winner: first.BattingSide, Margin: first.Runs - second.Runs, By: "runs"}
	}
}
