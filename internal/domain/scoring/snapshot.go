package scoring

import "github.com/okian/crease/internal/domain/model"

// Snapshot is a read-only view of a session for clients.
type Snapshot struct {
	MatchID        string           `json:"match_id"`
	State          model.MatchState `json:"state"`
	Seq            int              `json:"seq"`
	Overs          int              `json:"overs"`
	Innings        []Innings        `json:"innings"`
	Result         *model.Result    `json:"result,omitempty"`
	RequiredRuns   int              `json:"required_runs,omitempty"`
	BallsRemaining int              `json:"balls_remaining,omitempty"`
}

// Snapshot copies the live state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		MatchID: s.match.ID,
		State:   s.match.State,
		Seq:     s.seq,
		Overs:   s.match.Overs,
		Innings: make([]Innings, 0, len(s.innings)),
	}
	if s.match.Result != nil {
		r := *s.match.Result
		snap.Result = &r
	}
	for _, in := range s.innings {
		snap.Innings = append(snap.Innings, *in.clone())
	}
	if in := s.current(); in != nil && in.Target > 0 && !in.Complete {
		snap.RequiredRuns = in.Target - in.Runs
		snap.BallsRemaining = s.match.Overs*model.BallsPerOver - in.LegalBalls
	}
	return snap
}

// Current returns a copy of the latest innings, if any.
func (s *Session) Current() (Innings, bool) {
	in := s.current()
	if in == nil {
		return Innings{}, false
	}
	return *in.clone(), true
}
