package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/scoring"
)

type tossRequest struct {
	Winner   model.Side         `json:"winner"`
	Decision model.TossDecision `json:"decision"`
}

type inningsRequest struct {
	Striker    string `json:"striker"`
	NonStriker string `json:"non_striker"`
	Bowler     string `json:"bowler"`
}

func (r inningsRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Striker) == "":
		return errors.New("missing striker")
	case strings.TrimSpace(r.NonStriker) == "":
		return errors.New("missing non_striker")
	case strings.TrimSpace(r.Bowler) == "":
		return errors.New("missing bowler")
	}
	return nil
}

type matchResponse struct {
	Match    model.Match      `json:"match"`
	Snapshot scoring.Snapshot `json:"snapshot"`
}

type eventResponse struct {
	Event    model.BallEvent  `json:"event"`
	Snapshot scoring.Snapshot `json:"snapshot"`
}

type ballResponse struct {
	Status string `json:"status"`
	service.BallOutcome
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_match"
	var in service.MatchInput
	if err := decode(r, op, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.deps.CreateMatch(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.deps.ListMatches(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	m, snap, err := s.deps.GetMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Match: m, Snapshot: snap})
}

func (s *Server) handleToss(w http.ResponseWriter, r *http.Request) {
	const op = "api.toss"
	var req tossRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.deps.SetToss(r.Context(), r.PathValue("id"), req.Winner, req.Decision)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStartInnings(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_innings"
	var req inningsRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, snap, err := s.deps.StartInnings(r.Context(), r.PathValue("id"), req.Striker, req.NonStriker, req.Bowler)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventResponse{Event: ev, Snapshot: snap})
}

func (s *Server) handleRecordBall(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_ball"
	var p scoring.Proposal
	if err := decode(r, op, &p); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(p.Bowler) == "" {
		s.fail(w, r, WrapKind(op, ErrBadRequest, errors.New("missing bowler")))
		return
	}
	out, err := s.deps.RecordBall(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if out.Duplicate {
		writeJSON(w, http.StatusOK, ballResponse{Status: "duplicate", BallOutcome: out})
		return
	}
	writeJSON(w, http.StatusCreated, ballResponse{Status: "accepted", BallOutcome: out})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	ev, snap, err := s.deps.Undo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Event: ev, Snapshot: snap})
}

func (s *Server) handleListBalls(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_balls"
	q := r.URL.Query()
	after, err := queryInt(q.Get("after"), 0)
	if err != nil || after < 0 {
		s.fail(w, r, NewKind(op, ErrBadRequest))
		return
	}
	limit, err := queryInt(q.Get("limit"), s.maxBallPage)
	if err != nil || limit < 1 {
		s.fail(w, r, NewKind(op, ErrBadRequest))
		return
	}
	balls, err := s.deps.Balls(r.Context(), r.PathValue("id"), after, min(limit, s.maxBallPage))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balls)
}

func (s *Server) handleScorecard(w http.ResponseWriter, r *http.Request) {
	card, err := s.deps.Scorecard(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
