// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/adapters/lock"
	"github.com/okian/crease/internal/adapters/repository"
	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/rating"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/internal/domain/selection"
	"github.com/okian/crease/pkg/logger"
)

const (
	defaultBallPage = 500
	maxBodyBytes    = 8 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	CreateMatch(ctx context.Context, in service.MatchInput) (model.Match, error)
	ListMatches(ctx context.Context) ([]model.Match, error)
	GetMatch(ctx context.Context, matchID string) (model.Match, scoring.Snapshot, error)
	SetToss(ctx context.Context, matchID string, winner model.Side, decision model.TossDecision) (scoring.Snapshot, error)
	StartInnings(ctx context.Context, matchID, striker, nonStriker, bowler string) (model.BallEvent, scoring.Snapshot, error)
	RecordBall(ctx context.Context, matchID string, p scoring.Proposal) (service.BallOutcome, error)
	Undo(ctx context.Context, matchID string) (model.BallEvent, scoring.Snapshot, error)
	Balls(ctx context.Context, matchID string, after, limit int) ([]model.BallEvent, error)
	Scorecard(ctx context.Context, matchID string) (service.Scorecard, error)

	History(ctx context.Context) ([]history.Record, error)
	SetAvailability(ctx context.Context, playerID string, available bool) error
	Rate(ctx context.Context, recs []history.Record) ([]rating.Result, error)
	Team(ctx context.Context, recs []history.Record) (selection.Team, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBallPage caps the limit of a ledger page.
func WithMaxBallPage(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBallPage = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStats adds a source of runtime counters to GET /stats.
func WithStats(p StatsProvider) Option {
	return func(s *Server) {
		if p != nil {
			s.extraStats = append(s.extraStats, p)
		}
	}
}

// Server wires HTTP routes for the scoring and rating API.
type Server struct {
	deps          Dependencies
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	maxBallPage   int
	extraStats    []StatsProvider
	logger        logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		healthHandler: NewHealthHandler(),
		maxBallPage:   defaultBallPage,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	s.statsHandler = NewStatsHandler(append([]StatsProvider{deps}, s.extraStats...)...)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	routes := []struct {
		pattern, name string
		handler       http.HandlerFunc
	}{
		{"GET /healthz", "healthz", s.healthHandler.HandleHealth},
		{"GET /stats", "stats", s.statsHandler.HandleStats},
		{"POST /matches", "create_match", s.handleCreateMatch},
		{"GET /matches", "list_matches", s.handleListMatches},
		{"GET /matches/{id}", "get_match", s.handleGetMatch},
		{"POST /matches/{id}/toss", "toss", s.handleToss},
		{"POST /matches/{id}/innings", "start_innings", s.handleStartInnings},
		{"POST /matches/{id}/balls", "record_ball", s.handleRecordBall},
		{"GET /matches/{id}/balls", "list_balls", s.handleListBalls},
		{"POST /matches/{id}/undo", "undo", s.handleUndo},
		{"GET /matches/{id}/scorecard", "scorecard", s.handleScorecard},
		{"GET /players/history", "history", s.handleHistory},
		{"PUT /players/{id}/availability", "availability", s.handleAvailability},
		{"POST /rate", "rate", s.handleRate},
		{"POST /team", "team", s.handleTeam},
	}
	for _, r := range routes {
		mux.HandleFunc(r.pattern, MetricsMiddleware(r.handler, r.name))
	}
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Rule    string   `json:"rule,omitempty"`
	Source  string   `json:"source,omitempty"`
	Row     int      `json:"row,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Player  string   `json:"player,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Rule = string(verr.Rule)
	}
	var serr *model.SchemaError
	if errors.As(err, &serr) {
		resp.Source, resp.Row, resp.Columns, resp.Player = serr.Source, serr.Row, serr.Columns, serr.Player
	}
	writeJSON(w, status, resp)
}

// fail maps a domain error kind onto its status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, model.ErrValidation):
		status, code = http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, model.ErrSchema):
		status, code = http.StatusBadRequest, "schema_error"
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrUnknownRole):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnsupported):
		status, code = http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrMatchExists):
		status, code = http.StatusConflict, "match_exists"
	case errors.Is(err, lock.ErrTimeout), errors.Is(err, repository.ErrSeqConflict):
		status, code = http.StatusConflict, "match_busy"
	case errors.Is(err, scoring.ErrNothingUndo):
		status, code = http.StatusConflict, "nothing_to_undo"
	case errors.Is(err, service.ErrNotStarted):
		status, code = http.StatusServiceUnavailable, "not_started"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", logger.String("path", r.URL.Path), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func decode(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
