package api

import (
	"mime"
	"net/http"

	"github.com/okian/crease/internal/adapters/ingest"
	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/pkg/logger"
)

const csvContentType = "text/csv; charset=utf-8"

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.History(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsCSV(r) {
		w.Header().Set("Content-Type", csvContentType)
		if err := ingest.WriteHistory(w, recs); err != nil {
			s.logger.Error(r.Context(), "write history", logger.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	const op = "api.availability"
	var req availabilityRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Available == nil {
		s.fail(w, r, NewKind(op, ErrBadRequest))
		return
	}
	id := r.PathValue("id")
	if err := s.deps.SetAvailability(r.Context(), id, *req.Available); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player_id": id, "available": *req.Available})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	recs, err := records(r, "api.rate")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	results, err := s.deps.Rate(r.Context(), recs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsCSV(r) {
		w.Header().Set("Content-Type", csvContentType)
		if err := ingest.WriteRatings(w, results); err != nil {
			s.logger.Error(r.Context(), "write ratings", logger.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	recs, err := records(r, "api.team")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	team, err := s.deps.Team(r.Context(), recs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsCSV(r) {
		w.Header().Set("Content-Type", csvContentType)
		if err := ingest.WriteTeam(w, team); err != nil {
			s.logger.Error(r.Context(), "write team", logger.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// records reads a history-mode CSV body. No body means the ledger history.
func records(r *http.Request, op string) ([]history.Record, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || r.ContentLength == 0 {
		return nil, nil
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, WrapKind(op, ErrBadRequest, err)
	}
	if mt != "text/csv" {
		return nil, NewKind(op, ErrUnsupported)
	}
	return ingest.ReadHistory(http.MaxBytesReader(nil, r.Body, maxBodyBytes), "request")
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}
