package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/okian/crease/internal/domain/model"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// offline tool.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]model.Match
	events  map[string][]model.BallEvent
	clients map[string]map[string]int // match -> client id -> index into events
	stats   map[string]model.MatchStats
	players map[string]model.PlayerInfo
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]model.Match),
		events:  make(map[string][]model.BallEvent),
		clients: make(map[string]map[string]int),
		stats:   make(map[string]model.MatchStats),
		players: make(map[string]model.PlayerInfo),
	}
}

func (s *MemoryStore) CreateMatch(_ context.Context, m model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrMatchExists, m.ID)
	}
	s.matches[m.ID] = m
	for _, p := range squadPlayers(m) {
		if prev, ok := s.players[p.ID]; ok {
			p.Available = prev.Available
		}
		s.players[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) UpdateMatch(_ context.Context, m model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; !ok {
		return fmt.Errorf("%w: match %s", ErrNotFound, m.ID)
	}
	s.matches[m.ID] = m
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return model.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, id)
	}
	return m, nil
}

func (s *MemoryStore) ListMatches(_ context.Context) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, ev model.BallEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[ev.MatchID]; !ok {
		return fmt.Errorf("%w: match %s", ErrNotFound, ev.MatchID)
	}
	ledger := s.events[ev.MatchID]
	if want := len(ledger) + 1; ev.Seq != want {
		return fmt.Errorf("%w: match %s got seq %d, want %d", ErrSeqConflict, ev.MatchID, ev.Seq, want)
	}
	if ev.ClientID != "" {
		if _, dup := s.clients[ev.MatchID][ev.ClientID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ClientID)
		}
		if s.clients[ev.MatchID] == nil {
			s.clients[ev.MatchID] = make(map[string]int)
		}
		s.clients[ev.MatchID][ev.ClientID] = len(ledger)
	}
	s.events[ev.MatchID] = append(ledger, ev)
	return nil
}

func (s *MemoryStore) Events(_ context.Context, matchID string) ([]model.BallEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.matches[matchID]; !ok {
		return nil, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	return slices.Clone(s.events[matchID]), nil
}

func (s *MemoryStore) LastSeq(_ context.Context, matchID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.matches[matchID]; !ok {
		return 0, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	return len(s.events[matchID]), nil
}

func (s *MemoryStore) EventByClientID(_ context.Context, matchID, clientID string) (model.BallEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.clients[matchID][clientID]
	if !ok {
		return model.BallEvent{}, fmt.Errorf("%w: event %s", ErrNotFound, clientID)
	}
	return s.events[matchID][i], nil
}

func (s *MemoryStore) ReplaceMatchStats(_ context.Context, stats model.MatchStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.stats[stats.MatchID]; ok && stats.Seq < cur.Seq {
		return fmt.Errorf("%w: match %s at seq %d, stored %d", model.ErrStaleStats, stats.MatchID, stats.Seq, cur.Seq)
	}
	s.stats[stats.MatchID] = stats
	return nil
}

func (s *MemoryStore) MatchStats(_ context.Context, matchID string) (model.MatchStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[matchID]
	if !ok {
		return model.MatchStats{}, fmt.Errorf("%w: stats for match %s", ErrNotFound, matchID)
	}
	return st, nil
}

func (s *MemoryStore) AllStats(_ context.Context) ([]model.MatchStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MatchStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

func (s *MemoryStore) UpsertPlayers(_ context.Context, players []model.PlayerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		s.players[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) SetAvailability(_ context.Context, playerID string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	p.Available = available
	s.players[playerID] = p
	return nil
}

func (s *MemoryStore) Players(_ context.Context) ([]model.PlayerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PlayerInfo, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
