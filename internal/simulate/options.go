package simulate

import (
	"time"

	"github.com/okian/crease/internal/domain/model"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithMatches sets how many matches to generate.
func WithMatches(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.matches = n
		}
	}
}

// WithOvers sets the overs per innings.
func WithOvers(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.overs = n
		}
	}
}

// WithSeed fixes the random source. The same seed always yields the same matches.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) { s.seed = seed }
}

// WithWorkers bounds how many matches are played at once.
func WithWorkers(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSquads replaces the generated squads.
func WithSquads(home, away model.Team) Option {
	return func(s *Simulator) { s.home, s.away = home, away }
}

// WithUnavailableRate sets the share of roster players marked unavailable.
func WithUnavailableRate(p float64) Option {
	return func(s *Simulator) {
		if p >= 0 && p <= 1 {
			s.unavailable = p
		}
	}
}

// WithStart sets the timestamp of the first generated match.
func WithStart(t time.Time) Option {
	return func(s *Simulator) { s.start = t }
}
