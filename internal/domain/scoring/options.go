package scoring

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to a Session.
type Option func(*Session)

// WithClock sets the time source stamped on new events.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDFunc sets the generator for event ids.
func WithIDFunc(newID func() string) Option {
	return func(s *Session) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func defaults(s *Session) {
	s.now = func() time.Time { return time.Now().UTC() }
	s.newID = uuid.NewString
}
