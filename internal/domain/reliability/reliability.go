// Package reliability shrinks base ratings toward a role prior in proportion
// to how little evidence backs them.
package reliability

import (
	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/model"
)

// Adjust blends base with prior: n/(n+k)*base + k/(n+k)*prior.
// With n = 0 the result is the prior; as n grows it approaches base.
// A non-positive k disables shrinkage.
func Adjust(base float64, n int, k, prior float64) float64 {
	if n < 0 {
		n = 0
	}
	if k <= 0 {
		return base
	}
	fn := float64(n)
	return fn/(fn+k)*base + k/(fn+k)*prior
}

// SampleSize is the evidence count behind a player's rating: bowling
// innings for bowlers, batting innings for every other role.
func SampleSize(role model.Role, rec history.Record) int {
	if role == model.RoleBowler {
		return rec.Bowling.Innings
	}
	return rec.Batting.Innings
}
