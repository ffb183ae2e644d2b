// Package rating scores players from their cumulative history.
//
// Every metric is min-max normalised over the players of one run for whom
// it is defined, so a rating is relative to the pool it was computed in.
package rating

import (
	"fmt"
	"sort"

	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/reliability"
	"github.com/okian/crease/internal/domain/weights"
	"github.com/okian/crease/pkg/metrics"
)

// Result is one player's rating.
type Result struct {
	PlayerID   string     `json:"player_id"`
	PlayerName string     `json:"player_name"`
	Role       model.Role `json:"role"`
	Available  bool       `json:"available"`
	Batting    float64    `json:"batting_score"`
	Bowling    float64    `json:"bowling_score"`
	Fielding   float64    `json:"fielding_score"`
	Rating     float64    `json:"rating"`
	SampleSize int        `json:"sample_size"`
	Adjusted   float64    `json:"adjusted_rating"`
}

// metric extracts one value from a record; ok is false when it is undefined.
type metric struct {
	weight      float64
	lowerBetter bool
	value       func(history.Record) (float64, bool)
}

var battingMetrics = []metric{ //nolint:gochecknoglobals // fixed formula
	{weight: 0.45, value: func(r history.Record) (float64, bool) {
		return r.Batting.Average, r.Batting.Innings > 0
	}},
	{weight: 0.25, value: func(r history.Record) (float64, bool) {
		return r.Batting.StrikeRate, r.Batting.Innings > 0
	}},
	{weight: 0.30, value: func(r history.Record) (float64, bool) {
		return model.Ratio(float64(r.Batting.Runs), float64(r.Batting.Innings)), r.Batting.Innings > 0
	}},
}

var bowlingMetrics = []metric{ //nolint:gochecknoglobals // fixed formula
	{weight: 0.35, value: func(r history.Record) (float64, bool) {
		return float64(r.Bowling.Wickets) / float64(max(r.Bowling.Innings, 1)), r.Bowling.Balls > 0
	}},
	{weight: 0.30, lowerBetter: true, value: func(r history.Record) (float64, bool) {
		return r.Bowling.Economy, r.Bowling.Balls > 0
	}},
	{weight: 0.20, lowerBetter: true, value: func(r history.Record) (float64, bool) {
		return r.Bowling.Average, r.Bowling.Balls > 0 && r.Bowling.Wickets > 0
	}},
	{weight: 0.15, lowerBetter: true, value: func(r history.Record) (float64, bool) {
		return r.Bowling.StrikeRate, r.Bowling.Balls > 0 && r.Bowling.Wickets > 0
	}},
}

var fieldingMetrics = []metric{ //nolint:gochecknoglobals // fixed formula
	{weight: 0.6, value: func(r history.Record) (float64, bool) {
		f := r.Fielding
		return float64(f.Catches+f.CaughtBehind) / float64(max(f.Matches, 1)), f.Matches > 0
	}},
	{weight: 0.4, value: func(r history.Record) (float64, bool) {
		f := r.Fielding
		return float64(f.Stumpings+f.RunOuts) / float64(max(f.Matches, 1)), f.Matches > 0
	}},
}

// Rate computes sub-scores, the role-weighted rating and the reliability
// adjusted rating for every record. Results are sorted by rating, highest
// first, then by player id. A record whose role has no weight vector fails
// the whole run before anything is scored.
func Rate(records []history.Record, cfg weights.Config) ([]Result, error) {
	for _, rec := range records {
		if _, ok := cfg.Weights(rec.Role); !ok {
			return nil, &model.SchemaError{
				Source:  "rating",
				Columns: []string{"role"},
				Player:  rec.PlayerID,
				Message: fmt.Sprintf("no weights for role %q", rec.Role),
			}
		}
	}

	bat := score(records, battingMetrics)
	bowl := score(records, bowlingMetrics)
	field := score(records, fieldingMetrics)

	out := make([]Result, len(records))
	for i, rec := range records {
		w, _ := cfg.Weights(rec.Role)
		base := w.Batting*bat[i] + w.Bowling*bowl[i] + w.Fielding*field[i]
		n := reliability.SampleSize(rec.Role, rec)
		out[i] = Result{
			PlayerID:   rec.PlayerID,
			PlayerName: rec.PlayerName,
			Role:       rec.Role,
			Available:  rec.Available,
			Batting:    model.Round2(bat[i]),
			Bowling:    model.Round2(bowl[i]),
			Fielding:   model.Round2(field[i]),
			Rating:     model.Round2(base),
			SampleSize: n,
			Adjusted:   model.Round2(reliability.Adjust(base, n, w.K, w.Prior)),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	metrics.RecordRatingRun(len(out))
	return out, nil
}

// score returns a 0-100 sub-score per record, aligned with records.
func score(records []history.Record, ms []metric) []float64 {
	scores := make([]float64, len(records))
	for _, m := range ms {
		vals := make([]float64, len(records))
		defined := make([]bool, len(records))
		lo, hi, seen := 0.0, 0.0, false
		for i, rec := range records {
			v, ok := m.value(rec)
			if !ok {
				continue
			}
			vals[i], defined[i] = v, true
			if !seen || v < lo {
				lo = v
			}
			if !seen || v > hi {
				hi = v
			}
			seen = true
		}
		for i := range records {
			if defined[i] {
				scores[i] += 100 * m.weight * normalise(vals[i], lo, hi, m.lowerBetter)
			}
		}
	}
	return scores
}

func normalise(v, lo, hi float64, lowerBetter bool) float64 {
	if hi == lo {
		return 1
	}
	if lowerBetter {
		return (hi - v) / (hi - lo)
	}
	return (v - lo) / (hi - lo)
}
