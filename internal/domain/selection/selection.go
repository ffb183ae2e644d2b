// Package selection picks a playing XI from rated candidates.
package selection

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/rating"
	"github.com/okian/crease/internal/domain/weights"
	"github.com/okian/crease/pkg/metrics"
)

// ErrConstraintUnsatisfiable reports that some role slots could not be
// filled by eligible players of that role.
var ErrConstraintUnsatisfiable = errors.New("team structure cannot be satisfied")

// Reason explains why a slot holds what it holds.
type Reason string

// Reasons.
const (
	ReasonDefault       Reason = "default"
	ReasonDesiredRating Reason = "desired_rating"
	ReasonEmerging      Reason = "emerging_slot"
	ReasonBackfill      Reason = "backfill"
	ReasonBlank         Reason = "blank_slot"
)

// Pick is one slot of the team sheet. Blank slots carry no player.
type Pick struct {
	Role           model.Role `json:"role"`
	PlayerID       string     `json:"player_id,omitempty"`
	PlayerName     string     `json:"player_name,omitempty"`
	PlayerRole     model.Role `json:"player_role,omitempty"`
	SelectionScore float64    `json:"selection_score"`
	BaseRating     float64    `json:"base_rating"`
	SampleSize     int        `json:"sample_size"`
	Reason         Reason     `json:"reason"`
	Batting        float64    `json:"batting_score"`
	Bowling        float64    `json:"bowling_score"`
	Fielding       float64    `json:"fielding_score"`
}

// Blank reports whether the slot is empty.
func (p Pick) Blank() bool { return p.Reason == ReasonBlank }

// Threshold is the desired rating of a role; Defined is false for an empty pool.
type Threshold struct {
	Role      model.Role `json:"role"`
	Threshold float64    `json:"desired_rating_threshold"`
	Defined   bool       `json:"defined"`
}

// Shortfall is a role that its own players could not fill.
type Shortfall struct {
	Role       model.Role `json:"role"`
	Requested  int        `json:"requested"`
	Filled     int        `json:"filled"`
	Backfilled int        `json:"backfilled"`
	Blank      int        `json:"blank"`
}

// Team is the selector's output.
type Team struct {
	Thresholds []Threshold `json:"desired_rating_thresholds"`
	XI         []Pick      `json:"playing_xi"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

// Err wraps ErrConstraintUnsatisfiable with every shortfall, or returns nil.
func (t Team) Err() error {
	if len(t.Shortfalls) == 0 {
		return nil
	}
	parts := make([]string, len(t.Shortfalls))
	for i, s := range t.Shortfalls {
		parts[i] = fmt.Sprintf("%s %d/%d", s.Role, s.Filled, s.Requested)
	}
	return fmt.Errorf("%w: %s", ErrConstraintUnsatisfiable, strings.Join(parts, ", "))
}

// Select fills the team structure. Only available players are ever placed
// and every role yields exactly its requested number of slots, filled or blank.
func Select(candidates []rating.Result, cfg weights.Config) Team {
	var team Team
	byRole := make(map[model.Role][]rating.Result)
	for _, c := range candidates {
		byRole[c.Role] = append(byRole[c.Role], c)
	}
	for _, pool := range byRole {
		rank(pool)
	}

	taken := make(map[string]bool)
	picks := make(map[model.Role][]Pick)
	for _, role := range model.SelectionOrder {
		count := cfg.TeamStructure[role]
		if count <= 0 {
			continue
		}
		pool := byRole[role]
		th := threshold(role, pool, count)
		team.Thresholds = append(team.Thresholds, th)

		reason := ReasonDefault
		if cfg.DesiredRatingFilter {
			reason = ReasonDesiredRating
		}
		var eligible []rating.Result
		for _, c := range pool {
			if !c.Available {
				continue
			}
			if cfg.DesiredRatingFilter && c.Adjusted < th.Threshold {
				continue
			}
			eligible = append(eligible, c)
		}

		chosen := make([]Pick, 0, count)
		for _, c := range eligible[:min(count, len(eligible))] {
			chosen = append(chosen, pick(role, c, reason))
		}
		if cfg.Emerging.Enabled {
			bar := cfg.Roles[role].Prior
			if cfg.DesiredRatingFilter && th.Defined {
				bar = th.Threshold
			}
			chosen = emerging(role, pool, chosen, count, cfg.Emerging.MaxInnings, bar)
		}
		for _, p := range chosen {
			taken[p.PlayerID] = true
		}
		picks[role] = chosen
	}

	for _, role := range model.SelectionOrder {
		count := cfg.TeamStructure[role]
		missing := count - len(picks[role])
		if count <= 0 || missing <= 0 {
			continue
		}
		short := Shortfall{Role: role, Requested: count, Filled: len(picks[role])}
		if cfg.Shortfall == weights.ShortfallBackfill {
			for _, c := range backfill(candidates, taken, missing) {
				taken[c.PlayerID] = true
				picks[role] = append(picks[role], pick(role, c, ReasonBackfill))
				short.Backfilled++
			}
			metrics.RecordBackfilledSlots(role.Key(), short.Backfilled)
		}
		for len(picks[role]) < count {
			picks[role] = append(picks[role], Pick{Role: role, Reason: ReasonBlank})
			short.Blank++
		}
		metrics.RecordBlankSlots(role.Key(), short.Blank)
		team.Shortfalls = append(team.Shortfalls, short)
	}

	for _, role := range model.SelectionOrder {
		team.XI = append(team.XI, picks[role]...)
	}
	metrics.RecordSelectionRun()
	return team
}

// rank orders by adjusted rating, then sample size, then base rating, all
// descending, then by player id.
func rank(pool []rating.Result) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		switch {
		case a.Adjusted != b.Adjusted:
			return a.Adjusted > b.Adjusted
		case a.SampleSize != b.SampleSize:
			return a.SampleSize > b.SampleSize
		case a.Rating != b.Rating:
			return a.Rating > b.Rating
		default:
			return a.PlayerID < b.PlayerID
		}
	})
}

// threshold is the adjusted rating of the count-th ranked player of the
// role, unavailable players included.
func threshold(role model.Role, ranked []rating.Result, count int) Threshold {
	if len(ranked) == 0 {
		return Threshold{Role: role}
	}
	return Threshold{Role: role, Threshold: ranked[min(count, len(ranked))-1].Adjusted, Defined: true}
}

// emerging gives one slot to the best available low-sample player of the
// role by base rating. Only a base rating of at least bar qualifies: the
// desired rating when the filter is on, the role prior otherwise. The player
// fills a blank slot, or replaces the weakest pick when its base rating beats
// that pick's adjusted rating.
func emerging(role model.Role, ranked []rating.Result, chosen []Pick, count, maxInnings int, bar float64) []Pick {
	in := make(map[string]bool, len(chosen))
	for _, p := range chosen {
		in[p.PlayerID] = true
	}
	var best *rating.Result
	for i := range ranked {
		c := &ranked[i]
		if !c.Available || in[c.PlayerID] || c.SampleSize >= maxInnings || c.Rating < bar {
			continue
		}
		if best == nil || c.Rating > best.Rating || (c.Rating == best.Rating && c.PlayerID < best.PlayerID) {
			best = c
		}
	}
	if best == nil {
		return chosen
	}
	if len(chosen) < count {
		return append(chosen, pick(role, *best, ReasonEmerging))
	}
	if last := len(chosen) - 1; best.Rating > chosen[last].SelectionScore {
		chosen[last] = pick(role, *best, ReasonEmerging)
	}
	return chosen
}

// backfill returns up to n untaken available players of any role, best first.
func backfill(candidates []rating.Result, taken map[string]bool, n int) []rating.Result {
	var rest []rating.Result
	for _, c := range candidates {
		if c.Available && !taken[c.PlayerID] {
			rest = append(rest, c)
		}
	}
	rank(rest)
	return rest[:min(n, len(rest))]
}

func pick(slot model.Role, c rating.Result, reason Reason) Pick {
	return Pick{
		Role:           slot,
		PlayerID:       c.PlayerID,
		PlayerName:     c.PlayerName,
		PlayerRole:     c.Role,
		SelectionScore: c.Adjusted,
		BaseRating:     c.Rating,
		SampleSize:     c.SampleSize,
		Reason:         reason,
		Batting:        c.Batting,
		Bowling:        c.Bowling,
		Fielding:       c.Fielding,
	}
}
