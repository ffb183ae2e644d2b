// Package weights holds the typed role weighting and team selection configuration.
package weights

import (
	"fmt"
	"sort"

	"github.com/okian/crease/internal/domain/model"
)

// ShortfallPolicy decides what fills slots no eligible player of the role can take.
type ShortfallPolicy string

// Shortfall policies.
const (
	ShortfallBlank    ShortfallPolicy = "blank"
	ShortfallBackfill ShortfallPolicy = "backfill"
)

// RoleWeights blends sub-scores for one role and sets its shrinkage.
type RoleWeights struct {
	Batting  float64 `koanf:"batting" json:"batting"`
	Bowling  float64 `koanf:"bowling" json:"bowling"`
	Fielding float64 `koanf:"fielding" json:"fielding"`
	K        float64 `koanf:"k" json:"k"`
	Prior    float64 `koanf:"prior" json:"prior"`
}

// Emerging controls the one-per-role slot for low-sample players.
type Emerging struct {
	Enabled    bool `koanf:"enabled" json:"enabled"`
	MaxInnings int  `koanf:"max_innings" json:"max_innings"`
}

// Config is the complete weighting and selection configuration.
type Config struct {
	Roles               map[model.Role]RoleWeights `json:"roles"`
	TeamStructure       map[model.Role]int         `json:"team_structure"`
	DesiredRatingFilter bool                       `json:"desired_rating_filter_enabled"`
	Shortfall           ShortfallPolicy            `json:"shortfall_policy"`
	Emerging            Emerging                   `json:"emerging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Roles: map[model.Role]RoleWeights{
			model.RoleBatter:       {Batting: 0.85, Bowling: 0, Fielding: 0.15, K: 20, Prior: 40},
			model.RoleBowler:       {Batting: 0, Bowling: 0.85, Fielding: 0.15, K: 20, Prior: 40},
			model.RoleAllrounder:   {Batting: 0.45, Bowling: 0.45, Fielding: 0.10, K: 20, Prior: 40},
			model.RoleWicketKeeper: {Batting: 0.6, Bowling: 0, Fielding: 0.4, K: 20, Prior: 40},
		},
		TeamStructure: map[model.Role]int{
			model.RoleBatter:       4,
			model.RoleBowler:       3,
			model.RoleAllrounder:   3,
			model.RoleWicketKeeper: 1,
		},
		Shortfall: ShortfallBlank,
		Emerging:  Emerging{Enabled: true, MaxInnings: 12},
	}
}

// Weights returns the weight vector of a role.
func (c Config) Weights(role model.Role) (RoleWeights, bool) {
	w, ok := c.Roles[role]
	return w, ok
}

// TeamSize is the number of slots in the team structure.
func (c Config) TeamSize() int {
	n := 0
	for _, count := range c.TeamStructure {
		n += count
	}
	return n
}

// Validate rejects configurations the rating engine and selector cannot use.
func (c Config) Validate() error {
	for _, role := range sortedRoles(c.Roles) {
		w := c.Roles[role]
		key := "roles." + string(role)
		switch {
		case !role.Valid():
			return schemaErr(key, "unknown role")
		case w.Batting < 0 || w.Bowling < 0 || w.Fielding < 0:
			return schemaErr(key, "weights must not be negative")
		case w.Batting+w.Bowling+w.Fielding == 0:
			return schemaErr(key, "at least one weight must be positive")
		case w.K <= 0:
			return schemaErr(key+".k", fmt.Sprintf("must be positive, got %v", w.K))
		case w.Prior < 0 || w.Prior > 100:
			return schemaErr(key+".prior", fmt.Sprintf("must be within 0..100, got %v", w.Prior))
		}
	}
	for _, role := range sortedRoles(c.TeamStructure) {
		key := "team_structure." + string(role)
		if !role.Valid() {
			return schemaErr(key, "unknown role")
		}
		if c.TeamStructure[role] < 0 {
			return schemaErr(key, "count must not be negative")
		}
	}
	switch c.Shortfall {
	case ShortfallBlank, ShortfallBackfill:
	default:
		return schemaErr("shortfall_policy", fmt.Sprintf("must be blank or backfill, got %q", c.Shortfall))
	}
	if c.Emerging.MaxInnings < 0 {
		return schemaErr("emerging.max_innings", "must not be negative")
	}
	return nil
}

func schemaErr(key, msg string) error {
	return &model.SchemaError{Source: "weights", Columns: []string{key}, Message: msg}
}

func sortedRoles[V any](m map[model.Role]V) []model.Role {
	out := make([]model.Role, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
