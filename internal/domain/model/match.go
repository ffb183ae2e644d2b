// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Side identifies one of the two teams in a match.
type Side string

// Sides.
const (
	Home Side = "home"
	Away Side = "away"
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == Home {
		return Away
	}
	return Home
}

// Valid reports whether s is home or away.
func (s Side) Valid() bool { return s == Home || s == Away }

// TossDecision is what the toss winner chose to do.
type TossDecision string

// Toss decisions.
const (
	TossBat  TossDecision = "bat"
	TossBowl TossDecision = "bowl"
)

// MatchState is the lifecycle stage of a match.
type MatchState string

// Match states.
const (
	StateNotStarted        MatchState = "not_started"
	StateTossSet           MatchState = "toss_set"
	StateInningsInProgress MatchState = "innings_in_progress"
	StateInningsComplete   MatchState = "innings_complete"
	StateMatchComplete     MatchState = "match_complete"
)

// Player is a squad member with a declared role.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Team is a named squad.
type Team struct {
	Name    string   `json:"name"`
	Players []Player `json:"players"`
}

// Has reports whether playerID is in the squad.
func (t Team) Has(playerID string) bool {
	_, ok := t.Player(playerID)
	return ok
}

// Player finds a squad member by id.
func (t Team) Player(playerID string) (Player, bool) {
	for _, p := range t.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

// Result describes how a completed match ended.
type Result struct {
	Winner Side   `json:"winner,omitempty"` // empty for a tie
	Tie    bool   `json:"tie"`
	Margin int    `json:"margin"`
	By     string `json:"by,omitempty"` // "runs" or "wickets"
}

// String renders a scoreboard summary.
func (r Result) String() string {
	if r.Tie {
		return "match tied"
	}
	return fmt.Sprintf("%s won by %d %s", r.Winner, r.Margin, r.By)
}

// Match is the setup of a two-innings limited-overs game plus its lifecycle fields.
// Squads and overs are fixed once the first innings starts.
type Match struct {
	ID           string       `json:"id"`
	Home         Team         `json:"home"`
	Away         Team         `json:"away"`
	Overs        int          `json:"overs"`
	TossWinner   Side         `json:"toss_winner,omitempty"`
	TossDecision TossDecision `json:"toss_decision,omitempty"`
	State        MatchState   `json:"state"`
	Result       *Result      `json:"result,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Team returns the squad for a side.
func (m Match) Team(s Side) Team {
	if s == Home {
		return m.Home
	}
	return m.Away
}

// BattingFirst is the side that bats in the first innings; empty before the toss.
func (m Match) BattingFirst() Side {
	switch m.TossDecision {
	case TossBat:
		return m.TossWinner
	case TossBowl:
		return m.TossWinner.Other()
	}
	return ""
}

// BattingSide returns the side batting in the given innings (1 or 2).
func (m Match) BattingSide(innings int) Side {
	first := m.BattingFirst()
	if innings == 2 {
		return first.Other()
	}
	return first
}

// SideOf returns the side a player belongs to.
func (m Match) SideOf(playerID string) (Side, bool) {
	if m.Home.Has(playerID) {
		return Home, true
	}
	if m.Away.Has(playerID) {
		return Away, true
	}
	return "", false
}

// Validate checks the match setup: positive overs, squads of at least two
// with unique ids across both sides and declared roles.
func (m Match) Validate() error {
	if m.Overs < 1 {
		return NewValidationError(RuleSetup, "overs must be at least 1")
	}
	seen := make(map[string]Side)
	for _, side := range []Side{Home, Away} {
		team := m.Team(side)
		if strings.TrimSpace(team.Name) == "" {
			return NewValidationError(RuleSetup, "%s team needs a name", side)
		}
		if len(team.Players) < 2 {
			return NewValidationError(RuleSetup, "%s squad needs at least 2 players", side)
		}
		for _, p := range team.Players {
			if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
				return NewValidationError(RuleSetup, "%s squad has a player without id or name", side)
			}
			if !p.Role.Valid() {
				return NewValidationError(RuleSetup, "player %s has unknown role %q", p.ID, p.Role)
			}
			if prev, dup := seen[p.ID]; dup {
				return NewValidationError(RuleSetup, "player %s listed twice (%s and %s)", p.ID, prev, side)
			}
			seen[p.ID] = side
		}
	}
	return nil
}
