package model

import (
	"fmt"
	"strings"
)

// Role is a player's declared specialism. It is always supplied on input.
type Role string

// Roles.
const (
	RoleBatter       Role = "Batter"
	RoleBowler       Role = "Bowler"
	RoleAllrounder   Role = "Allrounder"
	RoleWicketKeeper Role = "Wicket Keeper"
)

// Roles lists every role in declaration order.
var Roles = []Role{RoleBatter, RoleBowler, RoleAllrounder, RoleWicketKeeper} //nolint:gochecknoglobals // fixed enum

// SelectionOrder is the order roles appear in a team sheet.
var SelectionOrder = []Role{RoleBatter, RoleWicketKeeper, RoleAllrounder, RoleBowler} //nolint:gochecknoglobals // fixed enum

var roleAliases = map[string]Role{ //nolint:gochecknoglobals // lookup table
	"batter":        RoleBatter,
	"batsman":       RoleBatter,
	"bowler":        RoleBowler,
	"allrounder":    RoleAllrounder,
	"all-rounder":   RoleAllrounder,
	"all rounder":   RoleAllrounder,
	"all_rounder":   RoleAllrounder,
	"wicket keeper": RoleWicketKeeper,
	"wicketkeeper":  RoleWicketKeeper,
	"wicket_keeper": RoleWicketKeeper,
	"wicket-keeper": RoleWicketKeeper,
	"keeper":        RoleWicketKeeper,
	"wk":            RoleWicketKeeper,
}

// ParseRole maps a role label, case-insensitively, to its Role.
func ParseRole(s string) (Role, error) {
	if r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the four roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Key is the lower-case snake form used in config files and metrics labels.
func (r Role) Key() string {
	return strings.ReplaceAll(strings.ToLower(string(r)), " ", "_")
}

// UnmarshalText accepts any alias ParseRole knows.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
