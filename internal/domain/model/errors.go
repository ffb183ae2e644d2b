package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds.
var (
	ErrValidation  = errors.New("validation failed")
	ErrSchema      = errors.New("schema error")
	ErrUnknownRole = errors.New("unknown role")
	ErrMalformed   = errors.New("malformed value")
	ErrStaleStats  = errors.New("newer stats already stored")
)

// Rule names the validation rule a proposal failed.
type Rule string

// Rules.
const (
	RuleSetup     Rule = "setup"
	RuleState     Rule = "state"
	RuleRuns      Rule = "runs"
	RuleExtras    Rule = "extras"
	RuleDismissal Rule = "dismissal"
	RuleBowler    Rule = "bowler"
	RuleBatter    Rule = "batter"
	RuleStriker   Rule = "striker"
)

// ValidationError is returned when a setup or ball proposal breaks a rule.
// Nothing is changed when it is returned.
type ValidationError struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(rule Rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SchemaError reports unusable input: missing columns, malformed cells,
// unknown roles or an invalid weight configuration.
type SchemaError struct {
	Source  string   `json:"source"`
	Row     int      `json:"row,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Player  string   `json:"player,omitempty"`
	Message string   `json:"message"`
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(e.Source)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if len(e.Columns) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Columns, ", "))
	}
	if e.Player != "" {
		fmt.Fprintf(&b, " player %q", e.Player)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Is matches ErrSchema.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }
