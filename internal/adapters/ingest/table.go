// Package ingest reads the two tabular input modes and writes the tool's
// output tables.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/crease/internal/domain/model"
)

// Mode names an input schema.
type Mode string

// Input modes.
const (
	ModeHistory    Mode = "history"
	ModeBallByBall Mode = "ball_by_ball"
)

// ParseMode accepts a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeHistory, ModeBallByBall:
		return m, nil
	}
	return "", &model.SchemaError{Source: "mode", Message: fmt.Sprintf("unknown input mode %q, want history or ball_by_ball", s)}
}

// table is a CSV body with a header index. Row numbers are 1-based data rows.
type table struct {
	source string
	index  map[string]int
	rows   [][]string
}

func readTable(r io.Reader, source string, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &model.SchemaError{Source: source, Message: "no header row"}
	}
	if err != nil {
		return nil, &model.SchemaError{Source: source, Message: err.Error()}
	}
	t := &table{source: source, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &model.SchemaError{Source: source, Columns: missing, Message: "missing required columns"}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &model.SchemaError{Source: source, Row: len(t.rows) + 1, Message: err.Error()}
		}
		if blank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// cursor reads the cells of one row and remembers the first error.
type cursor struct {
	t   *table
	row int
	rec []string
	err error
}

func (t *table) cursor(row int) *cursor {
	return &cursor{t: t, row: row + 1, rec: t.rows[row]}
}

func (c *cursor) fail(col, format string, args ...any) {
	if c.err == nil {
		c.err = &model.SchemaError{Source: c.t.source, Row: c.row, Columns: []string{col}, Message: fmt.Sprintf(format, args...)}
	}
}

func (c *cursor) str(col string) string {
	i, ok := c.t.index[col]
	if !ok || i >= len(c.rec) {
		return ""
	}
	return strings.TrimSpace(c.rec[i])
}

func (c *cursor) required(col string) string {
	v := c.str(col)
	if v == "" {
		c.fail(col, "empty")
	}
	return v
}

// int reads a non-negative count; empty cells are 0.
func (c *cursor) int(col string) int {
	v := c.str(col)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f != math.Trunc(f) {
		c.fail(col, "want a non-negative whole number, got %q", v)
		return 0
	}
	return int(f)
}

// float reads a non-negative decimal; empty cells are 0.
func (c *cursor) float(col string) float64 {
	v := c.str(col)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		c.fail(col, "want a non-negative number, got %q", v)
		return 0
	}
	return f
}

func (c *cursor) bool(col string) bool {
	v := c.str(col)
	b, ok := parseBool(v)
	if !ok {
		c.fail(col, "want true/false, yes/no or 1/0, got %q", v)
	}
	return b
}

func (c *cursor) role(col string) model.Role {
	v := c.required(col)
	if v == "" {
		return ""
	}
	r, err := model.ParseRole(v)
	if err != nil {
		c.fail(col, "%v", err)
	}
	return r
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1", "y", "t":
		return true, true
	case "false", "no", "0", "n", "f":
		return false, true
	}
	return false, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
