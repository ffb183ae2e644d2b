package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/crease/internal/domain/aggregate"
	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/scoring"
)

// LedgerColumns are the required columns of a ball-by-ball ledger.
var LedgerColumns = []string{ //nolint:gochecknoglobals // fixed schema
	"match_id", "innings", "batting_side", "striker", "non_striker", "bowler",
	"runs_off_bat", "extra_type", "extras", "is_wicket", "dismissal_type", "player_out", "fielder",
}

// RosterColumns are the required columns of the roster that accompanies a ledger.
// An optional match_id column scopes a row to one match.
var RosterColumns = []string{"player_name", "role", "availability", "side"} //nolint:gochecknoglobals // fixed schema

// Ledger is a ball-by-ball input: the roster and one event ledger per match.
type Ledger struct {
	Players []model.PlayerInfo
	Matches []model.Match
	Events  map[string][]model.BallEvent
}

type rosterRow struct {
	info    model.PlayerInfo
	side    model.Side
	matchID string
}

// ReadBallByBall parses a ledger and its roster. Every delivery is checked
// with the scoring rules that need no live state, and every player must be
// on the roster of the side the row puts them on.
func ReadBallByBall(ledger, roster io.Reader) (*Ledger, error) {
	rows, err := readRoster(roster)
	if err != nil {
		return nil, err
	}
	t, err := readTable(ledger, "ledger", LedgerColumns)
	if err != nil {
		return nil, err
	}

	out := &Ledger{Events: make(map[string][]model.BallEvent)}
	players := make(map[string]model.PlayerInfo)
	for _, r := range rows {
		players[r.info.ID] = r.info
	}
	for _, id := range sortedKeys(players) {
		out.Players = append(out.Players, players[id])
	}

	type progress struct {
		innings int
		legal   int
	}
	matches := make(map[string]*model.Match)
	state := make(map[string]*progress)

	for i := range t.rows {
		c := t.cursor(i)
		matchID := c.required("match_id")
		if c.err != nil {
			return nil, c.err
		}
		m, ok := matches[matchID]
		if !ok {
			m = squadsFor(matchID, rows)
			matches[matchID] = m
			state[matchID] = &progress{}
		}
		p := state[matchID]

		ev, battingSide := ledgerRow(c, m)
		if c.err != nil {
			return nil, c.err
		}
		if ev.Innings != p.innings {
			if ev.Innings < p.innings {
				return nil, &model.SchemaError{Source: "ledger", Row: c.row, Columns: []string{"innings"},
					Message: fmt.Sprintf("innings %d after innings %d", ev.Innings, p.innings)}
			}
			p.innings, p.legal = ev.Innings, 0
			if ev.Innings == 1 {
				m.TossWinner, m.TossDecision = battingSide, model.TossBat
			}
		}
		ev.Over, ev.BallInOver = p.legal/model.BallsPerOver, p.legal%model.BallsPerOver+1
		if ev.Legal {
			p.legal++
		}
		ev.Seq = len(out.Events[matchID]) + 1
		ev.ID = fmt.Sprintf("%s-%d", matchID, ev.Seq)

		if err := scoring.ValidateBall(&ev); err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", c.row, err)
		}
		out.Events[matchID] = append(out.Events[matchID], ev)
	}

	for _, id := range sortedKeys(matches) {
		m := matches[id]
		m.State = model.StateMatchComplete
		out.Matches = append(out.Matches, *m)
	}
	return out, nil
}

// Stats aggregates every match of the ledger.
func (l *Ledger) Stats() []model.MatchStats {
	out := make([]model.MatchStats, 0, len(l.Matches))
	for _, m := range l.Matches {
		out = append(out, aggregate.Aggregate(m, l.Events[m.ID]))
	}
	return out
}

// Records folds the aggregated matches with the roster.
func (l *Ledger) Records() []history.Record {
	return history.Fold(l.Players, l.Stats()...)
}

func readRoster(r io.Reader) ([]rosterRow, error) {
	t, err := readTable(r, "roster", RosterColumns)
	if err != nil {
		return nil, err
	}
	out := make([]rosterRow, 0, len(t.rows))
	for i := range t.rows {
		c := t.cursor(i)
		name := c.required("player_name")
		id := c.str("player_id")
		if id == "" {
			id = name
		}
		row := rosterRow{
			info:    model.PlayerInfo{ID: id, Name: name, Role: c.role("role"), Available: c.bool("availability")},
			side:    model.Side(strings.ToLower(c.required("side"))),
			matchID: c.str("match_id"),
		}
		if c.err == nil && !row.side.Valid() {
			c.fail("side", "want home or away, got %q", row.side)
		}
		if c.err != nil {
			return nil, c.err
		}
		out = append(out, row)
	}
	return out, nil
}

// squadsFor builds the two squads of a match from roster rows scoped to it
// or to every match.
func squadsFor(matchID string, rows []rosterRow) *model.Match {
	m := &model.Match{
		ID:   matchID,
		Home: model.Team{Name: string(model.Home)},
		Away: model.Team{Name: string(model.Away)},
	}
	for _, r := range rows {
		if r.matchID != "" && r.matchID != matchID {
			continue
		}
		p := model.Player{ID: r.info.ID, Name: r.info.Name, Role: r.info.Role}
		if r.side == model.Home {
			m.Home.Players = append(m.Home.Players, p)
		} else {
			m.Away.Players = append(m.Away.Players, p)
		}
	}
	return m
}

func ledgerRow(c *cursor, m *model.Match) (model.BallEvent, model.Side) {
	ev := model.BallEvent{
		MatchID:    m.ID,
		Kind:       model.KindDelivery,
		Innings:    c.int("innings"),
		Striker:    c.required("striker"),
		NonStriker: c.required("non_striker"),
		Bowler:     c.required("bowler"),
		RunsOffBat: c.int("runs_off_bat"),
		ExtraType:  model.ExtraType(strings.ToLower(c.str("extra_type"))),
		Extras:     c.int("extras"),
	}
	if ev.ExtraType == "" {
		ev.ExtraType = model.ExtraNone
	}
	ev.Legal = ev.ExtraType.Legal()
	if ev.Innings != 1 && ev.Innings != 2 {
		c.fail("innings", "want 1 or 2, got %d", ev.Innings)
	}

	side := model.Side(strings.ToLower(c.required("batting_side")))
	if c.err == nil && !side.Valid() {
		c.fail("batting_side", "want home or away, got %q", side)
	}
	if c.err != nil {
		return ev, side
	}
	batting, bowling := m.Team(side), m.Team(side.Other())
	if !batting.Has(ev.Striker) {
		c.fail("striker", "%s is not on the %s roster", ev.Striker, side)
	}
	if !batting.Has(ev.NonStriker) {
		c.fail("non_striker", "%s is not on the %s roster", ev.NonStriker, side)
	}
	if !bowling.Has(ev.Bowler) {
		c.fail("bowler", "%s is not on the %s roster", ev.Bowler, side.Other())
	}

	if c.str("is_wicket") != "" && c.bool("is_wicket") {
		kind := strings.ReplaceAll(strings.ToLower(c.required("dismissal_type")), " ", "_")
		w := &model.Wicket{
			Kind:      model.DismissalKind(kind),
			PlayerOut: c.str("player_out"),
			Fielder:   c.str("fielder"),
		}
		if w.PlayerOut == "" {
			w.PlayerOut = ev.Striker
		}
		if w.PlayerOut != ev.Striker && w.PlayerOut != ev.NonStriker {
			c.fail("player_out", "%s is not at the crease", w.PlayerOut)
		}
		if w.Fielder != "" && !bowling.Has(w.Fielder) {
			c.fail("fielder", "%s is not on the %s roster", w.Fielder, side.Other())
		}
		w.End = model.EndStriker
		if w.PlayerOut == ev.NonStriker {
			w.End = model.EndNonStriker
			if !w.Kind.CanRemoveNonStriker() {
				c.fail("player_out", "%s cannot remove the non-striker", w.Kind)
			}
		}
		ev.Wicket = w
	}
	return ev, side
}

// WriteBallByBall writes the effective deliveries of every match as a ledger
// and the squads as a match-scoped roster, the layout ReadBallByBall reads.
func WriteBallByBall(ledger, roster io.Writer, l *Ledger) error {
	lw := csv.NewWriter(ledger)
	if err := lw.Write(LedgerColumns); err != nil {
		return err
	}
	for _, m := range l.Matches {
		for _, ev := range model.Effective(l.Events[m.ID]) {
			if ev.Kind != model.KindDelivery {
				continue
			}
			row := []string{
				m.ID, strconv.Itoa(ev.Innings), string(m.BattingSide(ev.Innings)),
				ev.Striker, ev.NonStriker, ev.Bowler,
				strconv.Itoa(ev.RunsOffBat), string(ev.ExtraType), strconv.Itoa(ev.Extras),
				"false", "", "", "",
			}
			if w := ev.Wicket; w != nil {
				row[9], row[10], row[11], row[12] = "true", string(w.Kind), w.PlayerOut, w.Fielder
			}
			if err := lw.Write(row); err != nil {
				return err
			}
		}
	}
	lw.Flush()
	if err := lw.Error(); err != nil {
		return err
	}

	available := make(map[string]bool, len(l.Players))
	for _, p := range l.Players {
		available[p.ID] = p.Available
	}
	rw := csv.NewWriter(roster)
	if err := rw.Write(append([]string{"player_id"}, append(RosterColumns, "match_id")...)); err != nil {
		return err
	}
	for _, m := range l.Matches {
		for _, side := range []model.Side{model.Home, model.Away} {
			for _, p := range m.Team(side).Players {
				avail, ok := available[p.ID]
				row := []string{p.ID, p.Name, string(p.Role), strconv.FormatBool(avail || !ok), string(side), m.ID}
				if err := rw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	rw.Flush()
	return rw.Error()
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
