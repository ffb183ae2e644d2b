package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/model"
)

// HistoryColumns are the required columns of the history mode, in output order.
var HistoryColumns = []string{ //nolint:gochecknoglobals // fixed schema
	"player_name", "role", "availability",
	"batting_matches", "batting_innings", "batting_runs", "batting_not_out", "batting_high_score",
	"batting_avg", "batting_strike_rate",
	"bowling_matches", "bowling_innings", "bowling_overs", "bowling_runs", "bowling_wickets",
	"bowling_economy", "bowling_strike_rate", "bowling_avg", "bowling_wides", "bowling_no_ball",
	"fielding_matches", "fielding_catches", "fielding_caught_behind", "fielding_run_out", "fielding_stumping",
}

// ReadHistory parses a history-mode table into records. Missing columns fail
// before any row is read; the first malformed cell fails the whole table.
func ReadHistory(r io.Reader, source string) ([]history.Record, error) {
	t, err := readTable(r, source, HistoryColumns)
	if err != nil {
		return nil, err
	}

	out := make([]history.Record, 0, len(t.rows))
	seen := make(map[string]int, len(t.rows))
	for i := range t.rows {
		c := t.cursor(i)
		rec := historyRow(c)
		if c.err != nil {
			return nil, c.err
		}
		if prev, dup := seen[rec.PlayerID]; dup {
			return nil, &model.SchemaError{
				Source: source, Row: c.row, Columns: []string{"player_id"}, Player: rec.PlayerID,
				Message: fmt.Sprintf("duplicate player, first seen on row %d", prev),
			}
		}
		seen[rec.PlayerID] = c.row
		out = append(out, rec)
	}
	return out, nil
}

func historyRow(c *cursor) history.Record {
	name := c.required("player_name")
	id := c.str("player_id")
	if id == "" {
		id = name
	}
	rec := history.Record{
		PlayerID:   id,
		PlayerName: name,
		Role:       c.role("role"),
		Available:  c.bool("availability"),
	}

	b := history.Batting{
		Matches:    c.int("batting_matches"),
		Innings:    c.int("batting_innings"),
		Runs:       c.int("batting_runs"),
		NotOuts:    c.int("batting_not_out"),
		HighScore:  c.int("batting_high_score"),
		Average:    c.float("batting_avg"),
		StrikeRate: c.float("batting_strike_rate"),
	}
	b.Dismissals = max(b.Innings-b.NotOuts, 0)
	if c.t.has("batting_balls_faced") {
		b.BallsFaced = c.int("batting_balls_faced")
	} else if b.StrikeRate > 0 {
		b.BallsFaced = int(math.Round(float64(b.Runs) * 100 / b.StrikeRate))
	}
	if b.NotOuts > b.Innings {
		c.fail("batting_not_out", "not-outs %d exceed innings %d", b.NotOuts, b.Innings)
	}
	rec.Batting = b

	w := history.Bowling{
		Matches:    c.int("bowling_matches"),
		Innings:    c.int("bowling_innings"),
		Runs:       c.int("bowling_runs"),
		Wickets:    c.int("bowling_wickets"),
		Economy:    c.float("bowling_economy"),
		StrikeRate: c.float("bowling_strike_rate"),
		Average:    c.float("bowling_avg"),
		Wides:      c.int("bowling_wides"),
		NoBalls:    c.int("bowling_no_ball"),
	}
	if c.t.has("bowling_balls") && c.str("bowling_balls") != "" {
		w.Balls = c.int("bowling_balls")
	} else {
		balls, err := model.ParseOvers(c.str("bowling_overs"))
		if err != nil {
			c.fail("bowling_overs", "%v", err)
		}
		w.Balls = balls
	}
	w.Overs = model.FormatOvers(w.Balls)
	rec.Bowling = w

	rec.Fielding = history.Fielding{
		Matches:      c.int("fielding_matches"),
		Catches:      c.int("fielding_catches"),
		CaughtBehind: c.int("fielding_caught_behind"),
		RunOuts:      c.int("fielding_run_out"),
		Stumpings:    c.int("fielding_stumping"),
	}
	return rec
}

// WriteHistory writes records in the history-mode layout, with player_id
// and ball counts appended so the table reads back losslessly.
func WriteHistory(w io.Writer, recs []history.Record) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, HistoryColumns...), "player_id", "batting_balls_faced", "bowling_balls")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		b, bw, f := r.Batting, r.Bowling, r.Fielding
		row := []string{
			r.PlayerName, string(r.Role), strconv.FormatBool(r.Available),
			itoa(b.Matches), itoa(b.Innings), itoa(b.Runs), itoa(b.NotOuts), itoa(b.HighScore),
			formatFloat(b.Average), formatFloat(b.StrikeRate),
			itoa(bw.Matches), itoa(bw.Innings), model.FormatOvers(bw.Balls), itoa(bw.Runs), itoa(bw.Wickets),
			formatFloat(bw.Economy), formatFloat(bw.StrikeRate), formatFloat(bw.Average), itoa(bw.Wides), itoa(bw.NoBalls),
			itoa(f.Matches), itoa(f.Catches), itoa(f.CaughtBehind), itoa(f.RunOuts), itoa(f.Stumpings),
			r.PlayerID, itoa(b.BallsFaced), itoa(bw.Balls),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func itoa(n int) string { return strconv.Itoa(n) }
