package ingest

import (
	"encoding/csv"
	"io"

	"github.com/okian/crease/internal/domain/rating"
	"github.com/okian/crease/internal/domain/selection"
)

// RatingColumns is the header of the rate table.
var RatingColumns = []string{ //nolint:gochecknoglobals // fixed schema
	"player_id", "player_name", "role", "batting_score", "bowling_score",
	"fielding_score", "rating", "sample_size", "adjusted_rating",
}

// XIColumns is the header of the playing_xi block.
var XIColumns = []string{ //nolint:gochecknoglobals // fixed schema
	"role", "player_name", "selection_score", "base_rating", "sample_size",
	"reason", "batting_score", "bowling_score", "fielding_score",
}

// WriteRatings writes one row per rated player in the given order.
func WriteRatings(w io.Writer, results []rating.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RatingColumns); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.PlayerID, r.PlayerName, string(r.Role),
			formatFloat(r.Batting), formatFloat(r.Bowling), formatFloat(r.Fielding),
			formatFloat(r.Rating), itoa(r.SampleSize), formatFloat(r.Adjusted),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTeam writes the thresholds block and the playing_xi block separated
// by an empty line. Each block opens with its name on a line of its own.
// Blank slots keep their role and reason and leave the player cells empty.
func WriteTeam(w io.Writer, team selection.Team) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{"desired_rating_thresholds"}, {"role", "desired_rating_threshold"}}
	for _, t := range team.Thresholds {
		v := ""
		if t.Defined {
			v = formatFloat(t.Threshold)
		}
		rows = append(rows, []string{string(t.Role), v})
	}
	rows = append(rows, nil, []string{"playing_xi"}, XIColumns)
	for _, p := range team.XI {
		if p.Blank() {
			rows = append(rows, []string{string(p.Role), "", "", "", "", string(p.Reason), "", "", ""})
			continue
		}
		rows = append(rows, []string{
			string(p.Role), p.PlayerName, formatFloat(p.SelectionScore), formatFloat(p.BaseRating),
			itoa(p.SampleSize), string(p.Reason),
			formatFloat(p.Batting), formatFloat(p.Bowling), formatFloat(p.Fielding),
		})
	}
	for _, row := range rows {
		if row == nil {
			cw.Flush()
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
			continue
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
