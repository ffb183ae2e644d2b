// Package history folds per-match stat rows into one cumulative record per player.
package history

import (
	"sort"

	"github.com/okian/crease/internal/domain/model"
)

// Batting is a player's cumulative batting.
type Batting struct {
	Matches    int     `json:"matches"`
	Innings    int     `json:"innings"`
	Runs       int     `json:"runs"`
	BallsFaced int     `json:"balls_faced"`
	NotOuts    int     `json:"not_outs"`
	Dismissals int     `json:"dismissals"`
	HighScore  int     `json:"high_score"`
	Fours      int     `json:"fours"`
	Sixes      int     `json:"sixes"`
	Average    float64 `json:"average"`
	StrikeRate float64 `json:"strike_rate"`
}

// Bowling is a player's cumulative bowling.
type Bowling struct {
	Matches    int     `json:"matches"`
	Innings    int     `json:"innings"`
	Balls      int     `json:"balls"`
	Overs      string  `json:"overs"`
	Runs       int     `json:"runs"`
	Wickets    int     `json:"wickets"`
	Wides      int     `json:"wides"`
	NoBalls    int     `json:"no_balls"`
	Economy    float64 `json:"economy"`
	StrikeRate float64 `json:"strike_rate"`
	Average    float64 `json:"average"`
}

// Fielding is a player's cumulative fielding.
type Fielding struct {
	Matches      int `json:"matches"`
	Catches      int `json:"catches"`
	CaughtBehind int `json:"caught_behind"`
	RunOuts      int `json:"run_outs"`
	Stumpings    int `json:"stumpings"`
}

// Record is the rating engine's per-player input.
type Record struct {
	PlayerID   string     `json:"player_id"`
	PlayerName string     `json:"player_name"`
	Role       model.Role `json:"role"`
	Available  bool       `json:"available"`
	Batting    Batting    `json:"batting"`
	Bowling    Bowling    `json:"bowling"`
	Fielding   Fielding   `json:"fielding"`
}

// Fold builds a record for every roster player and every player found in
// the stat rows, sorted by player id. Counting stats are summed, the high
// score is the best single innings, and ratios are recomputed from the sums.
func Fold(players []model.PlayerInfo, stats ...model.MatchStats) []Record {
	acc := make(map[string]*Record, len(players))
	get := func(id string) *Record {
		r, ok := acc[id]
		if !ok {
			r = &Record{PlayerID: id, PlayerName: id, Available: true}
			acc[id] = r
		}
		return r
	}
	for _, p := range players {
		r := get(p.ID)
		r.PlayerName, r.Role, r.Available = p.Name, p.Role, p.Available
		if r.PlayerName == "" {
			r.PlayerName = p.ID
		}
	}

	for _, ms := range stats {
		for _, b := range ms.Batting {
			r := get(b.PlayerID)
			r.Batting = mergeBatting(r.Batting, Batting{
				Matches: b.Matches, Innings: b.Innings, Runs: b.Runs, BallsFaced: b.BallsFaced,
				NotOuts: b.NotOuts, Dismissals: b.Dismissals, HighScore: b.HighScore, Fours: b.Fours, Sixes: b.Sixes,
			})
		}
		for _, b := range ms.Bowling {
			r := get(b.PlayerID)
			r.Bowling = mergeBowling(r.Bowling, Bowling{
				Matches: 1, Innings: b.Innings, Balls: b.Balls, Runs: b.Runs, Wickets: b.Wickets,
				Wides: b.Wides, NoBalls: b.NoBalls,
			})
		}
		for _, f := range ms.Fielding {
			r := get(f.PlayerID)
			r.Fielding = mergeFielding(r.Fielding, Fielding{
				Matches: f.Matches, Catches: f.Catches, CaughtBehind: f.CaughtBehind, RunOuts: f.RunOuts, Stumpings: f.Stumpings,
			})
		}
	}

	out := make([]Record, 0, len(acc))
	for _, r := range acc {
		r.Batting = mergeBatting(r.Batting, Batting{})
		r.Bowling = mergeBowling(r.Bowling, Bowling{})
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Merge combines two partial records of the same player. It is associative
// and commutative over the counting stats, so folding match by match and
// merging gives the same record as folding everything at once.
func Merge(a, b Record) Record {
	out := a
	if out.PlayerID == "" {
		out.PlayerID = b.PlayerID
	}
	if out.PlayerName == "" || out.PlayerName == out.PlayerID {
		if b.PlayerName != "" {
			out.PlayerName = b.PlayerName
		}
	}
	if out.Role == "" {
		out.Role = b.Role
	}
	out.Available = a.Available && b.Available
	out.Batting = mergeBatting(a.Batting, b.Batting)
	out.Bowling = mergeBowling(a.Bowling, b.Bowling)
	out.Fielding = mergeFielding(a.Fielding, b.Fielding)
	return out
}

func mergeBatting(a, b Batting) Batting {
	out := Batting{
		Matches:    a.Matches + b.Matches,
		Innings:    a.Innings + b.Innings,
		Runs:       a.Runs + b.Runs,
		BallsFaced: a.BallsFaced + b.BallsFaced,
		NotOuts:    a.NotOuts + b.NotOuts,
		Dismissals: a.Dismissals + b.Dismissals,
		HighScore:  max(a.HighScore, b.HighScore),
		Fours:      a.Fours + b.Fours,
		Sixes:      a.Sixes + b.Sixes,
	}
	out.Average = BattingAverage(out.Runs, out.Dismissals, out.Innings)
	out.StrikeRate = model.Round2(model.Ratio(float64(out.Runs)*100, float64(out.BallsFaced)))
	return out
}

func mergeBowling(a, b Bowling) Bowling {
	out := Bowling{
		Matches: a.Matches + b.Matches,
		Innings: a.Innings + b.Innings,
		Balls:   a.Balls + b.Balls,
		Runs:    a.Runs + b.Runs,
		Wickets: a.Wickets + b.Wickets,
		Wides:   a.Wides + b.Wides,
		NoBalls: a.NoBalls + b.NoBalls,
	}
	out.Overs = model.FormatOvers(out.Balls)
	out.Economy = model.Round2(model.Ratio(float64(out.Runs), float64(out.Balls)/model.BallsPerOver))
	out.StrikeRate = model.Round2(model.Ratio(float64(out.Balls), float64(out.Wickets)))
	out.Average = model.Round2(model.Ratio(float64(out.Runs), float64(out.Wickets)))
	return out
}

func mergeFielding(a, b Fielding) Fielding {
	return Fielding{
		Matches:      a.Matches + b.Matches,
		Catches:      a.Catches + b.Catches,
		CaughtBehind: a.CaughtBehind + b.CaughtBehind,
		RunOuts:      a.RunOuts + b.RunOuts,
		Stumpings:    a.Stumpings + b.Stumpings,
	}
}

// BattingAverage is runs per dismissal; a batter never dismissed averages
// their runs, and a batter with no innings averages 0.
func BattingAverage(runs, dismissals, innings int) float64 {
	if innings == 0 {
		return 0
	}
	return model.Round2(float64(runs) / float64(max(dismissals, 1)))
}
