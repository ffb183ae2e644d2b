// Package aggregate turns a match ledger into per-player match statistics.
//
// Aggregation is a total recomputation: the same ledger always yields the
// same rows, in the same order, so re-running it is idempotent.
package aggregate

import (
	"sort"

	"github.com/okian/crease/internal/domain/model"
)

type batting struct {
	innings    map[int]bool
	runsByInn  map[int]int
	runs       int
	balls      int
	fours      int
	sixes      int
	dismissals int
}

type bowling struct {
	innings map[int]bool
	balls   int
	runs    int
	wickets int
	wides   int
	noBalls int
}

// Aggregate derives batting, bowling and fielding rows for one match from
// its ledger. Void events and the deliveries they cancel are ignored.
func Aggregate(match model.Match, events []model.BallEvent) model.MatchStats {
	bat := make(map[string]*batting)
	bowl := make(map[string]*bowling)
	field := make(map[string]*model.FieldingStat)
	fieldingSide := make(map[int]model.Side)

	batter := func(id string) *batting {
		b, ok := bat[id]
		if !ok {
			b = &batting{innings: map[int]bool{}, runsByInn: map[int]int{}}
			bat[id] = b
		}
		return b
	}
	fielder := func(id string) *model.FieldingStat {
		f, ok := field[id]
		if !ok {
			f = &model.FieldingStat{MatchID: match.ID, PlayerID: id, Matches: 1}
			field[id] = f
		}
		return f
	}

	for _, ev := range model.Effective(events) {
		if ev.Kind != model.KindDelivery {
			continue
		}
		n := ev.Innings

		st := batter(ev.Striker)
		if ev.FacedByStriker() {
			st.balls++
			st.innings[n] = true
		}
		st.runs += ev.RunsOffBat
		st.runsByInn[n] += ev.RunsOffBat
		switch ev.RunsOffBat {
		case 4:
			st.fours++
		case 6:
			st.sixes++
		}
		if ev.NonStriker != "" {
			batter(ev.NonStriker)
		}

		bw, ok := bowl[ev.Bowler]
		if !ok {
			bw = &bowling{innings: map[int]bool{}}
			bowl[ev.Bowler] = bw
		}
		bw.innings[n] = true
		bw.runs += ev.BowlerRuns()
		if ev.ExtraType.Legal() {
			bw.balls++
		}
		switch ev.ExtraType {
		case model.ExtraWide:
			bw.wides++
		case model.ExtraNoBall:
			bw.noBalls++
		}

		if _, seen := fieldingSide[n]; !seen {
			if side, ok := match.SideOf(ev.Bowler); ok {
				fieldingSide[n] = side
			}
		}

		if w := ev.Wicket; w != nil {
			out := batter(w.PlayerOut)
			out.dismissals++
			out.innings[n] = true
			if w.Kind.CreditedToBowler() {
				bw.wickets++
			}
			if w.Fielder != "" {
				f := fielder(w.Fielder)
				switch w.Kind {
				case model.DismissalCaught:
					f.Catches++
				case model.DismissalCaughtBehind:
					f.CaughtBehind++
				case model.DismissalStumped:
					f.Stumpings++
				case model.DismissalRunOut:
					f.RunOuts++
				}
			}
		}
	}

	for _, side := range fieldingSide {
		for _, p := range match.Team(side).Players {
			fielder(p.ID)
		}
	}

	stats := model.MatchStats{
		MatchID:  match.ID,
		Batting:  make([]model.BattingStat, 0, len(bat)),
		Bowling:  make([]model.BowlingStat, 0, len(bowl)),
		Fielding: make([]model.FieldingStat, 0, len(field)),
	}
	if n := len(events); n > 0 {
		stats.Seq = events[n-1].Seq
	}
	for id, b := range bat {
		stats.Batting = append(stats.Batting, battingRow(match.ID, id, b))
	}
	for id, b := range bowl {
		stats.Bowling = append(stats.Bowling, bowlingRow(match.ID, id, b))
	}
	for _, f := range field {
		stats.Fielding = append(stats.Fielding, *f)
	}
	sort.Slice(stats.Batting, func(i, j int) bool { return stats.Batting[i].PlayerID < stats.Batting[j].PlayerID })
	sort.Slice(stats.Bowling, func(i, j int) bool { return stats.Bowling[i].PlayerID < stats.Bowling[j].PlayerID })
	sort.Slice(stats.Fielding, func(i, j int) bool { return stats.Fielding[i].PlayerID < stats.Fielding[j].PlayerID })
	return stats
}

func battingRow(matchID, playerID string, b *batting) model.BattingStat {
	high := 0
	for n := range b.innings {
		if r := b.runsByInn[n]; r > high {
			high = r
		}
	}
	innings := len(b.innings)
	return model.BattingStat{
		MatchID:    matchID,
		PlayerID:   playerID,
		Matches:    1,
		Innings:    innings,
		Runs:       b.runs,
		BallsFaced: b.balls,
		Fours:      b.fours,
		Sixes:      b.sixes,
		Dismissals: b.dismissals,
		NotOuts:    max(innings-b.dismissals, 0),
		HighScore:  high,
		StrikeRate: model.Round2(model.Ratio(float64(b.runs)*100, float64(b.balls))),
	}
}

func bowlingRow(matchID, playerID string, b *bowling) model.BowlingStat {
	return model.BowlingStat{
		MatchID:    matchID,
		PlayerID:   playerID,
		Innings:    len(b.innings),
		Balls:      b.balls,
		Overs:      model.FormatOvers(b.balls),
		Runs:       b.runs,
		Wickets:    b.wickets,
		Wides:      b.wides,
		NoBalls:    b.noBalls,
		Economy:    model.Round2(model.Ratio(float64(b.runs), float64(b.balls)/model.BallsPerOver)),
		StrikeRate: model.Round2(model.Ratio(float64(b.balls), float64(b.wickets))),
		Average:    model.Round2(model.Ratio(float64(b.runs), float64(b.wickets))),
	}
}
