package history_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/model"
)

func roster() []model.PlayerInfo {
	return []model.PlayerInfo{
		{ID: "bat", Name: "Opener", Role: model.RoleBatter, Available: true},
		{ID: "bowl", Name: "Quick", Role: model.RoleBowler, Available: false},
		{ID: "bench", Name: "Reserve", Role: model.RoleAllrounder, Available: true},
	}
}

func matches() []model.MatchStats {
	return []model.MatchStats{
		{
			MatchID: "m1",
			Batting: []model.BattingStat{{PlayerID: "bat", Matches: 1, Innings: 1, Runs: 40, BallsFaced: 30, Fours: 4, Dismissals: 1, HighScore: 40}},
			Bowling: []model.BowlingStat{{PlayerID: "bowl", Innings: 1, Balls: 24, Runs: 30, Wickets: 2, Wides: 1}},
			Fielding: []model.FieldingStat{
				{PlayerID: "bowl", Matches: 1, Catches: 1},
			},
		},
		{
			MatchID: "m2",
			Batting: []model.BattingStat{{PlayerID: "bat", Matches: 1, Innings: 1, Runs: 75, BallsFaced: 50, Sixes: 3, NotOuts: 1, HighScore: 75}},
			Bowling: []model.BowlingStat{{PlayerID: "bowl", Innings: 1, Balls: 20, Runs: 10, Wickets: 0, NoBalls: 2}},
			Fielding: []model.FieldingStat{
				{PlayerID: "bat", Matches: 1, RunOuts: 1},
				{PlayerID: "bowl", Matches: 1},
			},
		},
		{
			MatchID: "m3",
			Batting: []model.BattingStat{{PlayerID: "bat", Matches: 1, Innings: 1, Runs: 5, BallsFaced: 10, Dismissals: 1, HighScore: 5}},
			Bowling: []model.BowlingStat{{PlayerID: "bowl", Innings: 1, Balls: 6, Runs: 12, Wickets: 1}},
		},
	}
}

func byID(recs []history.Record) map[string]history.Record {
	out := make(map[string]history.Record, len(recs))
	for _, r := range recs {
		if prev, ok := out[r.PlayerID]; ok {
			r = history.Merge(prev, r)
		}
		out[r.PlayerID] = r
	}
	return out
}

func TestFold(t *testing.T) {
	Convey("Given three matches of stat rows", t, func() {
		recs := history.Fold(roster(), matches()...)
		got := byID(recs)

		Convey("Then every roster player has a record sorted by id", func() {
			So(recs, ShouldHaveLength, 3)
			So(recs[0].PlayerID, ShouldEqual, "bat")
			So(recs[1].PlayerID, ShouldEqual, "bench")
			So(recs[2].PlayerID, ShouldEqual, "bowl")
			So(got["bench"].Batting, ShouldResemble, history.Batting{})
			So(got["bowl"].Available, ShouldBeFalse)
			So(got["bowl"].Role, ShouldEqual, model.RoleBowler)
		})

		Convey("Then batting sums counts and recomputes ratios from the sums", func() {
			b := got["bat"].Batting
			So(b.Innings, ShouldEqual, 3)
			So(b.Runs, ShouldEqual, 120)
			So(b.BallsFaced, ShouldEqual, 90)
			So(b.HighScore, ShouldEqual, 75)
			So(b.Dismissals, ShouldEqual, 2)
			So(b.NotOuts, ShouldEqual, 1)
			So(b.Average, ShouldEqual, 60)
			So(b.StrikeRate, ShouldEqual, 133.33)
		})

		Convey("Then bowling does the same", func() {
			b := got["bowl"].Bowling
			So(b.Matches, ShouldEqual, 3)
			So(b.Balls, ShouldEqual, 50)
			So(b.Overs, ShouldEqual, "8.2")
			So(b.Runs, ShouldEqual, 52)
			So(b.Wickets, ShouldEqual, 3)
			So(b.Economy, ShouldEqual, 6.24)
			So(b.Average, ShouldEqual, 17.33)
			So(b.StrikeRate, ShouldEqual, 16.67)
			So(b.Wides, ShouldEqual, 1)
			So(b.NoBalls, ShouldEqual, 2)
		})

		Convey("Then fielding sums per player", func() {
			So(got["bowl"].Fielding, ShouldResemble, history.Fielding{Matches: 2, Catches: 1})
			So(got["bat"].Fielding, ShouldResemble, history.Fielding{Matches: 1, RunOuts: 1})
		})
	})

	Convey("Given a batter who was never dismissed", t, func() {
		recs := history.Fold(nil, model.MatchStats{
			Batting: []model.BattingStat{{PlayerID: "x", Matches: 1, Innings: 1, Runs: 33, BallsFaced: 20, NotOuts: 1}},
		})

		Convey("Then the average equals the runs", func() {
			So(recs[0].Batting.Average, ShouldEqual, 33)
		})
	})
}

func TestMergeAssociative(t *testing.T) {
	Convey("Given the same matches folded in different groupings", t, func() {
		ms := matches()
		whole := byID(history.Fold(roster(), ms...))

		left := byID(append(history.Fold(roster(), ms[0]), history.Fold(nil, ms[1], ms[2])...))
		right := byID(append(history.Fold(nil, ms[2]), history.Fold(roster(), ms[0], ms[1])...))
		single := byID(append(append(history.Fold(nil, ms[1]), history.Fold(nil, ms[2])...), history.Fold(roster(), ms[0])...))

		Convey("Then every grouping produces identical records", func() {
			for id, want := range whole {
				So(left[id], ShouldResemble, want)
				So(right[id], ShouldResemble, want)
				So(single[id], ShouldResemble, want)
			}
		})
	})
}
