package aggregate_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/crease/internal/adapters/repository"
	"github.com/okian/crease/internal/domain/aggregate"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func squad(name, prefix string) model.Team {
	t := model.Team{Name: name}
	for i := 1; i <= 4; i++ {
		t.Players = append(t.Players, model.Player{ID: fmt.Sprintf("%s%d", prefix, i), Name: fmt.Sprintf("%s %d", name, i), Role: model.RoleBatter})
	}
	return t
}

// playedMatch scores nine deliveries covering every extra type, a catch and
// a run out of the non-striker.
func playedMatch() (*scoring.Session, model.Match) {
	m := model.Match{ID: "m-agg", Home: squad("Lions", "h"), Away: squad("Tigers", "a"), Overs: 2}
	s, err := scoring.NewSession(m)
	So(err, ShouldBeNil)
	So(s.SetToss(model.Home, model.TossBat), ShouldBeNil)
	_, err = s.StartInnings("h1", "h2", "a1", nil)
	So(err, ShouldBeNil)

	for _, p := range []scoring.Proposal{
		{Bowler: "a1", RunsOffBat: 4},
		{Bowler: "a1", ExtraType: model.ExtraWide, Extras: 1},
		{Bowler: "a1", ExtraType: model.ExtraNoBall, Extras: 1, RunsOffBat: 6},
		{Bowler: "a1", ExtraType: model.ExtraLegBye, Extras: 1},
		{Bowler: "a1", Wicket: &model.Wicket{Kind: model.DismissalCaught, PlayerOut: "h2", Fielder: "a3"}, IncomingBatter: "h3"},
		{Bowler: "a1", RunsOffBat: 1},
		{Bowler: "a1"},
		{Bowler: "a1", RunsOffBat: 2},
		{Bowler: "a2", Wicket: &model.Wicket{Kind: model.DismissalRunOut, PlayerOut: "h1", Fielder: "a4", End: model.EndNonStriker}, IncomingBatter: "h4"},
	} {
		_, err := s.Record(p, nil)
		So(err, ShouldBeNil)
	}
	return s, s.Match()
}

func byPlayer[T any](rows []T, id func(T) string) map[string]T {
	out := make(map[string]T, len(rows))
	for _, r := range rows {
		out[id(r)] = r
	}
	return out
}

func TestAggregate(t *testing.T) {
	Convey("Given a partly played match", t, func() {
		s, m := playedMatch()
		stats := aggregate.Aggregate(m, s.Events())

		bat := byPlayer(stats.Batting, func(r model.BattingStat) string { return r.PlayerID })
		bowl := byPlayer(stats.Bowling, func(r model.BowlingStat) string { return r.PlayerID })
		field := byPlayer(stats.Fielding, func(r model.FieldingStat) string { return r.PlayerID })

		Convey("Then batting counts faced balls only, no-balls included", func() {
			So(len(stats.Batting), ShouldEqual, 3)
			So(bat["h1"], ShouldResemble, model.BattingStat{
				MatchID: "m-agg", PlayerID: "h1", Matches: 1, Innings: 1, Runs: 12, BallsFaced: 5,
				Fours: 1, Sixes: 1, Dismissals: 1, NotOuts: 0, HighScore: 12, StrikeRate: 240,
			})
			So(bat["h2"].BallsFaced, ShouldEqual, 1)
			So(bat["h2"].Dismissals, ShouldEqual, 1)
			So(bat["h3"].Runs, ShouldEqual, 1)
			So(bat["h3"].BallsFaced, ShouldEqual, 2)
			So(bat["h3"].NotOuts, ShouldEqual, 1)
			So(bat["h3"].StrikeRate, ShouldEqual, 50)
		})

		Convey("Then bowlers concede wides and no-balls but not leg byes", func() {
			So(bowl["a1"], ShouldResemble, model.BowlingStat{
				MatchID: "m-agg", PlayerID: "a1", Innings: 1, Balls: 6, Overs: "1.0", Runs: 15,
				Wickets: 1, Wides: 1, NoBalls: 1, Economy: 15, StrikeRate: 6, Average: 15,
			})
		})

		Convey("Then run outs are not credited to the bowler and undefined ratios are zero", func() {
			So(bowl["a2"].Wickets, ShouldEqual, 0)
			So(bowl["a2"].Overs, ShouldEqual, "0.1")
			So(bowl["a2"].Average, ShouldEqual, 0)
			So(bowl["a2"].StrikeRate, ShouldEqual, 0)
		})

		Convey("Then every fielding squad member has a row with their credits", func() {
			So(len(stats.Fielding), ShouldEqual, 4)
			So(field["a3"].Catches, ShouldEqual, 1)
			So(field["a4"].RunOuts, ShouldEqual, 1)
			So(field["a1"].Matches, ShouldEqual, 1)
		})

		Convey("Then balls faced and runs never go negative", func() {
			for _, r := range stats.Batting {
				So(r.BallsFaced, ShouldBeGreaterThanOrEqualTo, 0)
				So(r.Runs, ShouldBeGreaterThanOrEqualTo, 0)
			}
		})

		Convey("When aggregated again", func() {
			again := aggregate.Aggregate(m, s.Events())

			Convey("Then the rows are identical", func() {
				So(again, ShouldResemble, stats)
			})
		})

		Convey("When the run out is voided", func() {
			_, err := s.Undo(nil)
			So(err, ShouldBeNil)
			after := aggregate.Aggregate(s.Match(), s.Events())
			bat := byPlayer(after.Batting, func(r model.BattingStat) string { return r.PlayerID })

			Convey("Then the cancelled delivery contributes nothing", func() {
				So(bat["h1"].Dismissals, ShouldEqual, 0)
				So(bat["h1"].NotOuts, ShouldEqual, 1)
				So(bat["h3"].BallsFaced, ShouldEqual, 1)
				So(len(after.Bowling), ShouldEqual, 1)
			})
		})
	})
}

type fakeStore struct {
	match    model.Match
	events   []model.BallEvent
	replaced []model.MatchStats
	failGet  error
	failPut  error
}

func (f *fakeStore) GetMatch(_ context.Context, id string) (model.Match, error) {
	if f.failGet != nil {
		return model.Match{}, f.failGet
	}
	return f.match, nil
}

func (f *fakeStore) Events(context.Context, string) ([]model.BallEvent, error) { return f.events, nil }

func (f *fakeStore) ReplaceMatchStats(_ context.Context, stats model.MatchStats) error {
	if f.failPut != nil {
		return f.failPut
	}
	f.replaced = append(f.replaced, stats)
	return nil
}

func TestEngine(t *testing.T) {
	Convey("Given an engine over a store", t, func() {
		s, m := playedMatch()
		store := &fakeStore{match: m, events: s.Events()}
		engine := aggregate.NewEngine(store)
		ctx := context.Background()

		Convey("When run twice", func() {
			first, err := engine.Run(ctx, m.ID)
			So(err, ShouldBeNil)
			second, err := engine.Run(ctx, m.ID)
			So(err, ShouldBeNil)

			Convey("Then the stored rows are regenerated identically", func() {
				So(len(store.replaced), ShouldEqual, 2)
				So(store.replaced[0], ShouldResemble, store.replaced[1])
				So(first, ShouldResemble, second)
			})
		})

		Convey("When the match cannot be loaded", func() {
			store.failGet = errors.New("gone")
			_, err := engine.Run(ctx, m.ID)
			So(err, ShouldNotBeNil)
			So(len(store.replaced), ShouldEqual, 0)
		})

		Convey("When the rows cannot be written", func() {
			store.failPut = errors.New("locked")
			_, err := engine.Run(ctx, m.ID)
			So(err.Error(), ShouldContainSubstring, "locked")
		})
	})
}

// ledgerAt serves the ledger as it stood at seq, as a run that loaded it
// before later balls were appended would have seen it.
type ledgerAt struct {
	*repository.MemoryStore
	seq int
}

func (l ledgerAt) Events(ctx context.Context, matchID string) ([]model.BallEvent, error) {
	events, err := l.MemoryStore.Events(ctx, matchID)
	if err != nil {
		return nil, err
	}
	var out []model.BallEvent
	for _, ev := range events {
		if ev.Seq <= l.seq {
			out = append(out, ev)
		}
	}
	return out, nil
}

func TestEngineOverlappingRuns(t *testing.T) {
	Convey("Given a stored ledger and two runs that loaded it at different points", t, func() {
		ctx := context.Background()
		s, m := playedMatch()
		store := repository.NewMemoryStore()
		So(store.CreateMatch(ctx, m), ShouldBeNil)
		for _, ev := range s.Events() {
			So(store.AppendEvent(ctx, ev), ShouldBeNil)
		}
		last := s.Seq()

		Convey("When the run over the longer ledger finishes first", func() {
			latest, err := aggregate.NewEngine(ledgerAt{store, last}).Run(ctx, m.ID)
			So(err, ShouldBeNil)
			So(latest.Seq, ShouldEqual, last)

			_, err = aggregate.NewEngine(ledgerAt{store, last - 2}).Run(ctx, m.ID)

			Convey("Then the older run is refused and the latest rows stay", func() {
				So(errors.Is(err, model.ErrStaleStats), ShouldBeTrue)
				stored, err := store.MatchStats(ctx, m.ID)
				So(err, ShouldBeNil)
				So(stored.Seq, ShouldEqual, last)
				So(stored, ShouldResemble, latest)
			})
		})

		Convey("When the older run finishes first", func() {
			_, err := aggregate.NewEngine(ledgerAt{store, last - 2}).Run(ctx, m.ID)
			So(err, ShouldBeNil)
			latest, err := aggregate.NewEngine(ledgerAt{store, last}).Run(ctx, m.ID)
			So(err, ShouldBeNil)

			Convey("Then the later run replaces it", func() {
				stored, err := store.MatchStats(ctx, m.ID)
				So(err, ShouldBeNil)
				So(stored, ShouldResemble, latest)
			})
		})
	})
}
