package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func testMatch(id string) model.Match {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.Match{
		ID:    id,
		Overs: 2,
		State: model.StateNotStarted,
		Home: model.Team{Name: "Lions", Players: []model.Player{
			{ID: "h1", Name: "Ali", Role: model.RoleBatter},
			{ID: "h2", Name: "Ben", Role: model.RoleBowler},
		}},
		Away: model.Team{Name: "Tigers", Players: []model.Player{
			{ID: "a1", Name: "Cal", Role: model.RoleWicketKeeper},
			{ID: "a2", Name: "Dev", Role: model.RoleAllrounder},
		}},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "crease.db"), WithMaxOpenConns(2))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"memory": NewMemoryStore(), "sqlite": sq}
}

func TestStore_Matches(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := testMatch("m1")
			if err := s.CreateMatch(ctx, m); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := s.CreateMatch(ctx, m); !errors.Is(err, ErrMatchExists) {
				t.Errorf("expected ErrMatchExists, got %v", err)
			}
			if _, err := s.GetMatch(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			m.TossWinner, m.TossDecision, m.State = model.Away, model.TossBowl, model.StateMatchComplete
			m.Result = &model.Result{Winner: model.Home, Margin: 12, By: "runs"}
			if err := s.UpdateMatch(ctx, m); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, err := s.GetMatch(ctx, "m1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.TossWinner != model.Away || got.State != model.StateMatchComplete {
				t.Errorf("unexpected match state: %+v", got)
			}
			if got.Result == nil || *got.Result != *m.Result {
				t.Errorf("expected result %+v, got %+v", m.Result, got.Result)
			}
			if len(got.Home.Players) != 2 || got.Home.Players[1].ID != "h2" || got.Away.Players[0].Role != model.RoleWicketKeeper {
				t.Errorf("squads not preserved: %+v / %+v", got.Home, got.Away)
			}
			if !got.CreatedAt.Equal(m.CreatedAt) {
				t.Errorf("expected created_at %v, got %v", m.CreatedAt, got.CreatedAt)
			}

			if err := s.UpdateMatch(ctx, testMatch("ghost")); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on update, got %v", err)
			}

			list, err := s.ListMatches(ctx)
			if err != nil || len(list) != 1 {
				t.Errorf("expected one match, got %d (%v)", len(list), err)
			}
		})
	}
}

func TestStore_Ledger(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.CreateMatch(ctx, testMatch("m1")); err != nil {
				t.Fatalf("create: %v", err)
			}
			if last, err := s.LastSeq(ctx, "m1"); err != nil || last != 0 {
				t.Errorf("expected last seq 0 on an empty ledger, got %d (%v)", last, err)
			}
			events := []model.BallEvent{
				{ID: "e1", MatchID: "m1", Seq: 1, Kind: model.KindInningsStart, Innings: 1, Striker: "h1", NonStriker: "h2", Bowler: "a1", RecordedAt: at},
				{ID: "e2", ClientID: "c-1", MatchID: "m1", Seq: 2, Kind: model.KindDelivery, Innings: 1, Legal: true,
					Striker: "h1", NonStriker: "h2", Bowler: "a1", RunsOffBat: 4, ExtraType: model.ExtraNone, RecordedAt: at},
				{ID: "e3", ClientID: "c-2", MatchID: "m1", Seq: 3, Kind: model.KindDelivery, Innings: 1, BallInOver: 1, Legal: true,
					Striker: "h1", NonStriker: "h2", Bowler: "a1", ExtraType: model.ExtraNone,
					Wicket: &model.Wicket{Kind: model.DismissalCaught, PlayerOut: "h1", Fielder: "a2"}, RecordedAt: at},
				{ID: "e4", MatchID: "m1", Seq: 4, Kind: model.KindVoid, Innings: 1, VoidsSeq: 3, RecordedAt: at},
			}
			for _, ev := range events {
				if err := s.AppendEvent(ctx, ev); err != nil {
					t.Fatalf("append seq %d: %v", ev.Seq, err)
				}
			}

			if last, err := s.LastSeq(ctx, "m1"); err != nil || last != 4 {
				t.Errorf("expected last seq 4, got %d (%v)", last, err)
			}
			if _, err := s.LastSeq(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for unknown match, got %v", err)
			}

			gap := model.BallEvent{ID: "e9", MatchID: "m1", Seq: 9, Kind: model.KindDelivery, RecordedAt: at}
			if err := s.AppendEvent(ctx, gap); !errors.Is(err, ErrSeqConflict) {
				t.Errorf("expected ErrSeqConflict, got %v", err)
			}
			dup := model.BallEvent{ID: "e5", ClientID: "c-1", MatchID: "m1", Seq: 5, Kind: model.KindDelivery, RecordedAt: at}
			if err := s.AppendEvent(ctx, dup); !errors.Is(err, ErrDuplicateEvent) {
				t.Errorf("expected ErrDuplicateEvent, got %v", err)
			}
			orphan := model.BallEvent{ID: "x1", MatchID: "ghost", Seq: 1, RecordedAt: at}
			if err := s.AppendEvent(ctx, orphan); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound for unknown match, got %v", err)
			}

			got, err := s.Events(ctx, "m1")
			if err != nil {
				t.Fatalf("events: %v", err)
			}
			if len(got) != len(events) {
				t.Fatalf("expected %d events, got %d", len(events), len(got))
			}
			for i := range events {
				if got[i].ID != events[i].ID || got[i].Seq != events[i].Seq || got[i].Kind != events[i].Kind {
					t.Errorf("event %d mismatch: %+v", i, got[i])
				}
			}
			if got[2].Wicket == nil || *got[2].Wicket != *events[2].Wicket {
				t.Errorf("wicket not preserved: %+v", got[2].Wicket)
			}
			if got[0].Wicket != nil {
				t.Errorf("unexpected wicket on innings start")
			}
			if got[3].VoidsSeq != 3 || !got[1].Legal || got[1].RunsOffBat != 4 {
				t.Errorf("fields not preserved: %+v %+v", got[1], got[3])
			}
			if !got[1].RecordedAt.Equal(at) {
				t.Errorf("expected recorded_at %v, got %v", at, got[1].RecordedAt)
			}

			byClient, err := s.EventByClientID(ctx, "m1", "c-2")
			if err != nil || byClient.Seq != 3 {
				t.Errorf("expected seq 3 for c-2, got %d (%v)", byClient.Seq, err)
			}
			if _, err := s.EventByClientID(ctx, "m1", "c-404"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_StatsAndHistory(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.CreateMatch(ctx, testMatch("m1")); err != nil {
				t.Fatalf("create: %v", err)
			}
			first := model.MatchStats{
				MatchID: "m1",
				Batting: []model.BattingStat{{MatchID: "m1", PlayerID: "h1", Matches: 1, Innings: 1, Runs: 50, BallsFaced: 40, Dismissals: 1, HighScore: 50, StrikeRate: 125}},
			}
			if err := s.ReplaceMatchStats(ctx, first); err != nil {
				t.Fatalf("replace: %v", err)
			}
			second := model.MatchStats{
				MatchID: "m1",
				Batting: []model.BattingStat{{MatchID: "m1", PlayerID: "h1", Matches: 1, Innings: 1, Runs: 20, BallsFaced: 10, NotOuts: 1, HighScore: 20, StrikeRate: 200}},
				Bowling: []model.BowlingStat{{MatchID: "m1", PlayerID: "a2", Innings: 1, Balls: 12, Overs: "2.0", Runs: 20, Wickets: 1, Economy: 10, StrikeRate: 12, Average: 20}},
				Fielding: []model.FieldingStat{
					{MatchID: "m1", PlayerID: "a1", Matches: 1, CaughtBehind: 1},
					{MatchID: "m1", PlayerID: "a2", Matches: 1},
				},
			}
			if err := s.ReplaceMatchStats(ctx, second); err != nil {
				t.Fatalf("replace again: %v", err)
			}

			got, err := s.MatchStats(ctx, "m1")
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if len(got.Batting) != 1 || got.Batting[0].Runs != 20 {
				t.Errorf("expected the replaced batting row, got %+v", got.Batting)
			}
			if len(got.Bowling) != 1 || got.Bowling[0] != second.Bowling[0] {
				t.Errorf("bowling row mismatch: %+v", got.Bowling)
			}
			if len(got.Fielding) != 2 {
				t.Errorf("expected 2 fielding rows, got %d", len(got.Fielding))
			}
			if _, err := s.MatchStats(ctx, "m2"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			if err := s.SetAvailability(ctx, "h2", false); err != nil {
				t.Fatalf("availability: %v", err)
			}
			if err := s.SetAvailability(ctx, "zz", false); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if err := s.UpsertPlayers(ctx, []model.PlayerInfo{{ID: "r1", Name: "Reserve", Role: model.RoleBowler, Available: false}}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			// registering a squad again must keep the availability set above
			again := testMatch("m2")
			if err := s.CreateMatch(ctx, again); err != nil {
				t.Fatalf("create m2: %v", err)
			}

			recs, err := History(ctx, s)
			if err != nil {
				t.Fatalf("history: %v", err)
			}
			if len(recs) != 5 {
				t.Fatalf("expected 5 records, got %d", len(recs))
			}
			byID := map[string]int{}
			for i, r := range recs {
				byID[r.PlayerID] = i
			}
			if r := recs[byID["h1"]]; r.Batting.Runs != 20 || r.Batting.Average != 20 || r.Role != model.RoleBatter {
				t.Errorf("unexpected h1 record: %+v", r)
			}
			if r := recs[byID["h2"]]; r.Available {
				t.Errorf("expected h2 unavailable after re-registration")
			}
			if r := recs[byID["r1"]]; r.Available || r.PlayerName != "Reserve" {
				t.Errorf("unexpected r1 record: %+v", r)
			}
			if r := recs[byID["a1"]]; r.Fielding.CaughtBehind != 1 {
				t.Errorf("unexpected a1 fielding: %+v", r.Fielding)
			}
		})
	}
}

func TestStore_StaleStatsRejected(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.CreateMatch(ctx, testMatch("m1")); err != nil {
				t.Fatalf("create: %v", err)
			}
			newer := model.MatchStats{
				MatchID: "m1",
				Seq:     6,
				Batting: []model.BattingStat{{MatchID: "m1", PlayerID: "h1", Matches: 1, Innings: 1, Runs: 12}},
			}
			older := model.MatchStats{
				MatchID: "m1",
				Seq:     5,
				Batting: []model.BattingStat{{MatchID: "m1", PlayerID: "h1", Matches: 1, Innings: 1, Runs: 8}},
			}
			if err := s.ReplaceMatchStats(ctx, newer); err != nil {
				t.Fatalf("replace newer: %v", err)
			}
			if err := s.ReplaceMatchStats(ctx, older); !errors.Is(err, model.ErrStaleStats) {
				t.Fatalf("expected ErrStaleStats, got %v", err)
			}

			got, err := s.MatchStats(ctx, "m1")
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if got.Seq != 6 || got.Batting[0].Runs != 12 {
				t.Errorf("expected the seq 6 rows to stay, got seq %d runs %d", got.Seq, got.Batting[0].Runs)
			}

			newer.Batting[0].Runs = 14
			if err := s.ReplaceMatchStats(ctx, newer); err != nil {
				t.Errorf("same seq must be accepted: %v", err)
			}
			all, err := s.AllStats(ctx)
			if err != nil {
				t.Fatalf("all stats: %v", err)
			}
			if len(all) != 1 || all[0].Seq != 6 || all[0].Batting[0].Runs != 14 {
				t.Errorf("unexpected stats after rewrite: %+v", all)
			}
		})
	}
}
