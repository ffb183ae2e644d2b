package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3" // database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore persists the ledger, stat rows and roster in one SQLite file.
type SQLiteStore struct {
	db           *sql.DB
	log          logger.Logger
	maxOpenConns int
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens path, applies the embedded migrations and returns the store.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{log: logger.Named("repository"), maxOpenConns: 4}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetMaxIdleConns(s.maxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
	s.db = db

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info(ctx, "sqlite store ready", logger.String("path", path))
	return s, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateMatch(ctx context.Context, m model.Match) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id = ?`, m.ID).Scan(&exists)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrMatchExists, m.ID)
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		result, err := encodeResult(m.Result)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO matches (id, home_name, away_name, overs, toss_winner, toss_decision, state, result, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Home.Name, m.Away.Name, m.Overs, string(m.TossWinner), string(m.TossDecision),
			string(m.State), result, unixNano(m.CreatedAt), unixNano(m.UpdatedAt)); err != nil {
			return fmt.Errorf("insert match %s: %w", m.ID, err)
		}

		for _, p := range squadPlayers(m) {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO players (id, name, role, available) VALUES (?, ?, ?, 1)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role`,
				p.ID, p.Name, string(p.Role)); err != nil {
				return fmt.Errorf("register player %s: %w", p.ID, err)
			}
		}
		for _, side := range []model.Side{model.Home, model.Away} {
			for i, p := range m.Team(side).Players {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO match_players (match_id, side, position, player_id, name, role) VALUES (?, ?, ?, ?, ?, ?)`,
					m.ID, string(side), i, p.ID, p.Name, string(p.Role)); err != nil {
					return fmt.Errorf("insert squad of %s: %w", m.ID, err)
				}
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpdateMatch(ctx context.Context, m model.Match) error {
	result, err := encodeResult(m.Result)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE matches SET toss_winner = ?, toss_decision = ?, state = ?, result = ?, updated_at = ?
		WHERE id = ?`,
		string(m.TossWinner), string(m.TossDecision), string(m.State), result, unixNano(m.UpdatedAt), m.ID)
	if err != nil {
		return fmt.Errorf("update match %s: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: match %s", ErrNotFound, m.ID)
	}
	return nil
}

const matchColumns = `id, home_name, away_name, overs, toss_winner, toss_decision, state, result, created_at, updated_at`

func (s *SQLiteStore) GetMatch(ctx context.Context, id string) (model.Match, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Match{}, err
	}
	if err := s.loadSquads(ctx, &m); err != nil {
		return model.Match{}, err
	}
	return m, nil
}

func (s *SQLiteStore) ListMatches(ctx context.Context) ([]model.Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadSquads(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) loadSquads(ctx context.Context, m *model.Match) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT side, player_id, name, role FROM match_players WHERE match_id = ? ORDER BY side, position`, m.ID)
	if err != nil {
		return fmt.Errorf("load squads of %s: %w", m.ID, err)
	}
	for rows.Next() {
		var side, role string
		var p model.Player
		if err := rows.Scan(&side, &p.ID, &p.Name, &role); err != nil {
			_ = rows.Close()
			return err
		}
		p.Role = model.Role(role)
		if model.Side(side) == model.Home {
			m.Home.Players = append(m.Home.Players, p)
		} else {
			m.Away.Players = append(m.Away.Players, p)
		}
	}
	return closeRows(rows)
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.BallEvent) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var last sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT MAX(seq) FROM ball_events WHERE match_id = ?) FROM matches WHERE id = ?`,
			ev.MatchID, ev.MatchID).Scan(&last)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: match %s", ErrNotFound, ev.MatchID)
		}
		if err != nil {
			return err
		}
		if want := int(last.Int64) + 1; ev.Seq != want {
			return fmt.Errorf("%w: match %s got seq %d, want %d", ErrSeqConflict, ev.MatchID, ev.Seq, want)
		}
		if ev.ClientID != "" {
			var dup int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM ball_events WHERE match_id = ? AND client_id = ?`,
				ev.MatchID, ev.ClientID).Scan(&dup)
			if err == nil {
				return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ClientID)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		var w model.Wicket
		if ev.Wicket != nil {
			w = *ev.Wicket
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ball_events (match_id, seq, id, client_id, kind, voids_seq, innings, over_no, ball_in_over, legal,
				striker, non_striker, bowler, runs_off_bat, extra_type, extras,
				dismissal_kind, player_out, fielder, wicket_end, incoming_batter, notes, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.MatchID, ev.Seq, ev.ID, ev.ClientID, string(ev.Kind), ev.VoidsSeq, ev.Innings, ev.Over, ev.BallInOver, ev.Legal,
			ev.Striker, ev.NonStriker, ev.Bowler, ev.RunsOffBat, string(ev.ExtraType), ev.Extras,
			string(w.Kind), w.PlayerOut, w.Fielder, string(w.End), ev.IncomingBatter, ev.Notes, unixNano(ev.RecordedAt))
		if err != nil {
			return fmt.Errorf("append seq %d to %s: %w", ev.Seq, ev.MatchID, err)
		}
		return nil
	})
}

const eventColumns = `match_id, seq, id, client_id, kind, voids_seq, innings, over_no, ball_in_over, legal,
	striker, non_striker, bowler, runs_off_bat, extra_type, extras,
	dismissal_kind, player_out, fielder, wicket_end, incoming_batter, notes, recorded_at`

func (s *SQLiteStore) Events(ctx context.Context, matchID string) ([]model.BallEvent, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM ball_events WHERE match_id = ? ORDER BY seq`, matchID)
	if err != nil {
		return nil, fmt.Errorf("load ledger of %s: %w", matchID, err)
	}
	var out []model.BallEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, ev)
	}
	return out, closeRows(rows)
}

func (s *SQLiteStore) LastSeq(ctx context.Context, matchID string) (int, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT MAX(seq) FROM ball_events WHERE match_id = ?) FROM matches WHERE id = ?`,
		matchID, matchID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	if err != nil {
		return 0, fmt.Errorf("last seq of %s: %w", matchID, err)
	}
	return int(last.Int64), nil
}

func (s *SQLiteStore) EventByClientID(ctx context.Context, matchID, clientID string) (model.BallEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM ball_events WHERE match_id = ? AND client_id = ?`,
		matchID, clientID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BallEvent{}, fmt.Errorf("%w: event %s", ErrNotFound, clientID)
	}
	return ev, err
}

func (s *SQLiteStore) ReplaceMatchStats(ctx context.Context, st model.MatchStats) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		var stored int
		err := tx.QueryRowContext(ctx, `SELECT seq FROM match_stats WHERE match_id = ?`, st.MatchID).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read stats seq of %s: %w", st.MatchID, err)
		case st.Seq < stored:
			return fmt.Errorf("%w: match %s at seq %d, stored %d", model.ErrStaleStats, st.MatchID, st.Seq, stored)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO match_stats (match_id, seq) VALUES (?, ?)
			ON CONFLICT (match_id) DO UPDATE SET seq = excluded.seq`, st.MatchID, st.Seq); err != nil {
			return fmt.Errorf("store stats seq of %s: %w", st.MatchID, err)
		}
		for _, table := range []string{"batting_stats", "bowling_stats", "fielding_stats"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE match_id = ?`, st.MatchID); err != nil {
				return fmt.Errorf("clear %s for %s: %w", table, st.MatchID, err)
			}
		}
		for _, b := range st.Batting {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO batting_stats (match_id, player_id, matches, innings, runs, balls_faced, fours, sixes,
					dismissals, not_outs, high_score, strike_rate)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				st.MatchID, b.PlayerID, b.Matches, b.Innings, b.Runs, b.BallsFaced, b.Fours, b.Sixes,
				b.Dismissals, b.NotOuts, b.HighScore, b.StrikeRate); err != nil {
				return fmt.Errorf("insert batting row %s: %w", b.PlayerID, err)
			}
		}
		for _, b := range st.Bowling {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO bowling_stats (match_id, player_id, innings, balls, runs, wickets, wides, no_balls,
					economy, strike_rate, average)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				st.MatchID, b.PlayerID, b.Innings, b.Balls, b.Runs, b.Wickets, b.Wides, b.NoBalls,
				b.Economy, b.StrikeRate, b.Average); err != nil {
				return fmt.Errorf("insert bowling row %s: %w", b.PlayerID, err)
			}
		}
		for _, f := range st.Fielding {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO fielding_stats (match_id, player_id, matches, catches, caught_behind, run_outs, stumpings)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				st.MatchID, f.PlayerID, f.Matches, f.Catches, f.CaughtBehind, f.RunOuts, f.Stumpings); err != nil {
				return fmt.Errorf("insert fielding row %s: %w", f.PlayerID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) MatchStats(ctx context.Context, matchID string) (model.MatchStats, error) {
	all, err := s.loadStats(ctx, `WHERE match_id = ?`, matchID)
	if err != nil {
		return model.MatchStats{}, err
	}
	if len(all) == 0 {
		return model.MatchStats{}, fmt.Errorf("%w: stats for match %s", ErrNotFound, matchID)
	}
	return all[0], nil
}

func (s *SQLiteStore) AllStats(ctx context.Context) ([]model.MatchStats, error) {
	return s.loadStats(ctx, ``)
}

// loadStats reads the three stat tables and groups rows by match id.
func (s *SQLiteStore) loadStats(ctx context.Context, where string, args ...any) ([]model.MatchStats, error) {
	byMatch := map[string]*model.MatchStats{}
	var order []string
	get := func(id string) *model.MatchStats {
		st, ok := byMatch[id]
		if !ok {
			st = &model.MatchStats{MatchID: id}
			byMatch[id] = st
			order = append(order, id)
		}
		return st
	}

	err := s.each(ctx, `SELECT match_id, player_id, matches, innings, runs, balls_faced, fours, sixes,
		dismissals, not_outs, high_score, strike_rate FROM batting_stats `+where+` ORDER BY match_id, player_id`,
		args, func(rows *sql.Rows) error {
			var b model.BattingStat
			if err := rows.Scan(&b.MatchID, &b.PlayerID, &b.Matches, &b.Innings, &b.Runs, &b.BallsFaced, &b.Fours,
				&b.Sixes, &b.Dismissals, &b.NotOuts, &b.HighScore, &b.StrikeRate); err != nil {
				return err
			}
			st := get(b.MatchID)
			st.Batting = append(st.Batting, b)
			return nil
		})
	if err != nil {
		return nil, err
	}

	err = s.each(ctx, `SELECT match_id, player_id, innings, balls, runs, wickets, wides, no_balls,
		economy, strike_rate, average FROM bowling_stats `+where+` ORDER BY match_id, player_id`,
		args, func(rows *sql.Rows) error {
			var b model.BowlingStat
			if err := rows.Scan(&b.MatchID, &b.PlayerID, &b.Innings, &b.Balls, &b.Runs, &b.Wickets, &b.Wides,
				&b.NoBalls, &b.Economy, &b.StrikeRate, &b.Average); err != nil {
				return err
			}
			b.Overs = model.FormatOvers(b.Balls)
			st := get(b.MatchID)
			st.Bowling = append(st.Bowling, b)
			return nil
		})
	if err != nil {
		return nil, err
	}

	err = s.each(ctx, `SELECT match_id, player_id, matches, catches, caught_behind, run_outs, stumpings
		FROM fielding_stats `+where+` ORDER BY match_id, player_id`,
		args, func(rows *sql.Rows) error {
			var f model.FieldingStat
			if err := rows.Scan(&f.MatchID, &f.PlayerID, &f.Matches, &f.Catches, &f.CaughtBehind, &f.RunOuts,
				&f.Stumpings); err != nil {
				return err
			}
			st := get(f.MatchID)
			st.Fielding = append(st.Fielding, f)
			return nil
		})
	if err != nil {
		return nil, err
	}

	err = s.each(ctx, `SELECT match_id, seq FROM match_stats `+where, args, func(rows *sql.Rows) error {
		var id string
		var seq int
		if err := rows.Scan(&id, &seq); err != nil {
			return err
		}
		if st, ok := byMatch[id]; ok {
			st.Seq = seq
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.MatchStats, 0, len(order))
	for _, id := range order {
		out = append(out, *byMatch[id])
	}
	sortStats(out)
	return out, nil
}

func (s *SQLiteStore) UpsertPlayers(ctx context.Context, players []model.PlayerInfo) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		for _, p := range players {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO players (id, name, role, available) VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role, available = excluded.available`,
				p.ID, p.Name, string(p.Role), p.Available); err != nil {
				return fmt.Errorf("upsert player %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SetAvailability(ctx context.Context, playerID string, available bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE players SET available = ? WHERE id = ?`, available, playerID)
	if err != nil {
		return fmt.Errorf("set availability of %s: %w", playerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	return nil
}

func (s *SQLiteStore) Players(ctx context.Context) ([]model.PlayerInfo, error) {
	var out []model.PlayerInfo
	err := s.each(ctx, `SELECT id, name, role, available FROM players ORDER BY id`, nil, func(rows *sql.Rows) error {
		var p model.PlayerInfo
		var role string
		if err := rows.Scan(&p.ID, &p.Name, &role, &p.Available); err != nil {
			return err
		}
		p.Role = model.Role(role)
		out = append(out, p)
		return nil
	})
	return out, err
}

func (s *SQLiteStore) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn(ctx, "rollback failed", logger.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) each(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	for rows.Next() {
		if err := fn(rows); err != nil {
			_ = rows.Close()
			return err
		}
	}
	return closeRows(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (model.Match, error) {
	var (
		m                     model.Match
		toss, decision, state string
		result                sql.NullString
		created, updated      int64
	)
	if err := row.Scan(&m.ID, &m.Home.Name, &m.Away.Name, &m.Overs, &toss, &decision, &state, &result,
		&created, &updated); err != nil {
		return model.Match{}, err
	}
	m.TossWinner = model.Side(toss)
	m.TossDecision = model.TossDecision(decision)
	m.State = model.MatchState(state)
	m.CreatedAt, m.UpdatedAt = fromUnixNano(created), fromUnixNano(updated)
	if result.Valid && result.String != "" {
		m.Result = &model.Result{}
		if err := json.Unmarshal([]byte(result.String), m.Result); err != nil {
			return model.Match{}, fmt.Errorf("decode result of %s: %w", m.ID, err)
		}
	}
	return m, nil
}

func scanEvent(row scanner) (model.BallEvent, error) {
	var (
		ev                          model.BallEvent
		kind, extra, dismissal, end string
		playerOut, fielder          string
		recorded                    int64
	)
	if err := row.Scan(&ev.MatchID, &ev.Seq, &ev.ID, &ev.ClientID, &kind, &ev.VoidsSeq, &ev.Innings, &ev.Over,
		&ev.BallInOver, &ev.Legal, &ev.Striker, &ev.NonStriker, &ev.Bowler, &ev.RunsOffBat, &extra, &ev.Extras,
		&dismissal, &playerOut, &fielder, &end, &ev.IncomingBatter, &ev.Notes, &recorded); err != nil {
		return model.BallEvent{}, err
	}
	ev.Kind = model.EventKind(kind)
	ev.ExtraType = model.ExtraType(extra)
	ev.RecordedAt = fromUnixNano(recorded)
	if dismissal != "" {
		ev.Wicket = &model.Wicket{
			Kind:      model.DismissalKind(dismissal),
			PlayerOut: playerOut,
			Fielder:   fielder,
			End:       model.End(end),
		}
	}
	return ev, nil
}

func encodeResult(r *model.Result) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode result: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func sortStats(stats []model.MatchStats) {
	sort.Slice(stats, func(i, j int) bool { return stats[i].MatchID < stats[j].MatchID })
}
