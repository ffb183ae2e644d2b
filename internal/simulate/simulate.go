// Package simulate plays seeded random matches through the scoring state
// machine. Every generated delivery is one a scorer could legally enter, so
// the output feeds ball-by-ball ingestion, rating and load tests against a
// running service.
package simulate

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/crease/internal/adapters/ingest"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/pkg/logger"
)

const (
	defaultMatches     = 1
	defaultOvers       = 20
	defaultUnavailable = 0.1
	squadSize          = 11
	ballInterval       = 20 * time.Second
	matchInterval      = 24 * time.Hour
)

// Simulator generates matches.
type Simulator struct {
	matches     int
	overs       int
	seed        uint64
	workers     int
	unavailable float64
	start       time.Time
	home, away  model.Team
	log         logger.Logger
}

// Toss is the generated toss call.
type Toss struct {
	Winner   model.Side         `json:"winner"`
	Decision model.TossDecision `json:"decision"`
}

// InningsScript is the opening call of an innings and every delivery after it.
type InningsScript struct {
	Striker    string             `json:"striker"`
	NonStriker string             `json:"non_striker"`
	Bowler     string             `json:"bowler"`
	Balls      []scoring.Proposal `json:"balls"`
}

// Script is one generated match: the calls a scorer made and what the state
// machine recorded for them.
type Script struct {
	Setup   model.Match       `json:"setup"`
	Toss    Toss              `json:"toss"`
	Innings []InningsScript   `json:"innings"`
	Final   model.Match       `json:"final"`
	Events  []model.BallEvent `json:"events"`
}

// Result is a batch of generated matches over one roster.
type Result struct {
	Players []model.PlayerInfo
	Scripts []Script
}

// New returns a Simulator with two generated squads.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		matches:     defaultMatches,
		overs:       defaultOvers,
		seed:        1,
		workers:     runtime.NumCPU(),
		unavailable: defaultUnavailable,
		start:       time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC),
		home:        Squad("Lions", "lio"),
		away:        Squad("Tigers", "tig"),
		log:         logger.Named("simulate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Squad builds an eleven with a keeper, four batters, two allrounders and four
// bowlers. Ids are prefix-01 to prefix-11.
func Squad(name, prefix string) model.Team {
	roles := []model.Role{
		model.RoleWicketKeeper,
		model.RoleBatter, model.RoleBatter, model.RoleBatter, model.RoleBatter,
		model.RoleAllrounder, model.RoleAllrounder,
		model.RoleBowler, model.RoleBowler, model.RoleBowler, model.RoleBowler,
	}
	t := model.Team{Name: name, Players: make([]model.Player, 0, squadSize)}
	for i, r := range roles {
		t.Players = append(t.Players, model.Player{
			ID:   fmt.Sprintf("%s-%02d", prefix, i+1),
			Name: fmt.Sprintf("%s %s %d", name, r, i+1),
			Role: r,
		})
	}
	return t
}

// Run plays every match. Matches are independent and run concurrently, each
// with its own random stream, so the result depends only on the options.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	scripts := make([]Script, s.matches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range scripts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sc, err := s.play(i)
			if err != nil {
				return err
			}
			scripts[i] = sc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Scripts: scripts, Players: s.roster()}
	s.log.Info(ctx, "simulation complete",
		logger.Int("matches", len(scripts)),
		logger.Int("players", len(res.Players)),
		logger.Int("events", res.events()))
	return res, nil
}

// roster marks a seeded share of players unavailable.
func (s *Simulator) roster() []model.PlayerInfo {
	rng := rand.New(rand.NewPCG(s.seed, uint64(s.matches)+1))
	var out []model.PlayerInfo
	for _, t := range []model.Team{s.home, s.away} {
		for _, p := range t.Players {
			out = append(out, model.PlayerInfo{
				ID:        p.ID,
				Name:      p.Name,
				Role:      p.Role,
				Available: rng.Float64() >= s.unavailable,
			})
		}
	}
	return out
}

func (s *Simulator) play(idx int) (Script, error) {
	rng := rand.New(rand.NewPCG(s.seed, uint64(idx)))
	id := fmt.Sprintf("sim-%03d", idx+1)
	base := s.start.Add(time.Duration(idx) * matchInterval)

	setup := model.Match{ID: id, Home: s.home, Away: s.away, Overs: s.overs, CreatedAt: base, UpdatedAt: base}
	ticks := 0
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * ballInterval)
	}
	ids := 0
	newID := func() string {
		ids++
		return fmt.Sprintf("%s-%d", id, ids)
	}

	sess, err := scoring.NewSession(setup, scoring.WithClock(clock), scoring.WithIDFunc(newID))
	if err != nil {
		return Script{}, fmt.Errorf("simulate %s: %w", id, err)
	}
	sc := Script{Setup: setup}

	sc.Toss = Toss{Winner: model.Home, Decision: model.TossBat}
	if rng.IntN(2) == 1 {
		sc.Toss.Winner = model.Away
	}
	if rng.IntN(2) == 1 {
		sc.Toss.Decision = model.TossBowl
	}
	if err := sess.SetToss(sc.Toss.Winner, sc.Toss.Decision); err != nil {
		return Script{}, fmt.Errorf("simulate %s: %w", id, err)
	}

	balls := 0
	for n := 1; n <= 2; n++ {
		m := sess.Match()
		batting := m.BattingSide(n)
		order := battingOrder(m.Team(batting))
		fielding := m.Team(batting.Other())
		attack := bowlers(fielding)

		is := InningsScript{Striker: order[0], NonStriker: order[1], Bowler: attack[rng.IntN(len(attack))]}
		if _, err := sess.StartInnings(is.Striker, is.NonStriker, is.Bowler, nil); err != nil {
			return Script{}, fmt.Errorf("simulate %s innings %d: %w", id, n, err)
		}

		next := 2
		for sess.Match().State == model.StateInningsInProgress {
			in, _ := sess.Current()
			bowler := in.Bowler
			if bowler == "" {
				bowler = pickBowler(rng, attack, in.PreviousOverBowler)
			}
			incoming := ""
			if next < len(order) {
				incoming = order[next]
			}
			balls++
			p := delivery(rng, in, bowler, fielding, incoming)
			p.ClientID = fmt.Sprintf("%s-b%d", id, balls)

			ev, err := sess.Record(p, nil)
			if err != nil {
				return Script{}, fmt.Errorf("simulate %s ball %d: %w", id, balls, err)
			}
			if ev.IncomingBatter != "" {
				next++
			}
			// keep what the session recorded so a replay sends the same thing
			p.IncomingBatter = ev.IncomingBatter
			is.Balls = append(is.Balls, p)
		}
		sc.Innings = append(sc.Innings, is)
	}

	sc.Final = sess.Match()
	sc.Events = sess.Events()
	return sc, nil
}

func battingOrder(t model.Team) []string {
	rank := map[model.Role]int{
		model.RoleWicketKeeper: 0,
		model.RoleBatter:       0,
		model.RoleAllrounder:   1,
		model.RoleBowler:       2,
	}
	players := slices.Clone(t.Players)
	slices.SortStableFunc(players, func(a, b model.Player) int { return cmp.Compare(rank[a.Role], rank[b.Role]) })
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}

// bowlers are the bowling options of a side; a side without two of them
// hands the ball to anyone.
func bowlers(t model.Team) []string {
	var out []string
	for _, p := range t.Players {
		if p.Role == model.RoleBowler || p.Role == model.RoleAllrounder {
			out = append(out, p.ID)
		}
	}
	if len(out) >= 2 {
		return out
	}
	out = out[:0]
	for _, p := range t.Players {
		out = append(out, p.ID)
	}
	return out
}

func pickBowler(rng *rand.Rand, attack []string, previous string) string {
	for {
		b := attack[rng.IntN(len(attack))]
		if b != previous {
			return b
		}
	}
}

func keeper(t model.Team) string {
	for _, p := range t.Players {
		if p.Role == model.RoleWicketKeeper {
			return p.ID
		}
	}
	return ""
}

// batRuns draws runs off the bat: mostly dots and singles, some boundaries.
func batRuns(rng *rand.Rand) int {
	switch r := rng.IntN(100); {
	case r < 38:
		return 0
	case r < 70:
		return 1
	case r < 80:
		return 2
	case r < 82:
		return 3
	case r < 94:
		return 4
	default:
		return 6
	}
}

func delivery(rng *rand.Rand, in scoring.Innings, bowler string, fielding model.Team, incoming string) scoring.Proposal {
	p := scoring.Proposal{Striker: in.Striker, Bowler: bowler, ExtraType: model.ExtraNone}

	switch r := rng.IntN(100); {
	case r < 4:
		p.ExtraType, p.Extras = model.ExtraWide, 1
		return p
	case r < 6:
		p.ExtraType, p.Extras = model.ExtraNoBall, 1
		p.RunsOffBat = batRuns(rng)
		return p
	case r < 8:
		p.ExtraType, p.Extras = model.ExtraLegBye, 1+rng.IntN(2)
		return p
	case r < 9:
		p.ExtraType, p.Extras = model.ExtraBye, 1+rng.IntN(4)
		return p
	case r < 14:
		p.Wicket = wicket(rng, in, fielding)
		p.IncomingBatter = incoming
		return p
	}
	p.RunsOffBat = batRuns(rng)
	return p
}

func wicket(rng *rand.Rand, in scoring.Innings, fielding model.Team) *model.Wicket {
	fielder := fielding.Players[rng.IntN(len(fielding.Players))].ID
	wk := keeper(fielding)

	w := &model.Wicket{PlayerOut: in.Striker}
	switch r := rng.IntN(100); {
	case r < 20:
		w.Kind = model.DismissalBowled
	case r < 55:
		w.Kind, w.Fielder = model.DismissalCaught, fielder
	case r < 70:
		w.Kind = model.DismissalLBW
	case r < 80 && wk != "":
		w.Kind, w.Fielder = model.DismissalCaughtBehind, wk
	case r < 85 && wk != "":
		w.Kind, w.Fielder = model.DismissalStumped, wk
	case r < 98:
		w.Kind, w.Fielder, w.End = model.DismissalRunOut, fielder, model.EndStriker
		if rng.IntN(3) == 0 {
			w.PlayerOut, w.End = in.NonStriker, model.EndNonStriker
		}
	default:
		w.Kind = model.DismissalHitWicket
	}
	return w
}

// Ledger returns the batch in ball-by-ball ingestion form.
func (r *Result) Ledger() *ingest.Ledger {
	l := &ingest.Ledger{Players: slices.Clone(r.Players), Events: make(map[string][]model.BallEvent, len(r.Scripts))}
	for _, sc := range r.Scripts {
		l.Matches = append(l.Matches, sc.Final)
		l.Events[sc.Final.ID] = sc.Events
	}
	return l
}

func (r *Result) events() int {
	n := 0
	for _, sc := range r.Scripts {
		n += len(sc.Events)
	}
	return n
}
