package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/okian/crease/internal/adapters/ingest"
	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/domain/history"
	"github.com/okian/crease/internal/domain/weights"
	"github.com/okian/crease/internal/simulate"
	"github.com/okian/crease/pkg/logger"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

// inputFlags are shared by every command that reads player data.
type inputFlags struct {
	mode      string
	input     string
	roster    string
	weights   string
	out       string
	format    string
	logLevel  string
	logFormat string
}

func (f *inputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.mode, "mode", string(ingest.ModeHistory), "input mode: history or ball_by_ball")
	fs.StringVar(&f.input, "input", "", "history CSV, or the ledger CSV in ball_by_ball mode (required)")
	fs.StringVar(&f.roster, "roster", "", "roster CSV (required in ball_by_ball mode)")
	fs.StringVar(&f.weights, "weights", "", "weights file (yaml, json or toml); defaults are built in")
	fs.StringVar(&f.out, "out", "-", "output file, - for stdout")
	fs.StringVar(&f.format, "format", formatCSV, "output format: csv or json")
	fs.StringVar(&f.logLevel, "log-level", "warn", "log level")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
}

func flagSet(env *Env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	return fs
}

func (f *inputFlags) check() error {
	if f.input == "" {
		return fmt.Errorf("%w: -input", ErrMissingFlag)
	}
	if f.format != formatCSV && f.format != formatJSON {
		return fmt.Errorf("%w: -format must be csv or json, got %q", ErrUsage, f.format)
	}
	return nil
}

// records reads the input in the chosen mode.
func (f *inputFlags) records(env *Env) ([]history.Record, error) {
	mode, err := ingest.ParseMode(f.mode)
	if err != nil {
		return nil, err
	}
	in, err := env.Open(f.input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	if mode == ingest.ModeHistory {
		return ingest.ReadHistory(in, f.input)
	}
	if f.roster == "" {
		return nil, fmt.Errorf("%w: -roster", ErrMissingFlag)
	}
	roster, err := env.Open(f.roster)
	if err != nil {
		return nil, err
	}
	defer func() { _ = roster.Close() }()
	l, err := ingest.ReadBallByBall(in, roster)
	if err != nil {
		return nil, err
	}
	return l.Records(), nil
}

// prepare parses flags, starts logging and loads the input and weights.
func prepare(env *Env, name string, args []string) (*inputFlags, *service.Service, []history.Record, error) {
	var f inputFlags
	fs := flagSet(env, name)
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	if err := f.check(); err != nil {
		return nil, nil, nil, err
	}
	if err := setupLogging(env, f.logLevel, f.logFormat); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	cfg, err := weights.Load(f.weights)
	if err != nil {
		return nil, nil, nil, err
	}
	recs, err := f.records(env)
	if err != nil {
		return nil, nil, nil, err
	}
	if recs == nil {
		recs = []history.Record{}
	}
	return &f, service.New(service.WithWeights(cfg)), recs, nil
}

func write(env *Env, f *inputFlags, v any, asCSV func(io.Writer) error) (err error) {
	w, err := env.output(f.out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	if f.format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return asCSV(w)
}

func runRate(ctx context.Context, env *Env, args []string) error {
	f, svc, recs, err := prepare(env, "rate", args)
	if err != nil {
		return err
	}
	results, err := svc.Rate(ctx, recs)
	if err != nil {
		return err
	}
	return write(env, f, results, func(w io.Writer) error { return ingest.WriteRatings(w, results) })
}

func runTeam(ctx context.Context, env *Env, args []string) error {
	f, svc, recs, err := prepare(env, "team", args)
	if err != nil {
		return err
	}
	team, err := svc.Team(ctx, recs)
	if err != nil {
		return err
	}
	if err := team.Err(); err != nil {
		fmt.Fprintf(env.Stderr, "team: %v\n", err)
	}
	return write(env, f, team, func(w io.Writer) error { return ingest.WriteTeam(w, team) })
}

func runHistory(_ context.Context, env *Env, args []string) error {
	var f inputFlags
	fs := flagSet(env, "history")
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := f.check(); err != nil {
		return err
	}
	if err := setupLogging(env, f.logLevel, f.logFormat); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	recs, err := f.records(env)
	if err != nil {
		return err
	}
	return write(env, &f, recs, func(w io.Writer) error { return ingest.WriteHistory(w, recs) })
}

func runSimulate(ctx context.Context, env *Env, args []string) error {
	var (
		matches, overs, workers int
		seed                    uint64
		unavailable             float64
		ledgerPath, rosterPath  string
		url                     string
		resend                  bool
		timeout                 time.Duration
		logLevel, logFormat     string
	)
	fs := flagSet(env, "simulate")
	fs.IntVar(&matches, "matches", 1, "number of matches")
	fs.IntVar(&overs, "overs", 20, "overs per innings")
	fs.IntVar(&workers, "workers", 0, "matches played at once (0: one per CPU)")
	fs.Uint64Var(&seed, "seed", 1, "random seed; equal seeds give equal matches")
	fs.Float64Var(&unavailable, "unavailable", 0.1, "share of players marked unavailable")
	fs.StringVar(&ledgerPath, "ledger", "-", "ledger CSV output, - for stdout")
	fs.StringVar(&rosterPath, "roster", "", "roster CSV output (required unless -url is set)")
	fs.StringVar(&url, "url", "", "score the matches against the service at this base URL instead")
	fs.BoolVar(&resend, "resend", false, "with -url, submit every ball twice to exercise idempotency")
	fs.DurationVar(&timeout, "timeout", 10*time.Minute, "overall deadline")
	fs.StringVar(&logLevel, "log-level", "info", "log level")
	fs.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if url == "" && rosterPath == "" {
		return fmt.Errorf("%w: -roster", ErrMissingFlag)
	}
	if err := setupLogging(env, logLevel, logFormat); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := simulate.New(
		simulate.WithMatches(matches),
		simulate.WithOvers(overs),
		simulate.WithSeed(seed),
		simulate.WithWorkers(workers),
		simulate.WithUnavailableRate(unavailable),
	).Run(ctx)
	if err != nil {
		return err
	}

	if url != "" {
		st, err := simulate.NewReplayer(url, simulate.WithResend(resend), simulate.WithReplayWorkers(workers)).Replay(ctx, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "matches=%d balls=%d accepted=%d duplicates=%d duration=%s\n",
			st.Matches, st.Balls, st.Accepted, st.Duplicates, st.Duration.Round(time.Millisecond))
		return nil
	}

	return writeLedger(env, ledgerPath, rosterPath, res)
}

func writeLedger(env *Env, ledgerPath, rosterPath string, res *simulate.Result) (err error) {
	lw, err := env.output(ledgerPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := lw.Close(); err == nil {
			err = cerr
		}
	}()
	rw, err := env.output(rosterPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rw.Close(); err == nil {
			err = cerr
		}
	}()
	if err := ingest.WriteBallByBall(lw, rw, res.Ledger()); err != nil {
		return err
	}
	logger.Get().Info(context.Background(), "ledger written",
		logger.String("ledger", ledgerPath), logger.String("roster", rosterPath))
	return nil
}
