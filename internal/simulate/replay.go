package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/pkg/logger"
)

const defaultReplayTimeout = 30 * time.Second

// ReplayStats counts what a replay sent and how the server answered.
type ReplayStats struct {
	Matches    int
	Balls      int64
	Accepted   int64
	Duplicates int64
	Duration   time.Duration
}

// Replayer scores generated matches against a running service, the way a
// scorer's console would.
type Replayer struct {
	baseURL string
	client  *http.Client
	workers int
	resend  bool
	log     logger.Logger
}

// ReplayOption configures a Replayer.
type ReplayOption func(*Replayer)

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(c *http.Client) ReplayOption {
	return func(r *Replayer) {
		if c != nil {
			r.client = c
		}
	}
}

// WithReplayWorkers bounds how many matches are scored at once.
func WithReplayWorkers(n int) ReplayOption {
	return func(r *Replayer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithResend submits every ball twice; the second must come back as a duplicate.
func WithResend(on bool) ReplayOption {
	return func(r *Replayer) { r.resend = on }
}

// NewReplayer targets the service at baseURL.
func NewReplayer(baseURL string, opts ...ReplayOption) *Replayer {
	r := &Replayer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultReplayTimeout},
		workers: runtime.NumCPU(),
		log:     logger.Named("replay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ballAck struct {
	Status string `json:"status"`
}

// Replay creates each match on the server and scores it ball by ball, then
// sets roster availability.
func (r *Replayer) Replay(ctx context.Context, res *Result) (ReplayStats, error) {
	start := time.Now()
	var balls, accepted, duplicates atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, sc := range res.Scripts {
		g.Go(func() error {
			return r.score(gctx, sc, &balls, &accepted, &duplicates)
		})
	}
	if err := g.Wait(); err != nil {
		return ReplayStats{}, err
	}

	for _, p := range res.Players {
		body := map[string]bool{"available": p.Available}
		if err := r.call(ctx, http.MethodPut, "/players/"+url.PathEscape(p.ID)+"/availability", body, nil, http.StatusOK); err != nil {
			return ReplayStats{}, err
		}
	}

	st := ReplayStats{
		Matches:    len(res.Scripts),
		Balls:      balls.Load(),
		Accepted:   accepted.Load(),
		Duplicates: duplicates.Load(),
		Duration:   time.Since(start),
	}
	r.log.Info(ctx, "replay complete",
		logger.Int("matches", st.Matches),
		logger.Int64("balls", st.Balls),
		logger.Int64("accepted", st.Accepted),
		logger.Int64("duplicates", st.Duplicates),
		logger.Duration("duration", st.Duration))
	return st, nil
}

func (r *Replayer) score(ctx context.Context, sc Script, balls, accepted, duplicates *atomic.Int64) error {
	id := sc.Setup.ID
	base := "/matches/" + url.PathEscape(id)

	create := map[string]any{"id": id, "home": sc.Setup.Home, "away": sc.Setup.Away, "overs": sc.Setup.Overs}
	if err := r.call(ctx, http.MethodPost, "/matches", create, nil, http.StatusCreated); err != nil {
		return err
	}
	toss := map[string]any{"winner": sc.Toss.Winner, "decision": sc.Toss.Decision}
	if err := r.call(ctx, http.MethodPost, base+"/toss", toss, nil, http.StatusOK); err != nil {
		return err
	}

	for _, in := range sc.Innings {
		open := map[string]string{"striker": in.Striker, "non_striker": in.NonStriker, "bowler": in.Bowler}
		if err := r.call(ctx, http.MethodPost, base+"/innings", open, nil, http.StatusCreated); err != nil {
			return err
		}
		for _, p := range in.Balls {
			if err := r.ball(ctx, base, p, http.StatusCreated); err != nil {
				return err
			}
			balls.Add(1)
			accepted.Add(1)
			if !r.resend {
				continue
			}
			if err := r.ball(ctx, base, p, http.StatusOK); err != nil {
				return err
			}
			balls.Add(1)
			duplicates.Add(1)
		}
	}
	r.log.Debug(ctx, "match scored", logger.String("match_id", id))
	return nil
}

func (r *Replayer) ball(ctx context.Context, base string, p scoring.Proposal, want int) error {
	var ack ballAck
	if err := r.call(ctx, http.MethodPost, base+"/balls", p, &ack, want); err != nil {
		return err
	}
	expect := "accepted"
	if want == http.StatusOK {
		expect = "duplicate"
	}
	if ack.Status != expect {
		return fmt.Errorf("%w: ball %s: status %q, want %q", ErrReplay, p.ClientID, ack.Status, expect)
	}
	return nil
}

func (r *Replayer) call(ctx context.Context, method, path string, body, out any, want int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrReplay, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
