package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/internal/adapters/http/api"
	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const matchBody = `{"id":"m1","overs":2,
 "home":{"name":"Home","players":[{"id":"h1","name":"H One","role":"batter"},{"id":"h2","name":"H Two","role":"wk"},{"id":"h3","name":"H Three","role":"bowler"}]},
 "away":{"name":"Away","players":[{"id":"a1","name":"A One","role":"Batter"},{"id":"a2","name":"A Two","role":"all-rounder"},{"id":"a3","name":"A Three","role":"Bowler"}]}}`

const historyBody = `player_name,role,availability,batting_matches,batting_innings,batting_runs,batting_not_out,batting_high_score,batting_avg,batting_strike_rate,bowling_matches,bowling_innings,bowling_overs,bowling_runs,bowling_wickets,bowling_economy,bowling_strike_rate,bowling_avg,bowling_wides,bowling_no_ball,fielding_matches,fielding_catches,fielding_caught_behind,fielding_run_out,fielding_stumping
Asha,batter,yes,10,10,400,2,88,50,125,,,,,,,,,,,10,4,0,1,0
Bilal,bowler,yes,8,4,20,1,12,6.67,80,8,8,30.3,220,14,7.21,13.07,15.71,6,2,8,2,0,0,0
`

type client struct {
	h http.Handler
}

func (c client) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	c.h.ServeHTTP(w, req)
	return w
}

func (c client) json(method, path, body string) (int, map[string]any) {
	w := c.do(method, path, "application/json", body)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func TestScoringRoutes(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, api.WithMaxBallPage(2)).Register(ctx, mux)
		c := client{h: mux}

		code, _ := c.json(http.MethodPost, "/matches", matchBody)
		So(code, ShouldEqual, http.StatusCreated)

		Convey("When the same match is created twice", func() {
			code, body := c.json(http.MethodPost, "/matches", matchBody)

			Convey("Then it conflicts", func() {
				So(code, ShouldEqual, http.StatusConflict)
				So(body["code"], ShouldEqual, "match_exists")
			})
		})

		Convey("When a match is scored", func() {
			code, _ := c.json(http.MethodPost, "/matches/m1/toss", `{"winner":"away","decision":"bowl"}`)
			So(code, ShouldEqual, http.StatusOK)
			code, _ = c.json(http.MethodPost, "/matches/m1/innings", `{"striker":"h1","non_striker":"h2","bowler":"a3"}`)
			So(code, ShouldEqual, http.StatusCreated)

			code, body := c.json(http.MethodPost, "/matches/m1/balls", `{"event_id":"b1","bowler":"a3","runs_off_bat":1}`)

			Convey("Then the delivery is accepted", func() {
				So(code, ShouldEqual, http.StatusCreated)
				So(body["status"], ShouldEqual, "accepted")
			})

			Convey("Then a retry is answered as a duplicate", func() {
				code, body := c.json(http.MethodPost, "/matches/m1/balls", `{"event_id":"b1","bowler":"a3","runs_off_bat":1}`)
				So(code, ShouldEqual, http.StatusOK)
				So(body["status"], ShouldEqual, "duplicate")
				So(body["duplicate"], ShouldEqual, true)
			})

			Convey("Then an illegal delivery names the rule", func() {
				code, body := c.json(http.MethodPost, "/matches/m1/balls", `{"bowler":"a3","runs_off_bat":7}`)
				So(code, ShouldEqual, http.StatusUnprocessableEntity)
				So(body["rule"], ShouldEqual, "runs")
			})

			Convey("Then the ledger pages are capped", func() {
				w := c.do(http.MethodGet, "/matches/m1/balls?limit=50", "", "")
				var balls []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &balls), ShouldBeNil)
				So(balls, ShouldHaveLength, 2)

				w = c.do(http.MethodGet, "/matches/m1/balls?after=1", "", "")
				So(json.Unmarshal(w.Body.Bytes(), &balls), ShouldBeNil)
				So(balls, ShouldHaveLength, 1)
			})

			Convey("Then undo and scorecard answer", func() {
				code, _ := c.json(http.MethodPost, "/matches/m1/undo", "")
				So(code, ShouldEqual, http.StatusOK)
				code, _ = c.json(http.MethodPost, "/matches/m1/undo", "")
				So(code, ShouldEqual, http.StatusConflict)
				code, body := c.json(http.MethodGet, "/matches/m1/scorecard", "")
				So(code, ShouldEqual, http.StatusOK)
				So(body["match"], ShouldNotBeNil)
			})
		})

		Convey("When the match is unknown", func() {
			code, body := c.json(http.MethodGet, "/matches/zz", "")

			Convey("Then it is not found", func() {
				So(code, ShouldEqual, http.StatusNotFound)
				So(body["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the body is malformed", func() {
			code, _ := c.json(http.MethodPost, "/matches/m1/toss", `{"winner":`)

			Convey("Then it is a bad request", func() {
				So(code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRatingRoutes(t *testing.T) {
	Convey("Given the API over a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		c := client{h: mux}

		Convey("When a history table is rated", func() {
			w := c.do(http.MethodPost, "/rate?format=csv", "text/csv", historyBody)

			Convey("Then the rate table comes back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/csv")
				So(w.Body.String(), ShouldStartWith, "player_id,player_name,role,")
				So(strings.Count(w.Body.String(), "\n"), ShouldEqual, 3)
			})
		})

		Convey("When a team is selected from a history table", func() {
			w := c.do(http.MethodPost, "/team", "text/csv", historyBody)
			var team map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &team), ShouldBeNil)

			Convey("Then the sheet lists thresholds, slots and shortfalls", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(team["desired_rating_thresholds"], ShouldNotBeEmpty)
				So(team["playing_xi"], ShouldHaveLength, 11)
				So(team["shortfalls"], ShouldNotBeEmpty)
			})
		})

		Convey("When the table misses columns", func() {
			w := c.do(http.MethodPost, "/rate", "text/csv", "player_name,role\nA,batter\n")
			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)

			Convey("Then it is a schema error naming them", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(body["code"], ShouldEqual, "schema_error")
				So(body["columns"], ShouldContain, "availability")
			})
		})

		Convey("When the body is not CSV", func() {
			w := c.do(http.MethodPost, "/team", "application/xml", "<x/>")

			Convey("Then it is refused", func() {
				So(w.Code, ShouldEqual, http.StatusUnsupportedMediaType)
			})
		})

		Convey("When availability targets an unknown player", func() {
			code, _ := c.json(http.MethodPut, "/players/ghost/availability", `{"available":false}`)

			Convey("Then it is not found", func() {
				So(code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When health and stats are read", func() {
			So(c.do(http.MethodGet, "/healthz", "", "").Code, ShouldEqual, http.StatusOK)
			code, body := c.json(http.MethodGet, "/stats", "")
			So(code, ShouldEqual, http.StatusOK)
			So(body["started"], ShouldEqual, true)
		})
	})
}
