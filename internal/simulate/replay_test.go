package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/internal/adapters/http/api"
	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/domain/model"
)

func TestReplayer(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		res, err := New(WithMatches(2), WithOvers(2), WithSeed(3)).Run(ctx)
		So(err, ShouldBeNil)

		Convey("Replaying scores every match to the simulated result", func() {
			st, err := NewReplayer(srv.URL, WithResend(true), WithReplayWorkers(2)).Replay(ctx, res)
			So(err, ShouldBeNil)
			So(st.Matches, ShouldEqual, 2)
			So(st.Duplicates, ShouldEqual, st.Accepted)
			So(st.Balls, ShouldEqual, st.Accepted*2)

			for _, sc := range res.Scripts {
				resp, err := http.Get(srv.URL + "/matches/" + sc.Setup.ID)
				So(err, ShouldBeNil)
				var body struct {
					Match model.Match `json:"match"`
				}
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				_ = resp.Body.Close()
				So(body.Match.State, ShouldEqual, model.StateMatchComplete)
				So(body.Match.Result, ShouldResemble, sc.Final.Result)
			}
		})

		Convey("Replaying twice fails on the existing match", func() {
			_, err := NewReplayer(srv.URL).Replay(ctx, res)
			So(err, ShouldBeNil)
			_, err = NewReplayer(srv.URL).Replay(ctx, res)
			So(errors.Is(err, ErrReplay), ShouldBeTrue)
		})
	})
}
