package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/internal/adapters/http/live"
	"github.com/okian/crease/internal/adapters/lock"
	"github.com/okian/crease/internal/adapters/repository"
	service "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/config"
	"github.com/okian/crease/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestConfigFromEnv(t *testing.T) {
	convey.Convey("Given CREASE_ environment variables", t, func() {
		t.Setenv("CREASE_ADDR", ":8080")
		t.Setenv("CREASE_QUEUE_SIZE", "1000")
		t.Setenv("CREASE_WORKER_COUNT", "4")

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
		convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
		convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given the configured store", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("No path keeps the ledger in memory", func() {
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			_, ok := store.(*repository.MemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("A path opens SQLite", func() {
			cfg.DBPath = filepath.Join(t.TempDir(), "crease.db")
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()
			_, ok := store.(*repository.SQLiteStore)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("No Redis address gives the in-process lock", func() {
			l, closeFn, err := openLocker(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer closeFn()
			_, ok := l.(*lock.Local)
			convey.So(ok, convey.ShouldBeTrue)
		})
	})
}

func TestHandler(t *testing.T) {
	convey.Convey("Given the full handler", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cfg := config.New(ctx)
		cfg.CORSOrigins = "https://scores.example"

		svc := service.New(service.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		hub := live.NewHub(cfg.AllowedOrigins())
		go hub.Run(ctx)

		h := newHandler(ctx, cfg, svc, hub)
		get := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			req.Header.Set("Origin", "https://scores.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		convey.Convey("Every surface answers", func() {
			for _, p := range []string{"/healthz", "/stats", "/matches", "/openapi.yaml", "/api-docs", "/players/history"} {
				convey.So(get(p).Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("CORS headers follow the allow list", func() {
			w := get("/matches")
			convey.So(w.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "https://scores.example")
		})

		convey.Convey("Stats include the live hub", func() {
			convey.So(get("/stats").Body.String(), convey.ShouldContainSubstring, `"liveClients":0`)
		})

		convey.Convey("A plain GET on /live is not upgraded", func() {
			convey.So(get("/live").Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}
