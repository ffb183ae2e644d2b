package lock_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/internal/adapters/lock"
)

func exercise(l lock.Locker, key string) {
	ctx := context.Background()

	Convey("When many goroutines lock the same key", func() {
		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, key)
				if err != nil {
					return
				}
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				unlock()
			}()
		}
		wg.Wait()

		Convey("Then at most one holds it at a time", func() {
			So(maxInside.Load(), ShouldEqual, 1)
		})
	})

	Convey("When the key is held past the wait bound", func() {
		unlock, err := l.Lock(ctx, key)
		So(err, ShouldBeNil)
		defer unlock()

		_, err = l.Lock(ctx, key)

		Convey("Then the second caller times out", func() {
			So(errors.Is(err, lock.ErrTimeout), ShouldBeTrue)
		})
	})

	Convey("When a different key is locked", func() {
		unlock, err := l.Lock(ctx, key)
		So(err, ShouldBeNil)
		defer unlock()

		other, err := l.Lock(ctx, key+"-other")

		Convey("Then it does not wait", func() {
			So(err, ShouldBeNil)
			other()
		})
	})

	Convey("When unlock is called twice", func() {
		unlock, err := l.Lock(ctx, key)
		So(err, ShouldBeNil)
		unlock()
		unlock()

		Convey("Then the key can be locked again", func() {
			again, err := l.Lock(ctx, key)
			So(err, ShouldBeNil)
			again()
		})
	})
}

func TestLocal(t *testing.T) {
	Convey("Given an in-process lock", t, func() {
		l := lock.NewLocal(200 * time.Millisecond)
		exercise(l, "match-1")

		Convey("When the context is cancelled while waiting", func() {
			unlock, err := l.Lock(context.Background(), "match-2")
			So(err, ShouldBeNil)
			defer unlock()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = l.Lock(ctx, "match-2")

			Convey("Then the context error is returned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("CREASE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CREASE_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	Convey("Given a Redis lock", t, func() {
		l := lock.NewRedis(rdb, 5*time.Second, 200*time.Millisecond)
		exercise(l, "test-"+time.Now().Format("150405.000000"))
	})
}
