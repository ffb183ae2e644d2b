package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/crease/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When an id was never recorded", func() {
			_, ok := d.Lookup(ctx, dedupe.Key("m1", "e1"))

			Convey("Then it is unknown", func() {
				So(ok, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When an id is recorded", func() {
			d.Record(ctx, dedupe.Key("m1", "e1"), 7)

			Convey("Then its sequence is returned", func() {
				seq, ok := d.Lookup(ctx, dedupe.Key("m1", "e1"))
				So(ok, ShouldBeTrue)
				So(seq, ShouldEqual, 7)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then the same event id in another match is independent", func() {
				_, ok := d.Lookup(ctx, dedupe.Key("m2", "e1"))
				So(ok, ShouldBeFalse)
			})

			Convey("Then recording it again rebinds without growing", func() {
				d.Record(ctx, dedupe.Key("m1", "e1"), 9)
				seq, _ := d.Lookup(ctx, dedupe.Key("m1", "e1"))
				So(seq, ShouldEqual, 9)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a deduper bounded to two ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		d.Record(ctx, "a", 1)
		d.Record(ctx, "b", 2)
		d.Record(ctx, "c", 3)

		Convey("Then the oldest id is evicted first", func() {
			_, okA := d.Lookup(ctx, "a")
			_, okB := d.Lookup(ctx, "b")
			_, okC := d.Lookup(ctx, "c")
			So(okA, ShouldBeFalse)
			So(okB, ShouldBeTrue)
			So(okC, ShouldBeTrue)
			So(d.Size(), ShouldEqual, 2)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.Record(ctx, fmt.Sprintf("e-%d", i), i)
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			seq, ok := d.Lookup(ctx, "e-0")
			So(ok, ShouldBeTrue)
			So(seq, ShouldEqual, 0)
		})
	})
}

func TestDeduperConcurrency(t *testing.T) {
	Convey("Given concurrent writers on distinct ids", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					d.Record(context.Background(), fmt.Sprintf("w%d-%d", w, i), i)
				}
			}(w)
		}
		wg.Wait()

		Convey("Then every id is tracked once", func() {
			So(d.Size(), ShouldEqual, 800)
		})
	})
}
