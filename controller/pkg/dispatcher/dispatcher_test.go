package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.aporeto.io/netinterceptor/controller/pkg/counters"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
)

func collect(ch chan pending.Result) pending.CompletionFunc {
	return func(op *pending.Operation, r pending.Result) {
		ch <- r
	}
}

func waitResult(ch chan pending.Result) (pending.Result, bool) {
	select {
	case r := <-ch:
		return r, true
	case <-time.After(2 * time.Second):
		return pending.Result{}, false
	}
}

func TestSchedule(t *testing.T) {

	Convey("Given a running dispatcher", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := counters.NewCounters()
		d := New(16, c)
		go d.Run(ctx)

		Convey("When I schedule a completion", func() {
			ch := make(chan pending.Result, 1)
			op := pending.New(pending.KindSend, 1, nil, collect(ch))
			d.Schedule(op, pending.Result{Status: pending.StatusSuccess, Bytes: 10})

			Convey("It should be delivered by the worker", func() {
				r, ok := waitResult(ch)
				So(ok, ShouldBeTrue)
				So(r.Bytes, ShouldEqual, 10)
				So(op.State(), ShouldEqual, pending.Done)
			})
		})

		Convey("When the operation is cancelled before the worker runs", func() {
			ch := make(chan pending.Result, 2)
			op := pending.New(pending.KindReceive, 2, nil, collect(ch))
			So(op.Cancel(), ShouldBeTrue)
			d.Schedule(op, pending.Result{Status: pending.StatusSuccess})

			Convey("Only the cancellation should be seen", func() {
				r, ok := waitResult(ch)
				So(ok, ShouldBeTrue)
				So(r.Status, ShouldEqual, pending.StatusCancelled)
				_, ok = waitResult(ch)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the same operation is scheduled twice", func() {
			ch := make(chan pending.Result, 2)
			op := pending.New(pending.KindConnect, 3, nil, collect(ch))
			d.Schedule(op, pending.Result{Status: pending.StatusPassThrough})
			d.Schedule(op, pending.Result{Status: pending.StatusInvalidState})

			Convey("The first result wins", func() {
				r, ok := waitResult(ch)
				So(ok, ShouldBeTrue)
				So(r.Status, ShouldEqual, pending.StatusPassThrough)
				_, ok = waitResult(ch)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When many completions are scheduled concurrently", func() {
			var wg sync.WaitGroup
			ch := make(chan pending.Result, 200)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 10; j++ {
						d.Schedule(pending.New(pending.KindSend, 4, nil, collect(ch)), pending.Result{Bytes: 1})
					}
				}()
			}
			wg.Wait()

			Convey("Every one of them should complete once", func() {
				total := 0
				for total < 100 {
					r, ok := waitResult(ch)
					if !ok {
						break
					}
					total += r.Bytes
				}
				So(total, ShouldEqual, 100)
			})
		})
	})
}

func TestOverflow(t *testing.T) {

	Convey("Given a dispatcher whose worker is not running", t, func() {
		c := counters.NewCounters()
		d := New(1, c)

		ch := make(chan pending.Result, 2)
		first := pending.New(pending.KindSend, 1, nil, collect(ch))
		second := pending.New(pending.KindSend, 2, nil, collect(ch))

		Convey("When the backlog is exceeded", func() {
			d.Schedule(first, pending.Result{Status: pending.StatusSuccess})
			d.Schedule(second, pending.Result{Status: pending.StatusSuccess})

			Convey("The extra operation should complete with resource exhaustion", func() {
				r, ok := waitResult(ch)
				So(ok, ShouldBeTrue)
				So(r.Status, ShouldEqual, pending.StatusResourceExhausted)
				So(second.State(), ShouldEqual, pending.Done)
				So(first.IsPending(), ShouldBeTrue)
				So(d.Backlog(), ShouldEqual, 1)
				So(c.Value(counters.ErrDispatcherOverflow), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a dispatcher that was stopped", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		d := New(8, nil)

		ch := make(chan pending.Result, 2)
		queued := pending.New(pending.KindSend, 1, nil, collect(ch))
		d.Schedule(queued, pending.Result{Bytes: 7})

		done := make(chan struct{})
		go func() {
			d.Run(ctx)
			close(done)
		}()
		cancel()
		<-done

		Convey("Queued work should have been flushed", func() {
			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Bytes, ShouldEqual, 7)
		})

		Convey("New work should fail fast", func() {
			<-ch
			late := pending.New(pending.KindSend, 2, nil, collect(ch))
			d.Schedule(late, pending.Result{})
			r, ok := waitResult(ch)
			So(ok, ShouldBeTrue)
			So(r.Status, ShouldEqual, pending.StatusResourceExhausted)
		})
	})
}
