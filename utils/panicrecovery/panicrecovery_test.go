package panicrecovery

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHandleEventualPanic(t *testing.T) {

	Convey("Given a goroutine guarded by the handler", t, func() {

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Convey("When it panics, the context should be cancelled", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				defer HandleEventualPanic("test", cancel)
				panic("boom")
			}()
			<-done
			So(ctx.Err(), ShouldEqual, context.Canceled)
		})

		Convey("When it returns normally, the context should stay alive", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				defer HandleEventualPanic("test", cancel)
			}()
			<-done
			So(ctx.Err(), ShouldBeNil)
		})
	})
}
