package panicrecovery

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// HandleEventualPanic recovers a panic from a daemon goroutine, prints the
// stack trace and cancels the context shared with the other goroutines so
// the daemon shuts down instead of leaving held traffic behind. It must be
// deferred directly by the goroutine it guards.
func HandleEventualPanic(source string, cancel context.CancelFunc) {

	r := recover()
	if r == nil {
		return
	}

	zap.L().Error("Panic in goroutine",
		zap.String("source", source),
		zap.String("reason", fmt.Sprintf("%v", r)),
		zap.String("stacktrace", string(debug.Stack())),
	)

	if cancel != nil {
		cancel()
	}
}
