package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
)

// Dispatch executes a handler function asynchronously in a new goroutine.
// The handler gets a fresh background context (the caller's request may end
// before the handler does) but keeps the caller's logger. Errors and panics
// are logged and swallowed: this is the fire-and-forget primitive for
// best-effort side calls like push fan-out and final offline reports.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := context.Background()
	if logger := logging.From(ctx); logger != nil {
		bgCtx = logging.With(bgCtx, logger)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger := logging.From(bgCtx)
				logger.Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logger := logging.From(bgCtx)
			logger.Error("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}
