package async

import (
	"context"

	"github.com/secmon-lab/recall/pkg/utils/errutil"
	"github.com/secmon-lab/recall/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine with a context detached from the
// caller's cancellation. The caller's logger is preserved. Errors and panics
// are reported through errutil.Handle.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) <-chan struct{} {
	bgCtx := logging.With(context.WithoutCancel(ctx), logging.From(ctx))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, err, "async handler failed")
		}
	}()

	return done
}
