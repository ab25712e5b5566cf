package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/utils/async"
)

func TestDispatch(t *testing.T) {
	t.Run("runs handler after caller context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		started := make(chan struct{})
		var handlerErr error

		done := async.Dispatch(ctx, func(ctx context.Context) error {
			<-started
			handlerErr = ctx.Err()
			return nil
		})
		cancel()
		close(started)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not finish")
		}
		gt.NoError(t, handlerErr)
	})

	t.Run("recovers from panic", func(t *testing.T) {
		done := async.Dispatch(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
		<-done
	})

	t.Run("swallows handler error", func(t *testing.T) {
		done := async.Dispatch(context.Background(), func(ctx context.Context) error {
			return errors.New("failed")
		})
		<-done
	})
}
