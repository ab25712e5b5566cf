package errutil_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/utils/errutil"
)

func TestHandle(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		gt.NoError(t, errutil.Handle(context.Background(), nil, "noop"))
	})

	t.Run("returns the given error", func(t *testing.T) {
		base := errors.New("base")
		err := goerr.Wrap(base, "wrapped", goerr.V("user_id", "alice"))

		got := errutil.Handle(context.Background(), err, "failed")
		gt.Bool(t, errors.Is(got, base)).True()
	})
}

func TestHandleHTTP(t *testing.T) {
	t.Run("client error keeps the message", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, goerr.New("bad input"), http.StatusBadRequest)

		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.String(t, w.Body.String()).Contains("bad input")
	})

	t.Run("server error hides the details", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := goerr.Wrap(errors.New("dial tcp 10.0.0.5:443: connection refused"), "failed to call provider",
			goerr.V("api_key_id", "k-123"))
		errutil.HandleHTTP(context.Background(), w, err, http.StatusBadGateway)

		gt.Value(t, w.Code).Equal(http.StatusBadGateway)
		gt.String(t, w.Body.String()).Contains(http.StatusText(http.StatusBadGateway))
		gt.String(t, w.Body.String()).NotContains("connection refused")
		gt.String(t, w.Body.String()).NotContains("failed to call provider")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), w, nil, http.StatusInternalServerError)
		gt.Value(t, w.Body.Len()).Equal(0)
	})
}
