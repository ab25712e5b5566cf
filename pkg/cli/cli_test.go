package cli_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/cli"
)

func TestRun(t *testing.T) {
	t.Run("memory list on an empty in-memory store", func(t *testing.T) {
		err := cli.Run(t.Context(), []string{"recall", "--log-level", "error", "memory", "list", "--repository-backend", "memory"}, "test")
		gt.NoError(t, err)
	})

	t.Run("memory delete requires an ID", func(t *testing.T) {
		err := cli.Run(t.Context(), []string{"recall", "--log-level", "error", "memory", "delete"}, "test")
		gt.Error(t, err)
	})

	t.Run("invalid log level is rejected", func(t *testing.T) {
		err := cli.Run(t.Context(), []string{"recall", "--log-level", "loud", "memory", "list"}, "test")
		gt.Error(t, err)
	})

	t.Run("chat with unknown generation provider", func(t *testing.T) {
		err := cli.Run(t.Context(), []string{"recall", "--log-level", "error", "chat", "--generation-provider", "llama"}, "test")
		gt.Error(t, err)
	})
}
