package safe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/secmon-lab/recall/pkg/utils/logging"
)

// Close closes closer and logs any error. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Write writes data to w and logs any error. A nil writer is ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Error("Failed to write", slog.Any("error", err))
	}
}

// WriteJSON encodes v as the JSON response body with the given status.
// Encoding errors are logged since the header is already committed.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Error("Failed to encode response", slog.Any("error", err))
	}
}
