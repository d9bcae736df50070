package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

// SnapshotReader returns the current snapshot without blocking.
type SnapshotReader interface {
	Read() models.Snapshot
}

// HandleSnapshot serves the current snapshot as the flat query record.
// It answers 200 in every state; failures show up in status and debug_error.
func HandleSnapshot(store SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := store.Read().View()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			slog.Error("Failed to encode snapshot response", "error", err)
			http.Error(w, fmt.Sprintf("Failed to encode: %v", err), http.StatusInternalServerError)
		}
	}
}
