package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/wasel-app/settlement-engine/internal/logging"
)

// Stand-in document generator for local development: accepts a settlement
// snapshot and returns a fake storage path as the document reference.
func main() {
	logging.Init("docgen-mock", "info", os.Getenv("APP_ENV"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /render", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SnapshotID string `json:"snapshot_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SnapshotID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		slog.Info("rendering settlement receipt", "snapshot_id", req.SnapshotID)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{
			"document_ref": fmt.Sprintf("receipts/%s.pdf", req.SnapshotID),
		}); err != nil {
			slog.Error("failed to write render response", "error", err)
		}
	})

	slog.Info("docgen mock started", "addr", ":8081")
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
