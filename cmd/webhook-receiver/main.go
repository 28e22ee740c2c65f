// Command webhook-receiver accepts Stacklane order webhooks, verifies their
// signature and logs them. It is meant for local testing:
//
//	WEBHOOK_SECRET=whsec_local go run ./cmd/webhook-receiver -addr :9000
//
// Then start the API with WEBHOOK_URL=http://localhost:9000/webhook and
// WEBHOOK_ALLOW_PRIVATE=true.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklane/stacklane/internal/webhook"
)

const maxBodyBytes = 64 << 10

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		logger.Error("WEBHOOK_SECRET is required")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(secret, logger, time.Now),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("webhook receiver listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("receiver stopped", "error", err)
		os.Exit(1)
	}
}

func newRouter(secret string, logger *slog.Logger, now func() time.Time) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhook", receive(secret, logger, now))
	return r
}

func receive(secret string, logger *slog.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}

		if err := webhook.Verify(secret, r.Header.Get(webhook.HeaderSignature), body, webhook.DefaultReplayWindow, now()); err != nil {
			logger.Warn("rejected webhook", "error", err)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}

		var p webhook.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}

		logger.Info("webhook received",
			"delivery_id", r.Header.Get(webhook.HeaderDeliveryID),
			"type", p.Type,
			"order_id", p.Data.OrderID,
			"item_id", p.Data.ItemID,
			"quantity", p.Data.Quantity,
			"total_cents", p.Data.TotalCents,
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
