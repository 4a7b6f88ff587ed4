package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/vtuapp/vtu-backend/internal/logging"
)

// Local stand-in for the data gateway. Purchases with a phone number ending
// in 0 fail, everything else succeeds; requery replays the recorded outcome.
func main() {
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	var mu sync.Mutex
	outcomes := map[string]bool{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /v1/pay", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RequestID   string `json:"request_id"`
			ServiceID   string `json:"serviceID"`
			BillersCode string `json:"billersCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"ok": false, "message": "bad request"})
			return
		}

		ok := !strings.HasSuffix(req.BillersCode, "0")
		mu.Lock()
		outcomes[req.RequestID] = ok
		mu.Unlock()

		slog.Info("purchase dispatched", "request_id", req.RequestID, "service", req.ServiceID, "ok", ok)
		writeJSON(w, map[string]any{"ok": ok, "request_id": req.RequestID})
	})

	mux.HandleFunc("POST /v1/requery", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RequestID string `json:"request_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"ok": false, "message": "bad request"})
			return
		}

		mu.Lock()
		ok, seen := outcomes[req.RequestID]
		mu.Unlock()

		status := "pending"
		if seen {
			status = "failed"
			if ok {
				status = "delivered"
			}
		}
		writeJSON(w, map[string]any{"ok": seen, "status": status, "request_id": req.RequestID})
	})

	slog.Info("mock gateway started", "addr", ":8081")
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
