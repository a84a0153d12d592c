package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"alert-systemv1/internal/markethours"
)

// runHTTP serves the operator API and the WebSocket endpoint until ctx is
// cancelled.
//
//	GET  /alerts            current alert log
//	POST /alerts/dismiss    {"id": "..."} removes one alert
//	GET  /assets            monitored assets with combined state
//	GET  /assets/{name}     combined state for one asset
//	POST /timeframe         {"seconds": 300} resets candle-derived state
//	GET  /healthz           liveness
//	GET  /ws                live stream
func (svc *Service) runHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/alerts", svc.handleAlerts)
	mux.HandleFunc("/alerts/dismiss", svc.handleDismiss)
	mux.HandleFunc("/assets", svc.handleAssets)
	mux.HandleFunc("/assets/", svc.handleAsset)
	mux.HandleFunc("/timeframe", svc.handleTimeframe)
	mux.HandleFunc("/market", handleMarket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/ws", svc.hub.ServeWS)

	srv := &http.Server{Addr: svc.cfg.HTTPAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[engine] HTTP API on %s", svc.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (svc *Service) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, svc.alerts.Alerts())
}

func (svc *Service) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "invalid JSON: expected {\"id\": \"...\"}", http.StatusBadRequest)
		return
	}
	if !svc.Dismiss(r.Context(), req.ID) {
		http.Error(w, "unknown alert id", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "dismissed", "id": req.ID})
}

func (svc *Service) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	assets := svc.mon.Assets()
	out := make([]interface{}, 0, len(assets))
	for _, a := range assets {
		if st, ok := svc.mon.State(a); ok {
			out = append(out, st)
		}
	}
	writeJSON(w, out)
}

func (svc *Service) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Path[len("/assets/"):]
	st, ok := svc.mon.State(name)
	if !ok {
		http.Error(w, "unknown asset", http.StatusNotFound)
		return
	}
	writeJSON(w, st)
}

func (svc *Service) handleTimeframe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]int{"seconds": svc.cfg.TimeframeSec})
	case http.MethodPost:
		var req struct {
			Seconds int `json:"seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds <= 0 {
			http.Error(w, "invalid JSON: expected {\"seconds\": n > 0}", http.StatusBadRequest)
			return
		}
		svc.ChangeTimeframe(r.Context(), req.Seconds)
		writeJSON(w, map[string]interface{}{"status": "ok", "seconds": req.Seconds, "alerts_kept": svc.alerts.Len()})
	default:
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
	}
}

func handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	now := time.Now()
	writeJSON(w, map[string]interface{}{
		"open":      markethours.IsMarketOpen(now),
		"status":    markethours.StatusString(now),
		"next_open": markethours.NextOpen(now).Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[engine] response encode error: %v", err)
	}
}
