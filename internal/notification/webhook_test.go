package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"alert-systemv1/internal/model"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	alert := model.Alert{
		ID:      "abc",
		Type:    model.AlertBuyCall,
		Asset:   "NIFTY",
		TS:      60_000,
		Message: "bullish breakout",
	}
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got["type"] != "BUY_CALL" || got["asset"] != "NIFTY" {
		t.Errorf("unexpected payload: %v", got)
	}
	if _, ok := got["region"]; ok {
		t.Error("region must be omitted when nil")
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), model.Alert{Type: model.AlertSellPut}); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
