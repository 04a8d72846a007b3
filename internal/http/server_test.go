// README: Handler tests for the REST control plane.
package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httptransport "tripsim/internal/http"
	"tripsim/internal/modules/trip"
	"tripsim/internal/ws"
)

func buildTestServer(t *testing.T) (http.Handler, *trip.Service) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(log)
	trips := trip.NewService(log, hub, false)
	gateway := ws.NewGateway(log, trips, nil, nil)
	srv := httptransport.NewServer(httptransport.ServerDeps{
		Trips:   trips,
		Hub:     hub,
		Gateway: gateway,
		Log:     log,
	})
	return srv.Routes(), trips
}

func doRequest(handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	handler, _ := buildTestServer(t)
	w := doRequest(handler, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestTripStateStartsIdle(t *testing.T) {
	handler, _ := buildTestServer(t)
	w := doRequest(handler, http.MethodGet, "/api/trip", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view trip.PassengerView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.TripChange.Status != trip.StatusIdle {
		t.Errorf("expected idle, got %v", view.TripChange.Status)
	}
}

func TestTripOverride(t *testing.T) {
	handler, trips := buildTestServer(t)

	w := doRequest(handler, http.MethodPost, "/api/trip/change", map[string]any{
		"tripStatus":        int(trip.StatusTripInProgress),
		"passenger_boarded": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	change := trips.Change()
	if change.Status != trip.StatusTripInProgress || !change.PassengerBoarded {
		t.Errorf("override not applied: %+v", change)
	}
}

func TestTripOverrideRejectsUnknownStatus(t *testing.T) {
	handler, _ := buildTestServer(t)
	w := doRequest(handler, http.MethodPost, "/api/trip/change", map[string]any{"tripStatus": 99})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestEmitRelay(t *testing.T) {
	handler, _ := buildTestServer(t)

	w := doRequest(handler, http.MethodPost, "/api/emit", map[string]any{
		"event": "simulation-tick",
		"data":  map[string]any{"tick": 42},
	})
	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(handler, http.MethodPost, "/api/emit", map[string]any{"data": "no event name"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without event name, got %d", w.Code)
	}
}

func TestTripLogs(t *testing.T) {
	handler, trips := buildTestServer(t)
	if _, err := trips.RecordMessage("passenger", "hola"); err != nil {
		t.Fatalf("record message: %v", err)
	}

	w := doRequest(handler, http.MethodGet, "/api/trip/logs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var logs trip.LogSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &logs); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if logs.MessageCount != 1 || len(logs.Messages) != 1 {
		t.Errorf("unexpected logs: %+v", logs)
	}
}
