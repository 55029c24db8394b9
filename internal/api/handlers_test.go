// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lumenlab/lumend/internal/config"
	"github.com/lumenlab/lumend/internal/models"
)

// fakeStore is an in-memory ReadingStore for handler tests.
type fakeStore struct {
	readings []models.Reading
	err      error
}

func (f *fakeStore) Latest(context.Context) (*models.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.readings) == 0 {
		return nil, nil
	}
	r := f.readings[len(f.readings)-1]
	return &r, nil
}

func (f *fakeStore) History(_ context.Context, limit int) ([]models.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Reading{}
	for i := len(f.readings) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.readings[i])
	}
	return out, nil
}

func (f *fakeStore) Stats(context.Context) (models.Stats, error) {
	if f.err != nil {
		return models.Stats{}, f.err
	}
	stats := models.Stats{Count: int64(len(f.readings))}
	for i, r := range f.readings {
		if i == 0 || r.Value < stats.Min {
			stats.Min = r.Value
		}
		if r.Value > stats.Max {
			stats.Max = r.Value
		}
		stats.Mean += float64(r.Value)
	}
	if stats.Count > 0 {
		stats.Mean /= float64(stats.Count)
	}
	return stats, nil
}

func (f *fakeStore) Count(context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.readings)), nil
}

type fakeCounter int

func (c fakeCounter) ClientCount() int { return int(c) }

func testReadings(n int) []models.Reading {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Reading, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Reading{
			ID:         int64(i),
			Value:      int64(i * 10),
			Raw:        "LDR=" + string(rune('0'+i)),
			RecordedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func newTestRouter(store *fakeStore, subscribers int) http.Handler {
	cfg := &config.Config{
		Ingest:   config.IngestConfig{Host: "0.0.0.0", Port: 1234},
		HTTP:     config.HTTPConfig{Host: "0.0.0.0", Port: 8080},
		Notifier: config.NotifierConfig{Host: "0.0.0.0", Port: 8765},
	}
	return NewRouter(NewHandler(store, fakeCounter(subscribers), cfg))
}

func doRequest(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	handler := newTestRouter(&fakeStore{readings: testReadings(3)}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	body := decode[models.HealthResponse](t, rec)
	if !body.Success || body.Status != "healthy" {
		t.Errorf("body = %+v, want success/healthy", body)
	}
	if body.TotalReadings != 3 {
		t.Errorf("totalReadings = %d, want 3", body.TotalReadings)
	}
	if len(body.Endpoints) == 0 {
		t.Error("endpoints list is empty")
	}
}

func TestLatest(t *testing.T) {
	handler := newTestRouter(&fakeStore{readings: testReadings(2)}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decode[models.LatestResponse](t, rec)
	if body.Data == nil {
		t.Fatal("data = nil, want latest reading")
	}
	if body.Data.Value != 20 {
		t.Errorf("data.value = %d, want 20", body.Data.Value)
	}
}

func TestLatestEmptyStoreReturnsNull(t *testing.T) {
	handler := newTestRouter(&fakeStore{}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Success bool             `json:"success"`
		Data    *json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !body.Success {
		t.Error("success = false, want true")
	}
	if body.Data != nil && string(*body.Data) != "null" {
		t.Errorf("data = %s, want null", *body.Data)
	}
}

func TestHistory(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
		wantLimit  int
	}{
		{"default limit", "/api/history", http.StatusOK, 5, 50},
		{"explicit limit", "/api/history?limit=2", http.StatusOK, 2, 2},
		{"limit of one", "/api/history?limit=1", http.StatusOK, 1, 1},
		{"limit above stored count", "/api/history?limit=100", http.StatusOK, 5, 100},
		{"maximum limit", "/api/history?limit=1000", http.StatusOK, 5, 1000},
		{"zero limit", "/api/history?limit=0", http.StatusBadRequest, 0, 0},
		{"negative limit", "/api/history?limit=-5", http.StatusBadRequest, 0, 0},
		{"limit too large", "/api/history?limit=1001", http.StatusBadRequest, 0, 0},
		{"non-numeric limit", "/api/history?limit=abc", http.StatusBadRequest, 0, 0},
	}

	handler := newTestRouter(&fakeStore{readings: testReadings(5)}, 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodGet, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				body := decode[models.ErrorResponse](t, rec)
				if body.Success {
					t.Error("success = true on error, want false")
				}
				if body.StatusCode != tt.wantStatus {
					t.Errorf("statusCode = %d, want %d", body.StatusCode, tt.wantStatus)
				}
				if body.Error == "" {
					t.Error("error message is empty")
				}
				return
			}

			body := decode[models.HistoryResponse](t, rec)
			if body.Count != tt.wantCount || len(body.Data) != tt.wantCount {
				t.Errorf("count = %d (len %d), want %d", body.Count, len(body.Data), tt.wantCount)
			}
			if body.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", body.Limit, tt.wantLimit)
			}
		})
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	handler := newTestRouter(&fakeStore{readings: testReadings(3)}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/history")
	body := decode[models.HistoryResponse](t, rec)

	wantValues := []int64{30, 20, 10}
	if len(body.Data) != len(wantValues) {
		t.Fatalf("len(data) = %d, want %d", len(body.Data), len(wantValues))
	}
	for i, want := range wantValues {
		if body.Data[i].Value != want {
			t.Errorf("data[%d].value = %d, want %d", i, body.Data[i].Value, want)
		}
	}
}

func TestHistoryEmptyStoreReturnsEmptyArray(t *testing.T) {
	handler := newTestRouter(&fakeStore{}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if string(body.Data) != "[]" {
		t.Errorf("data = %s, want []", body.Data)
	}
}

func TestStats(t *testing.T) {
	handler := newTestRouter(&fakeStore{readings: testReadings(3)}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decode[models.StatsResponse](t, rec)
	if body.Data.Count != 3 || body.Data.Min != 10 || body.Data.Max != 30 {
		t.Errorf("stats = %+v, want count 3, min 10, max 30", body.Data)
	}
}

func TestNetwork(t *testing.T) {
	handler := newTestRouter(&fakeStore{}, 7)

	rec := doRequest(t, handler, http.MethodGet, "/api/network")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decode[models.NetworkResponse](t, rec)
	if body.Data.IngestPort != 1234 || body.Data.HTTPPort != 8080 || body.Data.NotifierPort != 8765 {
		t.Errorf("ports = %+v, want 1234/8080/8765", body.Data)
	}
	if body.Data.Subscribers != 7 {
		t.Errorf("subscribers = %d, want 7", body.Data.Subscribers)
	}
}

func TestStoreErrorReturns500(t *testing.T) {
	handler := newTestRouter(&fakeStore{err: errors.New("database locked")}, 0)

	for _, target := range []string{"/api/health", "/api/latest", "/api/history", "/api/stats"} {
		rec := doRequest(t, handler, http.MethodGet, target)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500", target, rec.Code)
			continue
		}
		body := decode[models.ErrorResponse](t, rec)
		if body.Success || body.StatusCode != http.StatusInternalServerError {
			t.Errorf("%s error body = %+v", target, body)
		}
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := newTestRouter(&fakeStore{}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestRouter(&fakeStore{}, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/latest", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 200 or 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestCORSHeaderOnGet(t *testing.T) {
	handler := newTestRouter(&fakeStore{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRequestIDHeader(t *testing.T) {
	handler := newTestRouter(&fakeStore{}, 0)

	rec := doRequest(t, handler, http.MethodGet, "/api/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	if got := rec2.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Errorf("X-Request-ID = %q, want caller-supplied", got)
	}
}
