package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/substrate/internal/memory"
	"github.com/lazypower/substrate/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	opts := memory.DefaultOptions()
	opts.Dim = 16
	opts.CycleInterval = 0
	opts.CycleEvery = 0
	return New(memory.New(opts), db, "test-version")
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestObserveAndQuery(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("POST", "/api/observe", strings.NewReader(`{"symbol":"fact-1","label":1.0}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("observe status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/query?symbol=fact-1", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d, want %d", w.Code, http.StatusOK)
	}

	var res memory.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Exact {
		t.Error("observed symbol not exact")
	}
	if res.Probability <= memory.DefaultPrior {
		t.Errorf("probability = %v, want > %v", res.Probability, memory.DefaultPrior)
	}

	// Unseen symbol stays at the prior and is not exact.
	req = httptest.NewRequest("GET", "/api/query?symbol=ghost", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Exact {
		t.Error("unseen symbol reported exact")
	}
	if res.Probability != memory.DefaultPrior {
		t.Errorf("unseen probability = %v, want %v", res.Probability, memory.DefaultPrior)
	}
}

func TestObserveValidation(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing symbol", `{"label":1.0}`, http.StatusBadRequest},
		{"missing label", `{"symbol":"x"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/api/observe", strings.NewReader(tc.body))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestObserveCapacity(t *testing.T) {
	opts := memory.DefaultOptions()
	opts.Dim = 16
	opts.CycleInterval = 0
	opts.MaxSymbols = 1
	srv := New(memory.New(opts), nil, "test-version")

	req := httptest.NewRequest("POST", "/api/observe", strings.NewReader(`{"symbol":"one","label":1.0}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("first observe: %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/observe", strings.NewReader(`{"symbol":"two","label":1.0}`))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("capacity observe status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestCycleEndpointIsTransparent(t *testing.T) {
	srv := testServer(t)

	for _, body := range []string{
		`{"symbol":"a","label":1.0}`,
		`{"symbol":"b","label":0.4}`,
	} {
		req := httptest.NewRequest("POST", "/api/observe", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("observe: %d", w.Code)
		}
	}

	query := func(symbol string) memory.Result {
		t.Helper()
		req := httptest.NewRequest("GET", "/api/query?symbol="+symbol, nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		var res memory.Result
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		return res
	}

	beforeA, beforeB := query("a"), query("b")

	req := httptest.NewRequest("POST", "/api/cycle", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("cycle status = %d: %s", w.Code, w.Body.String())
	}

	if got := query("a"); got != beforeA {
		t.Errorf("a changed across cycle: %+v -> %+v", beforeA, got)
	}
	if got := query("b"); got != beforeB {
		t.Errorf("b changed across cycle: %+v -> %+v", beforeB, got)
	}
}

func TestCheckpointEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("POST", "/api/observe", strings.NewReader(`{"symbol":"persist-me","label":1.0}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("observe: %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/checkpoint", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("checkpoint status = %d: %s", w.Code, w.Body.String())
	}

	snap, err := srv.db.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if snap == nil || len(snap.Symbols) != 1 {
		t.Fatalf("checkpoint not persisted: %+v", snap)
	}

	// Without a database the endpoint degrades cleanly.
	nodb := New(memory.New(memory.DefaultOptions()), nil, "v")
	req = httptest.NewRequest("POST", "/api/checkpoint", nil)
	w = httptest.NewRecorder()
	nodb.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("no-db checkpoint status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("POST", "/api/observe", strings.NewReader(`{"symbol":"s","label":1.0}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	req = httptest.NewRequest("GET", "/api/stats", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}

	var stats memory.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Symbols != 1 {
		t.Errorf("symbols = %d, want 1", stats.Symbols)
	}
	if stats.LedgerBits < 2 {
		t.Errorf("ledger bits = %d, want >= 2", stats.LedgerBits)
	}
}
