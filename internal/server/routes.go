package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lazypower/substrate/internal/memory"
)

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string   `json:"symbol"`
		Label  *float64 `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}
	if req.Label == nil {
		http.Error(w, `{"error":"label required"}`, http.StatusBadRequest)
		return
	}

	if err := s.mem.Observe(req.Symbol, *req.Label); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, memory.ErrCapacityExceeded) || errors.Is(err, memory.ErrNumericInstability) {
			status = http.StatusUnprocessableEntity
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, `{"error":"symbol required"}`, http.StatusBadRequest)
		return
	}

	res := s.mem.Query(symbol)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.mem.Stats())
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, `{"error":"no checkpoint database configured"}`, http.StatusServiceUnavailable)
		return
	}

	snap := s.mem.Snapshot()
	if err := s.db.SaveCheckpoint(snap); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"symbols": len(snap.Symbols),
		"epoch":   snap.Epoch,
	})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if err := s.mem.AdvanceEpoch(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"epoch":  s.mem.Stats().Epoch,
	})
}
