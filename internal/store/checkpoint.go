package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/lazypower/substrate/internal/memory"
)

// encodeVector converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeVector(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeVector converts a binary BLOB back to []float64.
func decodeVector(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveCheckpoint persists a snapshot, replacing any previous checkpoint,
// in one transaction.
func (db *DB) SaveCheckpoint(snap *memory.Snapshot) error {
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin checkpoint: %w", err)
	}
	defer tx.Rollback()

	// Weight rows must go before symbols are replaced (FK cascade).
	for _, table := range []string{"cache_weights", "symbols", "ledger", "cache_latent", "cycle_state"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	symStmt, err := tx.Prepare("INSERT INTO symbols (ordinal, symbol, prime, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare symbols: %w", err)
	}
	defer symStmt.Close()
	for _, ent := range snap.Symbols {
		if _, err := symStmt.Exec(ent.Ordinal, ent.Symbol, int64(ent.Prime), now); err != nil {
			return fmt.Errorf("insert symbol %q: %w", ent.Symbol, err)
		}
	}

	rowStmt, err := tx.Prepare("INSERT INTO cache_weights (ordinal, weights) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare weights: %w", err)
	}
	defer rowStmt.Close()
	for ordinal, row := range snap.Rows {
		if _, err := rowStmt.Exec(ordinal, encodeVector(row)); err != nil {
			return fmt.Errorf("insert weights %d: %w", ordinal, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO ledger (id, product, bits, updated_at) VALUES (1, ?, ?, ?)",
		snap.Ledger, len(snap.Ledger)*8, now,
	); err != nil {
		return fmt.Errorf("insert ledger: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO cache_latent (id, dim, state, updated_at) VALUES (1, ?, ?, ?)",
		snap.Dim, encodeVector(snap.Latent), now,
	); err != nil {
		return fmt.Errorf("insert latent: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO cycle_state (id, epoch, seed, observes, updated_at) VALUES (1, ?, ?, ?, ?)",
		int64(snap.Epoch), snap.Seed, int64(snap.Observes), now,
	); err != nil {
		return fmt.Errorf("insert cycle state: %w", err)
	}

	return tx.Commit()
}

// LoadCheckpoint reads the persisted snapshot, or returns nil if the
// database holds no checkpoint yet. The returned snapshot is not yet
// validated; memory.Restore performs the consistency checks.
func (db *DB) LoadCheckpoint() (*memory.Snapshot, error) {
	snap := &memory.Snapshot{}

	var latentBlob []byte
	err := db.QueryRow("SELECT dim, state FROM cache_latent WHERE id = 1").Scan(&snap.Dim, &latentBlob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latent: %w", err)
	}
	snap.Latent = decodeVector(latentBlob)

	if err := db.QueryRow("SELECT product FROM ledger WHERE id = 1").Scan(&snap.Ledger); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	var epoch, observes int64
	if err := db.QueryRow("SELECT epoch, seed, observes FROM cycle_state WHERE id = 1").Scan(&epoch, &snap.Seed, &observes); err != nil {
		return nil, fmt.Errorf("load cycle state: %w", err)
	}
	snap.Epoch = uint64(epoch)
	snap.Observes = uint64(observes)

	rows, err := db.Query("SELECT ordinal, symbol, prime FROM symbols ORDER BY ordinal")
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ent memory.Entry
		var prime int64
		if err := rows.Scan(&ent.Ordinal, &ent.Symbol, &prime); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		ent.Prime = uint64(prime)
		snap.Symbols = append(snap.Symbols, ent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}

	wrows, err := db.Query("SELECT ordinal, weights FROM cache_weights ORDER BY ordinal")
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	defer wrows.Close()
	snap.Rows = make([][]float64, 0, len(snap.Symbols))
	for wrows.Next() {
		var ordinal int
		var blob []byte
		if err := wrows.Scan(&ordinal, &blob); err != nil {
			return nil, fmt.Errorf("scan weights: %w", err)
		}
		if ordinal != len(snap.Rows) {
			return nil, fmt.Errorf("weight row gap at ordinal %d: %w", ordinal, memory.ErrCorruptedCheckpoint)
		}
		snap.Rows = append(snap.Rows, decodeVector(blob))
	}
	if err := wrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weights: %w", err)
	}

	return snap, nil
}
