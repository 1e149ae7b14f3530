package store

import (
	"fmt"
	"testing"

	"github.com/lazypower/substrate/internal/memory"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testMemoryOptions() memory.Options {
	opts := memory.DefaultOptions()
	opts.Dim = 16
	opts.CycleInterval = 0
	opts.CycleEvery = 0
	return opts
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

func TestLoadEmptyCheckpoint(t *testing.T) {
	db := testDB(t)

	snap, err := db.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if snap != nil {
		t.Errorf("empty database returned snapshot %+v", snap)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	db := testDB(t)
	opts := testMemoryOptions()
	m := memory.New(opts)

	for i := 0; i < 40; i++ {
		label := 1.0
		if i%4 == 0 {
			label = 0.1
		}
		if err := m.Observe(fmt.Sprintf("sym-%d", i), label); err != nil {
			t.Fatalf("observe %d: %v", i, err)
		}
	}
	if err := m.AdvanceEpoch(); err != nil {
		t.Fatalf("advance epoch: %v", err)
	}

	if err := db.SaveCheckpoint(m.Snapshot()); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	snap, err := db.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if snap == nil {
		t.Fatal("LoadCheckpoint returned nil after save")
	}

	restored, err := memory.Restore(opts, snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	for _, sym := range []string{"sym-0", "sym-13", "sym-39", "ghost-a", "ghost-b"} {
		want := m.Query(sym)
		got := restored.Query(sym)
		if got != want {
			t.Errorf("%s: restored query = %+v, want %+v", sym, got, want)
		}
	}
	got, want := restored.Stats(), m.Stats()
	if got.Symbols != want.Symbols || got.LedgerBits != want.LedgerBits ||
		got.Epoch != want.Epoch || got.Observes != want.Observes {
		t.Errorf("restored stats = %+v, want %+v", got, want)
	}
}

func TestSaveReplacesPreviousCheckpoint(t *testing.T) {
	db := testDB(t)
	opts := testMemoryOptions()

	first := memory.New(opts)
	for _, sym := range []string{"a", "b", "c"} {
		if err := first.Observe(sym, 1.0); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	if err := db.SaveCheckpoint(first.Snapshot()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second := memory.New(opts)
	if err := second.Observe("only", 1.0); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := db.SaveCheckpoint(second.Snapshot()); err != nil {
		t.Fatalf("second save: %v", err)
	}

	snap, err := db.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if len(snap.Symbols) != 1 || snap.Symbols[0].Symbol != "only" {
		t.Errorf("symbols = %+v, want just %q", snap.Symbols, "only")
	}
}

func TestCorruptedCheckpointFailsRestore(t *testing.T) {
	db := testDB(t)
	opts := testMemoryOptions()
	m := memory.New(opts)
	for _, sym := range []string{"a", "b", "c"} {
		if err := m.Observe(sym, 1.0); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	if err := db.SaveCheckpoint(m.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Corrupt an identity in place: 4 is not prime.
	if _, err := db.Exec("UPDATE symbols SET prime = 4 WHERE ordinal = 1"); err != nil {
		t.Fatalf("corrupt symbols: %v", err)
	}

	snap, err := db.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if _, err := memory.Restore(opts, snap); err == nil {
		t.Fatal("restore accepted a corrupted prime table")
	}
}

func TestVectorCodec(t *testing.T) {
	vec := []float64{0, 1.5, -2.25, 1e-12, -1e12}
	got := decodeVector(encodeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("decoded length %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("index %d: %v != %v", i, got[i], vec[i])
		}
	}
}
