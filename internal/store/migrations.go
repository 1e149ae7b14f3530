package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "symbols: append-only symbol -> prime identity table",
		SQL: `
CREATE TABLE symbols (
    ordinal    INTEGER PRIMARY KEY,
    symbol     TEXT NOT NULL UNIQUE,
    prime      INTEGER NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "ledger: serialized arbitrary-precision membership product",
		SQL: `
CREATE TABLE ledger (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    product    BLOB NOT NULL,
    bits       INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "cache state: shared latent vector and per-symbol weight rows",
		SQL: `
CREATE TABLE cache_latent (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    dim        INTEGER NOT NULL,
    state      BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE cache_weights (
    ordinal    INTEGER PRIMARY KEY,
    weights    BLOB NOT NULL,
    FOREIGN KEY (ordinal) REFERENCES symbols(ordinal) ON DELETE CASCADE
);
`,
	},
	{
		Version:     4,
		Description: "cycle state: remap epoch, permutation seed, observe count",
		SQL: `
CREATE TABLE cycle_state (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    epoch      INTEGER NOT NULL,
    seed       INTEGER NOT NULL,
    observes   INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
