package cli

import (
	"fmt"

	"github.com/lazypower/substrate/internal/memory"
	"github.com/lazypower/substrate/internal/store"
	"github.com/spf13/cobra"
)

var statsDBPath string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print and verify the state of a checkpoint database",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsDBPath, "db", "", "checkpoint database path (default ~/.substrate/substrate.db)")
}

func runStats(cmd *cobra.Command, args []string) error {
	dbPath := statsDBPath
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	snap, err := db.LoadCheckpoint()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if snap == nil {
		fmt.Println("no checkpoint")
		return nil
	}

	// Restoring also validates the prime table and ledger factorization.
	m, err := memory.Restore(memory.DefaultOptions(), snap)
	if err != nil {
		return fmt.Errorf("checkpoint failed validation: %w", err)
	}

	stats := m.Stats()
	fmt.Printf("db:          %s\n", dbPath)
	fmt.Printf("symbols:     %d\n", stats.Symbols)
	fmt.Printf("ledger bits: %d\n", stats.LedgerBits)
	fmt.Printf("dim:         %d\n", stats.Dim)
	fmt.Printf("epoch:       %d\n", stats.Epoch)
	fmt.Printf("observes:    %d\n", stats.Observes)
	return nil
}
