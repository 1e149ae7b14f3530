package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/substrate/internal/config"
	"github.com/lazypower/substrate/internal/memory"
	"github.com/lazypower/substrate/internal/server"
	"github.com/lazypower/substrate/internal/store"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	bind         string
	port         int
	dbPath       string
	dim          int
	maxSymbols   int
	cycleMinutes int
	cycleEvery   int
	noShuffle    bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	def := config.Default()
	serveCmd.Flags().StringVar(&serveFlags.bind, "bind", def.Server.Bind, "bind address")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", def.Server.Port, "listen port")
	serveCmd.Flags().StringVar(&serveFlags.dbPath, "db", "", "checkpoint database path (default ~/.substrate/substrate.db)")
	serveCmd.Flags().IntVar(&serveFlags.dim, "dim", def.Memory.Dim, "cache dimensionality")
	serveCmd.Flags().IntVar(&serveFlags.maxSymbols, "max-symbols", def.Memory.MaxSymbols, "distinct-symbol cap")
	serveCmd.Flags().IntVar(&serveFlags.cycleMinutes, "cycle-minutes", def.Memory.CycleMinutes, "remap interval in minutes, 0 disables")
	serveCmd.Flags().IntVar(&serveFlags.cycleEvery, "cycle-every", def.Memory.CycleEvery, "remap every N observations, 0 disables")
	serveCmd.Flags().BoolVar(&serveFlags.noShuffle, "no-shuffle", false, "freeze the cycle scheduler (ablation mode)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Server.Bind = serveFlags.bind
	cfg.Server.Port = serveFlags.port
	cfg.Memory.Dim = serveFlags.dim
	cfg.Memory.MaxSymbols = serveFlags.maxSymbols
	cfg.Memory.CycleMinutes = serveFlags.cycleMinutes
	cfg.Memory.CycleEvery = serveFlags.cycleEvery
	cfg.Memory.ShuffleEnabled = !serveFlags.noShuffle

	// Resolve database path
	dbPath := serveFlags.dbPath
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
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

	opts := cfg.MemoryOptions()

	// Restore from the checkpoint if one exists. A corrupted checkpoint
	// is fatal: a silently wrong membership function is worse than no
	// server.
	var mem *memory.Memory
	snap, err := db.LoadCheckpoint()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if snap != nil {
		mem, err = memory.Restore(opts, snap)
		if err != nil {
			return fmt.Errorf("restore checkpoint: %w", err)
		}
		fmt.Fprintf(os.Stderr, "  restored: %d symbols, epoch %d\n", len(snap.Symbols), snap.Epoch)
	} else {
		mem = memory.New(opts)
	}
	mem.StartCycleTimer()
	defer mem.Stop()

	srv := server.New(mem, db, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "substrate serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	// Checkpoint on the way out so a restart resumes where we left off.
	if err := db.SaveCheckpoint(mem.Snapshot()); err != nil {
		fmt.Fprintf(os.Stderr, "checkpoint on shutdown: %v\n", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
