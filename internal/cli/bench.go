package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/lazypower/substrate/internal/memory"
	"github.com/spf13/cobra"
)

var benchFlags struct {
	turns      int
	symbols    int
	dim        int
	cycleEvery int
	noShuffle  bool
	seed       int64
	logPath    string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a deterministic observe/query stream against an in-process memory",
	Long: `Bench streams synthetic facts and never-observed probes through one
memory instance, counting exact recalls and false positives, and can log
one JSON record per event for offline analysis.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchFlags.turns, "turns", 5000, "total observation turns")
	benchCmd.Flags().IntVar(&benchFlags.symbols, "symbols", 500, "distinct fact symbols in the stream")
	benchCmd.Flags().IntVar(&benchFlags.dim, "dim", 128, "cache dimensionality")
	benchCmd.Flags().IntVar(&benchFlags.cycleEvery, "cycle-every", 900, "remap every N observations, 0 disables")
	benchCmd.Flags().BoolVar(&benchFlags.noShuffle, "no-shuffle", false, "freeze the cycle scheduler (ablation mode)")
	benchCmd.Flags().Int64Var(&benchFlags.seed, "seed", 137, "stream and permutation seed")
	benchCmd.Flags().StringVar(&benchFlags.logPath, "log", "", "write per-event JSONL records to this path")
}

type benchRecord struct {
	Turn        int     `json:"turn"`
	Kind        string  `json:"kind"` // "observe", "recall", "probe"
	Symbol      string  `json:"symbol"`
	Label       float64 `json:"label,omitempty"`
	Probability float64 `json:"probability"`
	Exact       bool    `json:"exact"`
	Epoch       uint64  `json:"epoch"`
}

func runBench(cmd *cobra.Command, args []string) error {
	opts := memory.DefaultOptions()
	opts.Dim = benchFlags.dim
	opts.CycleInterval = 0 // bench drives epochs by operation count only
	opts.CycleEvery = uint64(benchFlags.cycleEvery)
	opts.ShuffleEnabled = !benchFlags.noShuffle
	opts.Seed = benchFlags.seed
	opts.MaxSymbols = benchFlags.symbols + 1

	var logW *bufio.Writer
	if benchFlags.logPath != "" {
		f, err := os.Create(benchFlags.logPath)
		if err != nil {
			return fmt.Errorf("create log: %w", err)
		}
		defer f.Close()
		logW = bufio.NewWriter(f)
		defer logW.Flush()
	}
	emit := func(rec benchRecord) error {
		if logW == nil {
			return nil
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		logW.Write(data)
		logW.WriteByte('\n')
		return nil
	}

	m := memory.New(opts)
	rng := rand.New(rand.NewSource(benchFlags.seed))

	var recalls, misses, falsePositives, probes int
	start := time.Now()

	for turn := 0; turn < benchFlags.turns; turn++ {
		idx := rng.Intn(benchFlags.symbols)
		sym := fmt.Sprintf("fact-%d", idx)
		label := 1.0
		if rng.Float64() < 0.2 {
			label = 0.2 // low-truth sighting: moves the cache, not the ledger bit
		}
		if err := m.Observe(sym, label); err != nil {
			return fmt.Errorf("turn %d: observe %s: %w", turn, sym, err)
		}
		res := m.Query(sym)
		if err := emit(benchRecord{Turn: turn, Kind: "observe", Symbol: sym, Label: label,
			Probability: res.Probability, Exact: res.Exact, Epoch: m.Stats().Epoch}); err != nil {
			return err
		}

		if turn%10 != 9 {
			continue
		}

		// Recall a symbol that has definitely been observed.
		recall := m.Query(sym)
		if recall.Exact {
			recalls++
		} else {
			misses++
		}
		if err := emit(benchRecord{Turn: turn, Kind: "recall", Symbol: sym,
			Probability: recall.Probability, Exact: recall.Exact, Epoch: m.Stats().Epoch}); err != nil {
			return err
		}

		// Probe a symbol that is never observed.
		probeSym := fmt.Sprintf("probe-%d", turn)
		probe := m.Query(probeSym)
		probes++
		if probe.Exact {
			falsePositives++
		}
		if err := emit(benchRecord{Turn: turn, Kind: "probe", Symbol: probeSym,
			Probability: probe.Probability, Exact: probe.Exact, Epoch: m.Stats().Epoch}); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	stats := m.Stats()
	fmt.Printf("turns: %d in %s (%.0f/s)\n", benchFlags.turns, elapsed.Round(time.Millisecond),
		float64(benchFlags.turns)/elapsed.Seconds())
	fmt.Printf("symbols: %d  ledger bits: %d  epochs: %d\n", stats.Symbols, stats.LedgerBits, stats.Epoch)
	fmt.Printf("recalls: %d/%d  false positives: %d/%d\n", recalls, recalls+misses, falsePositives, probes)
	if benchFlags.logPath != "" {
		fmt.Printf("log: %s\n", benchFlags.logPath)
	}

	if misses > 0 || falsePositives > 0 {
		return fmt.Errorf("exactness violated: %d misses, %d false positives", misses, falsePositives)
	}
	return nil
}
