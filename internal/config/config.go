package config

import (
	"fmt"
	"time"

	"github.com/lazypower/substrate/internal/memory"
)

// Config holds all substrate configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Memory   MemoryConfig   `toml:"memory"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type MemoryConfig struct {
	Dim            int     `toml:"dim"`             // cache dimensionality
	LearningRate   float64 `toml:"learning_rate"`   // cache gradient step
	MaxSymbols     int     `toml:"max_symbols"`     // distinct-symbol cap
	CycleMinutes   int     `toml:"cycle_minutes"`   // wall-clock remap trigger, 0 disables
	CycleEvery     int     `toml:"cycle_every"`     // observe-count remap trigger, 0 disables
	ShuffleEnabled bool    `toml:"shuffle_enabled"` // false is the ablation mode
	Seed           int64   `toml:"seed"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	mem := memory.DefaultOptions()
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Memory: MemoryConfig{
			Dim:            mem.Dim,
			LearningRate:   mem.LearningRate,
			MaxSymbols:     mem.MaxSymbols,
			CycleMinutes:   int(mem.CycleInterval / time.Minute),
			CycleEvery:     int(mem.CycleEvery),
			ShuffleEnabled: mem.ShuffleEnabled,
			Seed:           mem.Seed,
		},
	}
}

// MemoryOptions converts the memory section into memory.Options.
func (c *Config) MemoryOptions() memory.Options {
	return memory.Options{
		Dim:            c.Memory.Dim,
		LearningRate:   c.Memory.LearningRate,
		MaxSymbols:     c.Memory.MaxSymbols,
		CycleInterval:  time.Duration(c.Memory.CycleMinutes) * time.Minute,
		CycleEvery:     uint64(c.Memory.CycleEvery),
		ShuffleEnabled: c.Memory.ShuffleEnabled,
		Seed:           c.Memory.Seed,
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
