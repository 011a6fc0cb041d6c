package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// EnvNumThreads overrides the worker count otherwise derived from the
// machine's logical CPU count, the DATAMAP_* analog of the Rust original's
// RAYON_NUM_THREADS.
const EnvNumThreads = "DATAMAP_NUM_THREADS"

// buildEnvMap reads DATAMAP_* environment variables into a flat map
// suitable for a koanf confmap provider. Invalid values are silently
// skipped rather than blocking resolution.
func buildEnvMap() map[string]any {
	m := make(map[string]any)
	if v := os.Getenv(EnvNumThreads); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			m["num_threads"] = n
		}
	}
	return m
}

// ResolveNumThreads returns the worker count to use for bounded-concurrency
// stages: DATAMAP_NUM_THREADS if set, else the machine's logical CPU count.
func ResolveNumThreads() int {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(map[string]any{"num_threads": runtime.NumCPU()}, "."), nil)
	_ = k.Load(confmap.Provider(buildEnvMap(), "."), nil)
	n := k.Int("num_threads")
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return n
}
