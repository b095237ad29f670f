// Package backend holds the process-wide configuration of the numeric
// backend. Rather than ambient global state, a Config is an explicit
// value passed to each component at construction.
package backend

import (
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

// Config configures backend concerns shared by all components: the
// structured logger that diagnostics are written to and the seed for
// any sampling the component performs.
type Config struct {
	// Logger receives construction events at info level and
	// per-update diagnostics at debug level.
	Logger zerolog.Logger

	// Seed seeds the component's action-sampling RNG. Components
	// constructed from the same Config sample independent streams
	// only if given distinct seeds.
	Seed uint64
}

// Default returns a Config with a no-op logger and a fixed seed. The
// core stays silent unless the trainer installs a real logger.
func Default() Config {
	return Config{
		Logger: zerolog.Nop(),
		Seed:   1,
	}
}

// Source returns a new RNG source seeded from the Config.
func (c Config) Source() rand.Source {
	return rand.NewSource(c.Seed)
}
