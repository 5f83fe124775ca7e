package sandbox

import (
	envconfig "github.com/microvm-js/sandbox/internal/config"
	"github.com/microvm-js/sandbox/internal/logging"
)

// NewBuilderFromEnv returns a Builder pre-configured with a logger built
// from the process's environment-derived configuration (SANDBOX_LOG_LEVEL,
// SANDBOX_LOG_DEV), falling back to defaults if the environment is
// unparseable. Mirrors the teacher's NewServer(cfg)-reads-cfg.Logging
// pattern, adapted to a builder rather than a long-lived server.
func NewBuilderFromEnv() *Builder {
	cfg := envconfig.LoadOrDefault()

	var log *logging.Logger
	var err error
	if cfg.Logging.Development {
		log, err = logging.New(logging.DevelopmentConfig())
	} else {
		log, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: false,
			OutputPaths: []string{"stdout"},
		})
	}
	if err != nil {
		log = logging.Nop()
	}

	b, setErr := NewBuilder().SetLogger(log)
	if setErr != nil {
		return NewBuilder()
	}
	return b
}
