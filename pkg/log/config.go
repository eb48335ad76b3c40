package log

import (
	"io"
	stdlog "log"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide logger.
type Config struct {
	Level       string `mapstructure:"level"`
	Pretty      bool   `mapstructure:"pretty"`
	ServiceName string `mapstructure:"service_name"`
}

var (
	globalMu sync.RWMutex
	// Usable default so packages can log before Init runs (tests, early
	// startup failures).
	global   = zerolog.New(os.Stdout).With().Timestamp().Logger()
	initOnce sync.Once
)

// New builds a logger from cfg without touching the global one. Unknown or
// empty level strings fall back to info.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}
	}

	lctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.ServiceName != "" {
		lctx = lctx.Str(FieldService, cfg.ServiceName)
	}
	return lctx.Logger()
}

// Init configures the global logger once per process and routes stdlib log
// output through it, so stray log.Printf calls still come out as structured
// JSON.
func Init(cfg Config) {
	initOnce.Do(func() {
		logger := New(cfg)

		globalMu.Lock()
		global = logger
		globalMu.Unlock()

		stdlog.SetFlags(0)
		stdlog.SetOutput(logger.With().Str("source", "stdlog").Logger())
	})
}

// L returns the global logger.
func L() zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}
