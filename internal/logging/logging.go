package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chain-roulette/internal/config"
)

var (
	mu      sync.Mutex
	output  io.Writer = os.Stdout
	logFile *sizeLimitedWriter
)

// Init configures the global logger. With LOG_FILE set, output goes to a
// size-limited file instead of stdout; Close releases it.
func Init(cfg config.LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	output = os.Stdout
	if cfg.File != "" {
		f, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB)
		if err != nil {
			return err
		}
		logFile = f
		output = f
	} else if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer is the sink Init selected; request loggers share it so HTTP access
// lines land next to application lines.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}
