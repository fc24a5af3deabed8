package telemetry

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string
	JSON       bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// silent until Init so packages can log from tests without setup
var log = zerolog.Nop()

func Init(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	// CLI runs log to stderr so stdout stays clean for the summary
	var console io.Writer = os.Stderr
	if !cfg.JSON {
		console = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.RFC3339
		})
	}

	writers := []io.Writer{console}
	if cfg.File != "" {
		// file rotator
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    ifZero(cfg.MaxSizeMB, 10),
			MaxBackups: ifZero(cfg.MaxBackups, 3),
			MaxAge:     ifZero(cfg.MaxAgeDays, 28),
			Compress:   cfg.Compress,
		})
	}
	multi := zerolog.MultiLevelWriter(writers...)

	l := zerolog.New(multi).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	l = l.Level(level)

	log = l
	return log
}

func L() zerolog.Logger { return log }

// FromEnv reads LOG_* settings through get. The first malformed number or
// bool is returned as an error.
func FromEnv(get func(string, string) string) (Config, error) {
	p := envParser{get: get}
	cfg := Config{
		Level:      get("LOG_LEVEL", "info"),
		JSON:       p.parseBool("LOG_JSON", "false"),
		File:       get("LOG_FILE", ""),
		MaxSizeMB:  p.atoi("LOG_MAX_SIZE_MB", "10"),
		MaxBackups: p.atoi("LOG_MAX_BACKUPS", "3"),
		MaxAgeDays: p.atoi("LOG_MAX_AGE_DAYS", "28"),
		Compress:   p.parseBool("LOG_COMPRESS", "true"),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

func ifZero[T ~int](v T, d T) T {
	if v == 0 {
		return d
	}
	return v
}

type envParser struct {
	get func(string, string) string
	err error
}

func (p *envParser) atoi(k, d string) int {
	v := p.get(k, d)
	i, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return i
}

func (p *envParser) parseBool(k, d string) bool {
	v := p.get(k, d)
	b, err := strconv.ParseBool(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return b
}
