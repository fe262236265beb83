// Package logger provides the process-wide zerolog logger and component-scoped children
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger
type Options struct {
	Level   string
	Format  string // "console" or "json"
	Service string
	Writer  io.Writer
}

// Logger is the project-wide logging type
type Logger = zerolog.Logger

var (
	once sync.Once
	root atomic.Pointer[zerolog.Logger]
)

// Init builds the root logger. Only the first call has an effect.
func Init(opt Options) {
	once.Do(func() {
		root.Store(build(opt))
	})
}

// New builds a standalone logger without touching the root. Used by tests
// that want to capture output.
func New(opt Options) *Logger {
	return build(opt)
}

func build(opt Options) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stdout
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if opt.Service != "" {
		ctx = ctx.Str("service", opt.Service)
	}
	l := ctx.Logger()
	return &l
}

// Get returns the root logger, initializing it with defaults if needed
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(Options{Level: "info", Format: "console"})
	return root.Load()
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	l := zerolog.Nop()
	return &l
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
