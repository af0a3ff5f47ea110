// Package logger builds the zerolog logger and carries request fields
// through context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// SampleN keeps one in N events; 0 or 1 keeps all.
	Level     string
	Console   bool
	SampleN   int
	Scenario  string
	Component string
}

type ctxKey string

const (
	ctxReqIDKey  ctxKey = "request_id"
	ctxVariable  ctxKey = "variable"
	ctxComponent ctxKey = "component"
	ctxScenario  ctxKey = "scenario"
)

func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return context.WithValue(ctx, ctxReqIDKey, reqID)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxReqIDKey).(string)
	return s
}

func WithVariable(ctx context.Context, variable string) context.Context {
	if variable == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxVariable, variable)
}

func WithScenario(ctx context.Context, scenario string) context.Context {
	if scenario == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxScenario, scenario)
}

func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxComponent, component)
}

func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// ctxFields lists the context values copied onto every log line, in order.
var ctxFields = []ctxKey{ctxReqIDKey, ctxScenario, ctxComponent, ctxVariable}

func sampler(n int) zerolog.Sampler {
	if n <= 1 {
		return nil
	}
	if n > math.MaxUint32 {
		n = math.MaxUint32
	}
	return &zerolog.BasicSampler{N: uint32(n)}
}

// ParseLevel maps a config level to zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Build returns a JSON logger, or a console logger when cfg.Console is set.
// The level is set on the logger rather than globally.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "msg"
	zerolog.DurationFieldUnit = time.Millisecond

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(out).Level(ParseLevel(cfg.Level))
	if s := sampler(cfg.SampleN); s != nil {
		base = base.Sample(s)
	}

	zc := base.With().Timestamp()
	if cfg.Scenario != "" {
		zc = zc.Str(string(ctxScenario), cfg.Scenario)
	}
	if cfg.Component != "" {
		zc = zc.Str(string(ctxComponent), cfg.Component)
	}
	return zc.Logger()
}

// FromContext returns a child of parent carrying the request fields in ctx.
// Fields already fixed on the parent by Build are not repeated.
func FromContext(ctx context.Context, parent *zerolog.Logger, fixed map[string]bool) *zerolog.Logger {
	base := zerolog.Nop()
	if parent != nil {
		base = *parent
	}
	w := base.With()
	for _, k := range ctxFields {
		if fixed[string(k)] {
			continue
		}
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			w = w.Str(string(k), s)
		}
	}
	l := w.Logger()
	return &l
}
