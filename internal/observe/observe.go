// Package observe wires structured logging and tracing for the gateway and
// the client.
package observe

import (
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vector-memory")

// Format selects the log handler.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ParseFormat validates a --log-format value. Empty means console.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown log format %q (valid: console, json)", s)
}

// Observer carries the logger and tracer shared by a process.
type Observer struct {
	log *bolt.Logger
}

// New creates a console Observer. Unless verbose, only warnings and errors
// are written.
func New(out io.Writer, verbose bool) *Observer {
	return NewWithFormat(out, FormatConsole, verbose)
}

// NewWithFormat creates an Observer writing f to out, one line per event.
func NewWithFormat(out io.Writer, f Format, verbose bool) *Observer {
	var l *bolt.Logger
	if f == FormatJSON {
		l = bolt.New(bolt.NewJSONHandler(out))
	} else {
		l = bolt.New(bolt.NewConsoleHandler(out))
	}
	if !verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Observer{log: l}
}

// Nop returns an Observer that discards everything.
func Nop() *Observer {
	return New(io.Discard, false)
}

func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a span with attrs already set.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan ends span, marking it failed when err is set.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
