package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNew(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, true)
	if obs == nil || obs.log == nil {
		t.Fatal("expected non-nil Observer with logger")
	}

	obs.Log().Info().Str("collection", "global").Msg("document written")
	if !strings.Contains(buf.String(), "document written") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestQuietSuppressesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, false)

	obs.Log().Info().Msg("chatty")
	if strings.Contains(buf.String(), "chatty") {
		t.Errorf("info should be suppressed when not verbose, got %q", buf.String())
	}

	obs.Log().Warn().Msg("careful")
	if !strings.Contains(buf.String(), "careful") {
		t.Errorf("warn should pass, got %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := NewWithFormat(buf, FormatJSON, true)

	obs.Log().Info().Int("count", 3).Msg("listed")
	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected JSON line, got %q", out)
	}
	if !strings.Contains(out, "listed") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatConsole, false},
		{"console", FormatConsole, false},
		{"json", FormatJSON, false},
		{"logfmt", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestStartSpan(t *testing.T) {
	obs := Nop()
	ctx, span := obs.StartSpan(context.Background(), "gateway.write", attribute.String("collection", "global"))
	if ctx == nil || span == nil {
		t.Fatal("expected context and span")
	}
	EndSpan(span, errors.New("embedding failed"))

	_, span = obs.StartSpan(context.Background(), "gateway.query")
	EndSpan(span, nil)
}
