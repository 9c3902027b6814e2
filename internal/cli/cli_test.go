package cli

import (
	"errors"
	"slices"
	"testing"

	"github.com/rcliao/vector-memory/internal/memory"
)

func TestParseDeleteTarget(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		all     bool
		days    int
		dupes   bool
		want    deleteTarget
		wantErr bool
	}{
		{name: "history index", args: []string{"3"}, want: deleteTarget{Index: 3}},
		{name: "days", days: 30, want: deleteTarget{Days: 30}},
		{name: "dupes and days", days: 7, dupes: true, want: deleteTarget{Days: 7, Dupes: true}},
		{name: "compact index", args: []string{"compact", "2"}, want: deleteTarget{Compact: true, Index: 2}},
		{name: "compact all", args: []string{"compact"}, all: true, want: deleteTarget{Compact: true, All: true}},
		{name: "compact days", args: []string{"compact"}, days: 7, want: deleteTarget{Compact: true, Days: 7}},

		{name: "nothing", wantErr: true},
		{name: "bare compact", args: []string{"compact"}, wantErr: true},
		{name: "zero index", args: []string{"0"}, wantErr: true},
		{name: "word index", args: []string{"first"}, wantErr: true},
		{name: "index with days", args: []string{"1"}, days: 3, wantErr: true},
		{name: "all without compact", all: true, wantErr: true},
		{name: "compact dupes", args: []string{"compact"}, dupes: true, wantErr: true},
		{name: "compact all and days", args: []string{"compact"}, all: true, days: 3, wantErr: true},
		{name: "negative days", days: -1, wantErr: true},
		{name: "extra arg", args: []string{"compact", "1", "2"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDeleteTarget(tt.args, tt.all, tt.days, tt.dupes)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseDeleteTargetIndexErrors(t *testing.T) {
	_, err := parseDeleteTarget([]string{"x"}, false, 0, false)
	if !errors.Is(err, memory.ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}
}

func TestPickAgentFiles(t *testing.T) {
	candidates := []string{"CLAUDE.md", "GEMINI.md", "QWEN.md", "AGENTS.md"}
	tests := []struct {
		answer string
		want   []string
	}{
		{"1\n", []string{"CLAUDE.md"}},
		{"1,2, 4\n", []string{"CLAUDE.md", "GEMINI.md", "AGENTS.md"}},
		{"2 3", []string{"GEMINI.md", "QWEN.md"}},
		{"9,x\n", nil},
		{"\n", nil},
	}
	for _, tt := range tests {
		if got := pickAgentFiles(tt.answer, candidates); !slices.Equal(got, tt.want) {
			t.Errorf("pickAgentFiles(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("got %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
}
