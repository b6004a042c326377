package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tudu-app/tudu/internal/store/schema"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRenderTask(t *testing.T) {
	pending := RenderTask(schema.Task{ID: "0123456789", Text: "Buy milk"})
	if !strings.HasPrefix(pending, "[ ] Buy milk") || !strings.HasSuffix(pending, "01234567") {
		t.Errorf("RenderTask(pending) = %q", pending)
	}

	done := RenderTask(schema.Task{ID: "abc", Text: "Call bank", Completed: true})
	if !strings.Contains(done, "[x]") || !strings.Contains(done, "Call bank") {
		t.Errorf("RenderTask(done) = %q", done)
	}
}

func TestRenderBanner(t *testing.T) {
	if got := RenderBanner("", false); got != "" {
		t.Errorf("RenderBanner(\"\") = %q, want empty", got)
	}
	if got := RenderBanner("Sync is active", false); !strings.Contains(got, "Sync is active") {
		t.Errorf("RenderBanner() = %q, missing text", got)
	}
}

func TestShortID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"abc", "abc"},
		{"0123456789abcdef", "01234567"},
	}
	for _, tt := range tests {
		if got := ShortID(tt.in); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIndent(t *testing.T) {
	if got := Indent("a\nb", 2); got != "  a\n  b" {
		t.Errorf("Indent() = %q", got)
	}
}
