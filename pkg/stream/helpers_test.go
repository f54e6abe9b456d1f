package stream

import (
	"strings"
	"testing"
)

// === Truncate ===

func TestTruncate_ShortStringUnchanged(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestTruncate_ExactBoundUnchanged(t *testing.T) {
	s := strings.Repeat("a", 10)
	if got := Truncate(s, 10); got != s {
		t.Errorf("string at the bound should pass through, got %q", got)
	}
}

func TestTruncate_CutsAtBoundWithMarker(t *testing.T) {
	s := strings.Repeat("x", 600)
	got := Truncate(s, MaxPromptLen)
	want := strings.Repeat("x", MaxPromptLen) + TruncateMarker
	if got != want {
		t.Errorf("got len %d, want len %d", len(got), len(want))
	}
	if len([]rune(got)) != MaxPromptLen+len([]rune(TruncateMarker)) {
		t.Errorf("truncated length must be exactly bound+marker, got %d", len([]rune(got)))
	}
}

func TestTruncate_Idempotent(t *testing.T) {
	s := strings.Repeat("x", 600)
	once := Truncate(s, MaxPromptLen)
	twice := Truncate(once, MaxPromptLen)
	if once != twice {
		t.Errorf("re-truncating must be a no-op:\nonce:  %q\ntwice: %q", once[480:], twice[480:])
	}
}

func TestTruncate_NonStringValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"int", 42, "42"},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.value, 100); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate_MultibyteRunes(t *testing.T) {
	s := strings.Repeat("界", 300)
	got := Truncate(s, 100)
	if runes := []rune(got); len(runes) != 100+len([]rune(TruncateMarker)) {
		t.Errorf("rune-based bound violated, got %d runes", len(runes))
	}
	if !strings.HasSuffix(got, TruncateMarker) {
		t.Error("missing truncation marker")
	}
}

// === ShortPath ===

func TestShortPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/user/project/main.go", "main.go"},
		{"main.go", "main.go"},
		{"a/b/c", "c"},
		{"", ""},
		{"/trailing/", ""},
	}
	for _, tt := range tests {
		if got := ShortPath(tt.in); got != tt.want {
			t.Errorf("ShortPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
