package util

import "testing"

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "execution reverted", 50, "execution reverted"},
		{"control chars", "bad\nthing\thappened", 50, "bad thing happened"},
		{"truncated", "abcdefghij", 4, "abcd..."},
		{"no limit", "abcdefghij", 0, "abcdefghij"},
		{"trimmed", "  spaced  ", 50, "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeMessage(tt.in, tt.max); got != tt.want {
				t.Fatalf("expected %q got %q", tt.want, got)
			}
		})
	}
}
