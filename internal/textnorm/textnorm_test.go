package textnorm

import (
	"testing"
)

func TestContentHash_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := ContentHash("Photosynthesis converts light energy into chemical energy.")
	b := ContentHash("   photosynthesis converts LIGHT energy into chemical energy.\n")
	if a != b {
		t.Errorf("expected identical hashes, got %q and %q", a, b)
	}
	if len(a) != HashLen {
		t.Errorf("expected hash length %d, got %d", HashLen, len(a))
	}
}

func TestContentHash_UnicodeComposition(t *testing.T) {
	// "é" precomposed vs "e" + combining acute.
	if ContentHash("café") != ContentHash("café") {
		t.Error("expected NFC-equivalent strings to hash identically")
	}
}

func TestContentHash_DifferentText(t *testing.T) {
	if ContentHash("mitosis") == ContentHash("meiosis") {
		t.Error("expected different hashes for different text")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cell Biology", "cell-biology"},
		{"  Unit 3: Forces & Motion!  ", "unit-3-forces-motion"},
		{"---", ""},
		{"Ünïcode", "n-code"},
	}
	for _, tc := range tests {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugify_LongInputCapped(t *testing.T) {
	s := Slugify("the quick brown fox jumps over the lazy dog and keeps running far away")
	if len(s) > 50 {
		t.Errorf("expected slug capped at 50 chars, got %d", len(s))
	}
}

func TestTermKey(t *testing.T) {
	if TermKey("  Habitat ") != "habitat" {
		t.Errorf("unexpected term key %q", TermKey("  Habitat "))
	}
}

func TestTail(t *testing.T) {
	if Tail("abcdef", 3) != "def" {
		t.Errorf("unexpected tail %q", Tail("abcdef", 3))
	}
	if Tail("ab", 3) != "ab" {
		t.Errorf("unexpected tail %q", Tail("ab", 3))
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Errorf("Truncate = %q", got)
	}
	// "é" is two bytes; cutting at 2 would split it.
	if got := Truncate("aébc", 2); got != "a..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Tail("abé", 1); got != "" {
		t.Errorf("Tail = %q", got)
	}
}
