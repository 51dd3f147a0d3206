package highlight

import (
	"strings"
	"testing"
)

func TestApplyCaseInsensitive(t *testing.T) {
	in := "Hello there\nsecond hello\n"
	res := Apply(in, "hello", func(s string) string { return "[[" + s + "]]" })

	if res.Count != 2 {
		t.Fatalf("expected 2 matches, got %d", res.Count)
	}
	if !strings.Contains(res.Text, "[[Hello]]") || !strings.Contains(res.Text, "[[hello]]") {
		t.Fatalf("highlight wrapper not applied: %q", res.Text)
	}
}

func TestApplyEmptyQuery(t *testing.T) {
	in := "nothing to mark"
	res := Apply(in, "  ", func(s string) string { return "<" + s + ">" })
	if res.Text != in || res.Count != 0 {
		t.Fatalf("expected input unchanged, got %q (%d)", res.Text, res.Count)
	}
}

func TestApplyPreservesEscapeSequences(t *testing.T) {
	in := "a \x1b[31mhello\x1b[0m b"
	res := Apply(in, "hello", func(s string) string { return "<" + s + ">" })

	if res.Count != 1 {
		t.Fatalf("expected 1 match, got %d", res.Count)
	}
	if !strings.Contains(res.Text, "\x1b[31m<hello>\x1b[0m") {
		t.Fatalf("expected escaped segment to stay intact, got %q", res.Text)
	}
}

func TestApplyDoesNotMatchAcrossEscapeBoundaries(t *testing.T) {
	in := "he\x1b[31mll\x1b[0mo"
	res := Apply(in, "hello", func(s string) string { return "<" + s + ">" })
	if res.Count != 0 {
		t.Fatalf("expected 0 matches across escape boundaries, got %d", res.Count)
	}
}
