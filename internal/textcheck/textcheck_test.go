package textcheck_test

import (
	"testing"

	"github.com/msomdec/typing-exam/internal/textcheck"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		valid   bool
		invalid []rune
	}{
		{"empty", "", true, nil},
		{"letters and punctuation", "The quick brown fox, jumps! (over) 42 dogs?", true, nil},
		{"full printable range", " ~", true, nil},
		{"newline", "line one\nline two", false, []rune{'\n'}},
		{"tab", "a\tb", false, []rune{'\t'}},
		{"non ascii", "café", false, []rune{'é'}},
		{"duplicates reported once", "é\né\n", false, []rune{'é', '\n'}},
		{"smart quotes", "“hi”", false, []rune{'“', '”'}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := textcheck.Validate(tc.text)
			if got.Valid != tc.valid {
				t.Fatalf("expected valid=%v, got %v", tc.valid, got.Valid)
			}
			if len(got.InvalidChars) != len(tc.invalid) {
				t.Fatalf("expected invalid chars %q, got %q", tc.invalid, got.InvalidChars)
			}
			for i := range tc.invalid {
				if got.InvalidChars[i] != tc.invalid[i] {
					t.Fatalf("expected invalid chars %q, got %q", tc.invalid, got.InvalidChars)
				}
			}
		})
	}
}

func TestIsAllowed(t *testing.T) {
	for _, r := range []rune{' ', 'a', 'Z', '0', '~', '!'} {
		if !textcheck.IsAllowed(r) {
			t.Fatalf("expected %q to be allowed", r)
		}
	}
	for _, r := range []rune{'\n', '\t', 0x7F, 0x1F, 'ñ'} {
		if textcheck.IsAllowed(r) {
			t.Fatalf("expected %q to be rejected", r)
		}
	}
}

func TestDescribe(t *testing.T) {
	got := textcheck.Validate("a\nb\tc").Describe()
	if got != `'\n', '\t'` {
		t.Fatalf("unexpected description %s", got)
	}
}
