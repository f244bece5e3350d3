package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
)

func TestReadPassage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.txt")
	if err := os.WriteFile(path, []byte("from file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		path    string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "argument", args: []string{"from arg"}, want: "from arg"},
		{name: "file", path: path, want: "from file\n"},
		{name: "stdin", path: "-", stdin: "from stdin", want: "from stdin"},
		{name: "both", args: []string{"x"}, path: path, wantErr: true},
		{name: "neither", wantErr: true},
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.txt"), wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readPassage(strings.NewReader(tc.stdin), tc.args, tc.path)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("readPassage: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResultsTable(t *testing.T) {
	rows := []domain.AttemptRow{{
		AttemptRecord: domain.AttemptRecord{
			ContentID:      3,
			Symbols:        42,
			OriginalLength: 50,
			Seconds:        60,
			Accuracy:       96,
			WPM:            8,
			SubmittedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		StudentName:       "Ada",
		ApplicationNumber: "APP-1",
	}}

	out := resultsTable(rows)
	for _, want := range []string{"Application", "APP-1", "Ada", "96%", "42/50", "60s"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
