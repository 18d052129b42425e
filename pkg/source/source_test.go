package source

import (
	"testing"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

func TestReadSortsLines(t *testing.T) {
	l, err := ReadString("30 END\n10 PRINT 1\n\n20 PRINT 2\n", DuplicateError)
	if err != nil {
		t.Fatal(err)
	}
	lines := l.Lines()
	want := []int{10, 20, 30}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, n := range want {
		if lines[i].Number != n {
			t.Errorf("line %d = %d, want %d", i, lines[i].Number, n)
		}
	}
	if got, ok := l.Get(20); !ok || got.Text != "20 PRINT 2" {
		t.Errorf("Get(20) = %q, %v", got.Text, ok)
	}
}

func TestDuplicateLines(t *testing.T) {
	text := "10 PRINT \"A\"\n10 PRINT \"B\"\n"

	tests := []struct {
		name string
		mode DuplicateMode
		code basicerr.Code
		text string
	}{
		{"error mode rejects", DuplicateError, basicerr.DuplicateLine, ""},
		{"log mode keeps the later line", DuplicateLog, "", "10 PRINT \"B\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ReadString(text, tt.mode)
			if tt.code != "" {
				if !basicerr.Is(err, tt.code) {
					t.Fatalf("got %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if l.Len() != 1 || l.Lines()[0].Text != tt.text {
				t.Errorf("lines = %v", l.Lines())
			}
		})
	}
}

func TestMissingLineNumber(t *testing.T) {
	if _, err := ReadString("PRINT 1\n", DuplicateError); !basicerr.Is(err, basicerr.MissingLineNum) {
		t.Errorf("got %v, want MISSING_LINE_NUMBER", err)
	}
	if _, err := ReadString("70000 END\n", DuplicateError); !basicerr.Is(err, basicerr.SyntaxError) {
		t.Errorf("got %v, want SYNTAX_ERROR", err)
	}
}

func TestParseDuplicateMode(t *testing.T) {
	if ParseDuplicateMode("LOG") != DuplicateLog {
		t.Error("LOG not recognised")
	}
	if ParseDuplicateMode("anything") != DuplicateError {
		t.Error("unknown mode must fall back to error")
	}
}
