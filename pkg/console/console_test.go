package console

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

func TestCodepage(t *testing.T) {
	cp, err := LookupCodepage("CP437")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		program  string
		terminal string
	}{
		{"HELLO", "HELLO"},
		{"\xc9\xcd\xbb", "╔═╗"},
	}
	for _, tt := range tests {
		if got := cp.ToTerminal(tt.program); got != tt.terminal {
			t.Errorf("ToTerminal(%q) = %q, want %q", tt.program, got, tt.terminal)
		}
		if got := cp.FromTerminal(tt.terminal); got != tt.program {
			t.Errorf("FromTerminal(%q) = %q, want %q", tt.terminal, got, tt.program)
		}
	}
	if got := cp.FromTerminal("€"); len(got) != 1 {
		t.Errorf("unsupported rune became %q", got)
	}

	var buf bytes.Buffer
	w := cp.Output(&buf)
	w.Write([]byte("\xc4\xc4"))
	if buf.String() != "──" {
		t.Errorf("Output wrote %q", buf.String())
	}

	if _, err := LookupCodepage("ebcdic"); err == nil {
		t.Error("unknown codepage accepted")
	}
	utf, _ := LookupCodepage("")
	if utf.ToTerminal("\xc9") != "\xc9" {
		t.Error("utf8 codepage changed text")
	}
}

func TestStreamConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("42\nlast"), 0o644); err != nil {
		t.Fatal(err)
	}
	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	var out bytes.Buffer
	s, err := Open(in, &out, Options{Codepage: "utf8", LineEditing: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.liner != nil {
		t.Fatal("line editing enabled on a regular file")
	}

	for _, want := range []string{"42", "last"} {
		line, err := s.ReadLine("? ")
		if err != nil || line != want {
			t.Errorf("ReadLine = %q, %v; want %q", line, err, want)
		}
	}
	if _, err := s.ReadLine("? "); !basicerr.Is(err, basicerr.InputPastEnd) {
		t.Errorf("ReadLine at end = %v", err)
	}
	if out.String() != "? ? ? " {
		t.Errorf("prompts = %q", out.String())
	}
}
