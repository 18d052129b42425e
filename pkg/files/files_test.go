package files

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/value"
)

type memStorage map[string][]byte

func (m memStorage) Load(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (m memStorage) Save(name string, data []byte) error {
	m[name] = append([]byte(nil), data...)
	return nil
}

func TestSequentialRoundTrip(t *testing.T) {
	store := memStorage{}
	tbl := NewTable(store)
	if err := tbl.Open(1, "OUT.TXT", ModeOutput, 0); err != nil {
		t.Fatal(err)
	}
	f, _ := tbl.Get(1)
	p, err := f.Printer()
	if err != nil {
		t.Fatal(err)
	}
	p.Print(`"A,B",3` + "\n")
	p.Print("line two\n")
	if err := tbl.Close(1); err != nil {
		t.Fatal(err)
	}

	if err := tbl.Open(2, "OUT.TXT", ModeInput, 0); err != nil {
		t.Fatal(err)
	}
	f, _ = tbl.Get(2)
	for _, want := range []string{"A,B", "3"} {
		got, err := f.ReadField()
		if err != nil || got != want {
			t.Fatalf("ReadField() = %q, %v; want %q", got, err, want)
		}
	}
	if line, err := f.ReadLine(); err != nil || line != "line two" {
		t.Fatalf("ReadLine() = %q, %v", line, err)
	}
	if !f.EOF() {
		t.Error("EOF() = false at end of file")
	}
	if _, err := f.ReadField(); !basicerr.Is(err, basicerr.InputPastEnd) {
		t.Errorf("read past end: %v", err)
	}
	if _, err := f.Printer(); !basicerr.Is(err, basicerr.IllegalFileAccess) {
		t.Errorf("PRINT to input file: %v", err)
	}
}

func TestAppendKeepsContent(t *testing.T) {
	store := memStorage{"LOG.TXT": []byte("one\n")}
	tbl := NewTable(store)
	if err := tbl.Open(1, "LOG.TXT", ModeAppend, 0); err != nil {
		t.Fatal(err)
	}
	f, _ := tbl.Get(1)
	p, _ := f.Printer()
	p.Print("two\n")
	if err := tbl.CloseAll(); err != nil {
		t.Fatal(err)
	}
	if got := string(store["LOG.TXT"]); got != "one\ntwo\n" {
		t.Errorf("content = %q", got)
	}
}

func TestTableErrors(t *testing.T) {
	tbl := NewTable(memStorage{})
	tests := []struct {
		name string
		err  error
		code basicerr.Code
	}{
		{"missing input file", tbl.Open(1, "NONE", ModeInput, 0), basicerr.FileNotFound},
		{"file number zero", tbl.Open(0, "X", ModeOutput, 0), basicerr.BadFileNumber},
		{"file number too high", tbl.Open(256, "X", ModeOutput, 0), basicerr.BadFileNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !basicerr.Is(tt.err, tt.code) {
				t.Errorf("got %v, want %s", tt.err, tt.code)
			}
		})
	}

	if err := tbl.Open(3, "X", ModeOutput, 0); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Open(3, "Y", ModeOutput, 0); !basicerr.Is(err, basicerr.FileAlreadyOpen) {
		t.Errorf("second open: %v", err)
	}
	if _, err := tbl.Get(4); !basicerr.Is(err, basicerr.BadFileNumber) {
		t.Errorf("Get of closed number: %v", err)
	}
	if _, err := ParseMode("Z"); !basicerr.Is(err, basicerr.IllegalFileAccess) {
		t.Errorf("ParseMode: %v", err)
	}
}

func TestRandomRecords(t *testing.T) {
	store := memStorage{}
	tbl := NewTable(store)
	if err := tbl.Open(1, "DATA.DAT", ModeRandom, 10); err != nil {
		t.Fatal(err)
	}
	f, _ := tbl.Get(1)
	name, code := value.New(value.STRING), value.New(value.STRING)
	if err := f.BeginField(); err != nil {
		t.Fatal(err)
	}
	if err := f.Field(4, name); err != nil {
		t.Fatal(err)
	}
	if err := f.Field(6, code); err != nil {
		t.Fatal(err)
	}
	if err := f.Field(1, value.New(value.STRING)); !basicerr.Is(err, basicerr.FieldOverflow) {
		t.Errorf("field past record end: %v", err)
	}

	name.Lset("AB")
	code.Rset("XY")
	if err := f.PutRecord(2, true); err != nil {
		t.Fatal(err)
	}
	if f.Lof() != 20 || f.Loc() != 2 {
		t.Errorf("LOF = %d, LOC = %d", f.Lof(), f.Loc())
	}

	name.Lset("")
	code.Lset("")
	if err := f.GetRecord(2, true); err != nil {
		t.Fatal(err)
	}
	if s, _ := name.Str(); s != "AB  " {
		t.Errorf("name = %q", s)
	}
	if s, _ := code.Str(); s != "    XY" {
		t.Errorf("code = %q", s)
	}
	if err := f.GetRecord(0, true); !basicerr.Is(err, basicerr.BadRecordNumber) {
		t.Errorf("record 0: %v", err)
	}
	tbl.CloseAll()
	if len(store["DATA.DAT"]) != 20 {
		t.Errorf("saved %d bytes", len(store["DATA.DAT"]))
	}
}

func TestPrinterColumns(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Print("AB")
	p.Comma()
	if p.Column() != 14 {
		t.Errorf("column after comma = %d", p.Column())
	}
	p.Tab(20)
	if p.Column() != 19 {
		t.Errorf("column after TAB(20) = %d", p.Column())
	}
	p.Tab(5)
	if p.Column() != 4 || !strings.Contains(buf.String(), "\n") {
		t.Errorf("TAB behind the cursor must start a new line, column %d", p.Column())
	}
	p.Spc(3)
	if p.Column() != 7 {
		t.Errorf("column after SPC(3) = %d", p.Column())
	}
}

func TestSplitFields(t *testing.T) {
	got := SplitFields(`"a, b", 3 , x`)
	want := []string{"a, b", "3", "x"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
	if f := SplitFields(""); len(f) != 1 || f[0] != "" {
		t.Errorf("empty line gives %q", f)
	}
}

func TestConsoleInput(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, NewStreamInput(strings.NewReader("first\r\nlast"), &out))
	c.Print("abc")
	line, err := c.ReadLine("? ")
	if err != nil || line != "first" {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}
	if c.Column() != 0 {
		t.Errorf("column after input = %d", c.Column())
	}
	if line, err = c.ReadLine(""); err != nil || line != "last" {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}
	if _, err = c.ReadLine(""); !basicerr.Is(err, basicerr.InputPastEnd) {
		t.Errorf("end of input: %v", err)
	}
	if out.String() != "abc? " {
		t.Errorf("output = %q", out.String())
	}
	if c.InKey() != "" {
		t.Error("stream input has no keys")
	}
}

func TestOSStorage(t *testing.T) {
	s := OSStorage{Dir: t.TempDir()}
	if _, err := s.Load("missing.txt"); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
	if err := s.Save("../escape.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	data, err := s.Load("escape.txt")
	if err != nil || string(data) != "x" {
		t.Errorf("Load = %q, %v", data, err)
	}
}
