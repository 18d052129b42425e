package vm

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/files"
	"github.com/antibyte/retrobasic/pkg/graphics"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/lower"
	"github.com/antibyte/retrobasic/pkg/parser"
	"github.com/antibyte/retrobasic/pkg/sound"
	"github.com/antibyte/retrobasic/pkg/source"
)

type memStorage map[string][]byte

func (m memStorage) Load(name string) ([]byte, error) {
	if b, ok := m[name]; ok {
		return append([]byte(nil), b...), nil
	}
	return nil, fs.ErrNotExist
}

func (m memStorage) Save(name string, data []byte) error {
	m[name] = append([]byte(nil), data...)
	return nil
}

func compile(t *testing.T, text string) *ir.Program {
	t.Helper()
	listing, err := source.ReadString(text, source.DuplicateError)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	astProg, err := parser.Parse(listing.Lines())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := lower.Lower(astProg)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	return prog
}

// run executes text with console input and returns the console output.
func run(t *testing.T, text, input string, svc Services, opts Options) (string, error) {
	t.Helper()
	var out bytes.Buffer
	svc.Console = files.NewConsole(&out, files.NewStreamInput(strings.NewReader(input), &out))
	if svc.Files == nil {
		svc.Files = files.NewTable(memStorage{})
	}
	if svc.Env == nil {
		svc.Env = NewMapEnv(nil)
	}
	err := New(compile(t, text), svc, opts).Run(context.Background())
	return out.String(), err
}

type programCase struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Error  string `yaml:"error"`
	Line   int    `yaml:"line"`
}

func loadCases(t *testing.T) []programCase {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "programs.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var cases []programCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		t.Fatal(err)
	}
	return cases
}

func TestPrograms(t *testing.T) {
	for _, tc := range loadCases(t) {
		t.Run(tc.Name, func(t *testing.T) {
			out, err := run(t, tc.Source, tc.Input, Services{}, Options{Seed: 1})
			if out != tc.Output {
				t.Errorf("output = %q, want %q", out, tc.Output)
			}
			if tc.Error == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var be *basicerr.BASICError
			if !errors.As(err, &be) {
				t.Fatalf("error = %v, want %s", err, tc.Error)
			}
			if string(be.Code) != tc.Error || be.LineNumber != tc.Line {
				t.Errorf("error = %s in line %d, want %s in line %d", be.Code, be.LineNumber, tc.Error, tc.Line)
			}
			if be.Category != basicerr.CategoryRuntime {
				t.Errorf("category = %s", be.Category)
			}
		})
	}
}

func TestFilesPersistAfterRun(t *testing.T) {
	store := memStorage{}
	_, err := run(t, "10 OPEN \"O\", #1, \"OUT.TXT\"\n20 WRITE #1, \"A\", 1\n", "",
		Services{Files: files.NewTable(store)}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(store["OUT.TXT"]); got != "\"A\",1\n" {
		t.Errorf("file = %q", got)
	}
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	v := New(compile(t, "10 GOTO 10\n"), Services{}, Options{})
	if err := v.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v", err)
	}
}

func TestDepthLimits(t *testing.T) {
	_, err := run(t, "10 GOSUB 20\n20 GOSUB 30\n30 GOSUB 40\n40 END\n", "", Services{}, Options{MaxGosubDepth: 2})
	if !basicerr.Is(err, basicerr.GosubDepthExceeded) {
		t.Errorf("gosub limit: %v", err)
	}
	_, err = run(t, "10 DEF FNA(X) = X + 1\n20 PRINT FNA(FNA(1))\n", "", Services{}, Options{MaxCallDepth: 1})
	if err != nil {
		t.Errorf("nested arguments are not nested calls: %v", err)
	}
}

func TestRandomSequence(t *testing.T) {
	prog := "10 PRINT RND; RND(0)\n20 RANDOMIZE 3\n30 PRINT RND(1)\n"
	first, err := run(t, prog, "", Services{}, Options{Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := run(t, prog, "", Services{}, Options{Seed: 42})
	if first != second {
		t.Errorf("seeded runs differ: %q and %q", first, second)
	}
	fields := strings.Fields(strings.SplitN(first, "\n", 2)[0])
	if len(fields) != 2 || fields[0] != fields[1] {
		t.Errorf("RND(0) does not repeat the last number: %q", first)
	}
}

func TestClock(t *testing.T) {
	at := time.Date(2024, 3, 9, 1, 2, 3, 0, time.Local)
	out, err := run(t, "10 PRINT DATE$; \" \"; TIME$; TIMER\n", "",
		Services{Clock: func() time.Time { return at }}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "03-09-2024 01:02:03 3723 \n" {
		t.Errorf("output = %q", out)
	}
}

// wav builds a short PCM mono 8-bit clip.
func wav() []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+8))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, []uint32{16})
	binary.Write(&b, binary.LittleEndian, []uint16{1, 1})
	binary.Write(&b, binary.LittleEndian, []uint32{8000, 8000})
	binary.Write(&b, binary.LittleEndian, []uint16{1, 8})
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(8))
	b.Write(make([]byte, 8))
	return b.Bytes()
}

func TestGraphicsAndSound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.svg")
	canvas := graphics.NewSVGCanvas(path, 320, 200)
	store := memStorage{"BOOM.WAV": wav()}
	var bells bytes.Buffer
	player := sound.NewPlayer(&bells, store, true)
	var events []sound.EventKind
	player.OnEvent = func(e sound.Event) { events = append(events, e.Kind) }

	prog := `10 SCREEN 1: COLOR 4, 0
20 PSET (10, 10)
30 LINE (0, 0)-(50, 20), 2, B
40 CIRCLE (100, 100), 30
50 DRAW "R10 D10"
60 GET (0, 0)-(9, 9), IMG
70 PUT (20, 20), IMG
80 BEEP
90 LOADWAV "BOOM.WAV", 1
100 PLAYWAV 1
`
	_, err := run(t, prog, "", Services{Canvas: canvas, Sound: player}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	svgText := string(data)
	for _, want := range []string{"<circle", "<rect", "<line", "image-1"} {
		if !strings.Contains(svgText, want) {
			t.Errorf("svg lacks %s", want)
		}
	}
	if bells.String() != sound.BEL {
		t.Errorf("BEEP wrote %q", bells.String())
	}
	want := []sound.EventKind{sound.EventBeep, sound.EventPlay, sound.EventStop}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestPutWithoutGet(t *testing.T) {
	_, err := run(t, "10 DIM IMG(1)\n20 PUT (0, 0), IMG\n", "", Services{}, Options{})
	if !basicerr.Is(err, basicerr.IllegalFunctionCall) {
		t.Errorf("PUT of an unknown image = %v", err)
	}
}

func TestMapEnv(t *testing.T) {
	env := NewMapEnv(map[string]string{"path": "/bin", "HOME": "/root"})
	if v, _ := env.Getenv("PATH"); v != "/bin" {
		t.Errorf("Getenv = %q", v)
	}
	if e, _ := env.EnvEntry(1); e != "HOME=/root" {
		t.Errorf("EnvEntry(1) = %q", e)
	}
	if e, _ := env.EnvEntry(3); e != "" {
		t.Errorf("EnvEntry past end = %q", e)
	}
	env.Setenv("home", "")
	if e, _ := env.EnvEntry(1); e != "PATH=/bin" {
		t.Errorf("after removal EnvEntry(1) = %q", e)
	}
}

func TestErrorsCarryLocation(t *testing.T) {
	_, err := run(t, "10 A$ = \"X\"\n20 PRINT ASC(\"\")\n", "", Services{}, Options{})
	var be *basicerr.BASICError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v", err)
	}
	if be.LineNumber != 20 || !strings.Contains(be.Source, "ASC") {
		t.Errorf("location = %d %q", be.LineNumber, be.Source)
	}
}
