package graphics

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

type stroke struct{ x1, y1, x2, y2 float64 }

func TestDrawTurtle(t *testing.T) {
	tests := []struct {
		name     string
		commands string
		strokes  int
		endX     float64
		endY     float64
	}{
		{"right and down", "R10 D5", 2, 10, 5},
		{"default count", "U", 1, 0, -1},
		{"blind move", "BM20,30", 0, 20, 30},
		{"relative move", "M10,10 M+5,-5", 2, 15, 5},
		{"no update", "NR10", 1, 0, 0},
		{"diagonal", "F3;E3", 2, 6, 0},
		{"color change", "C4 L2", 1, -2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState()
			var got []stroke
			err := runDraw(tt.commands, &s, func(x1, y1, x2, y2 float64, color int) {
				got = append(got, stroke{x1, y1, x2, y2})
			})
			if err != nil {
				t.Fatalf("runDraw(%q): %v", tt.commands, err)
			}
			if len(got) != tt.strokes {
				t.Errorf("strokes = %d, want %d", len(got), tt.strokes)
			}
			if s.lastX != tt.endX || s.lastY != tt.endY {
				t.Errorf("pen at (%g,%g), want (%g,%g)", s.lastX, s.lastY, tt.endX, tt.endY)
			}
		})
	}
}

func TestDrawErrors(t *testing.T) {
	for _, cmd := range []string{"Q", "M10", "M,5", "C"} {
		s := newState()
		err := runDraw(cmd, &s, func(x1, y1, x2, y2 float64, color int) {})
		if basicerr.CodeOf(err) != basicerr.IllegalFunctionCall {
			t.Errorf("runDraw(%q) = %v, want illegal function call", cmd, err)
		}
	}
}

func TestNullCanvasState(t *testing.T) {
	c := NewNullCanvas()
	if err := c.Color(300, Keep); basicerr.CodeOf(err) != basicerr.IllegalFunctionCall {
		t.Errorf("Color(300) = %v", err)
	}
	if err := c.Color(Keep, 2); err != nil || c.fg != 15 || c.bg != 2 {
		t.Errorf("Color(Keep, 2): fg=%d bg=%d err=%v", c.fg, c.bg, err)
	}
	if err := c.Screen(14); err == nil {
		t.Error("Screen(14) accepted")
	}
	if err := c.Line(0, 0, 10, 20, Keep, ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Line(math.NaN(), math.NaN(), 30, 40, Keep, ""); err != nil {
		t.Fatal(err)
	}
	if c.lastX != 30 || c.lastY != 40 {
		t.Errorf("last point (%g,%g)", c.lastX, c.lastY)
	}
	h, err := c.GetImage(0, 0, 9, 9)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PutImage(5, 5, h, "PSET"); err != nil {
		t.Errorf("PutImage(%d): %v", h, err)
	}
	if err := c.PutImage(5, 5, h+1, ""); basicerr.CodeOf(err) != basicerr.IllegalFunctionCall {
		t.Errorf("PutImage of unknown handle = %v", err)
	}
	if err := c.Circle(0, 0, -1, Keep); err == nil {
		t.Error("negative radius accepted")
	}
}

func TestSVGCanvas(t *testing.T) {
	c := NewSVGCanvas("", 320, 200)
	steps := []func() error{
		func() error { return c.Pset(1, 1, 4, false) },
		func() error { return c.Line(0, 0, 100, 100, Keep, "") },
		func() error { return c.Line(10, 10, 20, 20, 2, "BF") },
		func() error { return c.Circle(50, 50, 10, 1) },
		func() error { return c.Paint(50, 50, 3, Keep) },
		func() error { return c.Draw("R10") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := c.Line(0, 0, 1, 1, Keep, "X"); err == nil {
		t.Error("unknown LINE style accepted")
	}
	var buf bytes.Buffer
	if err := c.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"<svg", "<line", "<circle", "<rect", "<desc>", "#AA0000", "</svg>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}

	if err := c.Cls(); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	c.WriteTo(&buf)
	if strings.Contains(buf.String(), "<circle") {
		t.Error("CLS did not clear the drawing")
	}
}

func TestSVGCanvasClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.svg")
	c := NewSVGCanvas(path, 64, 64)
	if err := c.Circle(10, 10, 5, Keep); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<circle") {
		t.Errorf("saved file: %s", data)
	}
}
