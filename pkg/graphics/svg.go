package graphics

import (
	"fmt"
	"io"
	"math"
	"os"

	svg "github.com/ajstarks/svgo"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// palette is the 16-color CGA palette; higher color numbers wrap.
var palette = [16]string{
	"#000000", "#0000AA", "#00AA00", "#00AAAA", "#AA0000", "#AA00AA", "#AA5500", "#AAAAAA",
	"#555555", "#5555FF", "#55FF55", "#55FFFF", "#FF5555", "#FF55FF", "#FFFF55", "#FFFFFF",
}

func colorOf(c int) string {
	if c < 0 {
		c = 0
	}
	return palette[c%len(palette)]
}

// SVGCanvas records the drawing and writes it as one SVG document on Close.
type SVGCanvas struct {
	state
	path          string
	width, height int
	ops           []func(*svg.SVG)
}

// NewSVGCanvas returns a canvas of the given size saved to path on Close.
// An empty path keeps the drawing in memory only (see WriteTo).
func NewSVGCanvas(path string, width, height int) *SVGCanvas {
	return &SVGCanvas{state: newState(), path: path, width: width, height: height}
}

func px(f float64) int { return int(math.Round(f)) }

func (c *SVGCanvas) record(op func(*svg.SVG)) { c.ops = append(c.ops, op) }

func (c *SVGCanvas) Cls() error {
	c.ops = nil
	return nil
}

func (c *SVGCanvas) Screen(mode int) error {
	if err := c.setScreen(mode); err != nil {
		return err
	}
	c.ops = nil
	return nil
}

func (c *SVGCanvas) Color(fg, bg int) error { return c.setColor(fg, bg) }

func (c *SVGCanvas) Pset(x, y float64, color int, preset bool) error {
	if preset && color == Keep {
		color = c.bg
	}
	x, y, color = c.resolve(x, y, color)
	fill := "fill:" + colorOf(color)
	c.record(func(s *svg.SVG) { s.Rect(px(x), px(y), 1, 1, fill) })
	c.lastX, c.lastY = x, y
	return nil
}

func (c *SVGCanvas) Line(x1, y1, x2, y2 float64, color int, style string) error {
	x1, y1, color = c.resolve(x1, y1, color)
	col := colorOf(color)
	switch style {
	case "":
		c.record(func(s *svg.SVG) { s.Line(px(x1), px(y1), px(x2), px(y2), "stroke:"+col) })
	case "B", "BF":
		left, top := math.Min(x1, x2), math.Min(y1, y2)
		w, h := math.Abs(x2-x1), math.Abs(y2-y1)
		attr := "fill:none;stroke:" + col
		if style == "BF" {
			attr = "fill:" + col
		}
		c.record(func(s *svg.SVG) { s.Rect(px(left), px(top), px(w), px(h), attr) })
	default:
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "LINE style %s", style)
	}
	c.lastX, c.lastY = x2, y2
	return nil
}

func (c *SVGCanvas) Circle(x, y, r float64, color int) error {
	if r < 0 {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "radius %g", r)
	}
	x, y, color = c.resolve(x, y, color)
	attr := "fill:none;stroke:" + colorOf(color)
	c.record(func(s *svg.SVG) { s.Circle(px(x), px(y), px(r), attr) })
	c.lastX, c.lastY = x, y
	return nil
}

// Paint cannot flood-fill a vector drawing; the fill request is kept as a
// description element at the seed point.
func (c *SVGCanvas) Paint(x, y float64, paint, border int) error {
	x, y, paint = c.resolve(x, y, paint)
	if border == Keep {
		border = paint
	}
	desc := fmt.Sprintf("paint %s at %d,%d bounded by %s", colorOf(paint), px(x), px(y), colorOf(border))
	c.record(func(s *svg.SVG) { s.Desc(desc) })
	c.lastX, c.lastY = x, y
	return nil
}

func (c *SVGCanvas) Draw(commands string) error {
	return runDraw(commands, &c.state, func(x1, y1, x2, y2 float64, color int) {
		col := colorOf(color)
		c.record(func(s *svg.SVG) { s.Line(px(x1), px(y1), px(x2), px(y2), "stroke:"+col) })
	})
}

func (c *SVGCanvas) GetImage(x1, y1, x2, y2 float64) (int, error) {
	return c.storeImage(x1, y1, x2, y2), nil
}

// PutImage places an outline of the stored region; the action (PSET, XOR...)
// is kept as the element's class.
func (c *SVGCanvas) PutImage(x, y float64, handle int, action string) error {
	r, err := c.image(handle)
	if err != nil {
		return err
	}
	if action == "" {
		action = "XOR"
	}
	attr := fmt.Sprintf(`class="image-%d %s" fill="none" stroke="%s" stroke-dasharray="2"`,
		handle, action, colorOf(c.fg))
	c.record(func(s *svg.SVG) { s.Rect(px(x), px(y), px(r.w), px(r.h), attr) })
	return nil
}

func (c *SVGCanvas) Font(n int) error {
	c.font = n
	return nil
}

// WriteTo renders the recorded drawing.
func (c *SVGCanvas) WriteTo(w io.Writer) error {
	s := svg.New(w)
	s.Start(c.width, c.height)
	s.Rect(0, 0, c.width, c.height, "fill:"+colorOf(c.bg))
	for _, op := range c.ops {
		op(s)
	}
	s.End()
	return nil
}

// Close writes the SVG file.
func (c *SVGCanvas) Close() error {
	if c.path == "" {
		return nil
	}
	f, err := os.Create(c.path)
	if err != nil {
		return basicerr.RuntimeWrap(basicerr.IOError, err)
	}
	if err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	gfxDebugLog("wrote %d elements to %s", len(c.ops), c.path)
	return f.Close()
}
