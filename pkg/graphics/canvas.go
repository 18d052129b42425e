// Package graphics implements the drawing statements of the interpreter on
// a pluggable canvas.
package graphics

import (
	"math"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/logger"
)

func gfxDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaGraphics, "[GFX] "+format, args...)
}

// Keep marks a COLOR argument that was left out.
const Keep = -1

// Canvas receives the graphics statements. Coordinates that were not given
// (LINE -(x,y)) are NaN and mean the last point drawn.
type Canvas interface {
	Cls() error
	Screen(mode int) error
	Color(fg, bg int) error
	Pset(x, y float64, color int, preset bool) error
	Line(x1, y1, x2, y2 float64, color int, style string) error
	Circle(x, y, r float64, color int) error
	Paint(x, y float64, paint, border int) error
	Draw(commands string) error
	GetImage(x1, y1, x2, y2 float64) (int, error)
	PutImage(x, y float64, handle int, action string) error
	Font(n int) error
	Close() error
}

type region struct {
	w, h float64
}

// state is the part of a canvas every backend keeps: colors, the last
// point and stored image regions.
type state struct {
	mode   int
	fg, bg int
	font   int
	lastX  float64
	lastY  float64
	images map[int]region
	nextID int
}

func newState() state {
	return state{fg: 15, bg: 0, images: make(map[int]region)}
}

func (s *state) setColor(fg, bg int) error {
	if fg != Keep {
		if fg < 0 || fg > 255 {
			return basicerr.Runtime(basicerr.IllegalFunctionCall, "color %d", fg)
		}
		s.fg = fg
	}
	if bg != Keep {
		if bg < 0 || bg > 255 {
			return basicerr.Runtime(basicerr.IllegalFunctionCall, "color %d", bg)
		}
		s.bg = bg
	}
	return nil
}

func (s *state) setScreen(mode int) error {
	if mode < 0 || mode > 13 {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "SCREEN %d", mode)
	}
	s.mode = mode
	return nil
}

// resolve fills in missing coordinates and colors.
func (s *state) resolve(x, y float64, color int) (float64, float64, int) {
	if math.IsNaN(x) {
		x = s.lastX
	}
	if math.IsNaN(y) {
		y = s.lastY
	}
	if color == Keep {
		color = s.fg
	}
	return x, y, color
}

func (s *state) storeImage(x1, y1, x2, y2 float64) int {
	s.nextID++
	s.images[s.nextID] = region{w: math.Abs(x2-x1) + 1, h: math.Abs(y2-y1) + 1}
	return s.nextID
}

func (s *state) image(handle int) (region, error) {
	r, ok := s.images[handle]
	if !ok {
		return region{}, basicerr.Runtime(basicerr.IllegalFunctionCall, "no image stored in array (%d)", handle)
	}
	return r, nil
}

// NullCanvas accepts every statement and draws nothing.
type NullCanvas struct {
	state
}

// NewNullCanvas returns a canvas that only tracks state.
func NewNullCanvas() *NullCanvas {
	return &NullCanvas{state: newState()}
}

func (c *NullCanvas) Cls() error {
	gfxDebugLog("CLS")
	return nil
}

func (c *NullCanvas) Screen(mode int) error { return c.setScreen(mode) }

func (c *NullCanvas) Color(fg, bg int) error { return c.setColor(fg, bg) }

func (c *NullCanvas) Pset(x, y float64, color int, preset bool) error {
	c.lastX, c.lastY, _ = c.resolve(x, y, color)
	return nil
}

func (c *NullCanvas) Line(x1, y1, x2, y2 float64, color int, style string) error {
	x1, y1, _ = c.resolve(x1, y1, color)
	c.lastX, c.lastY = x2, y2
	gfxDebugLog("LINE (%g,%g)-(%g,%g) %s", x1, y1, x2, y2, style)
	return nil
}

func (c *NullCanvas) Circle(x, y, r float64, color int) error {
	if r < 0 {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "radius %g", r)
	}
	c.lastX, c.lastY = x, y
	return nil
}

func (c *NullCanvas) Paint(x, y float64, paint, border int) error {
	c.lastX, c.lastY = x, y
	return nil
}

func (c *NullCanvas) Draw(commands string) error {
	return runDraw(commands, &c.state, func(x1, y1, x2, y2 float64, color int) {})
}

func (c *NullCanvas) GetImage(x1, y1, x2, y2 float64) (int, error) {
	return c.storeImage(x1, y1, x2, y2), nil
}

func (c *NullCanvas) PutImage(x, y float64, handle int, action string) error {
	_, err := c.image(handle)
	return err
}

func (c *NullCanvas) Font(n int) error {
	c.font = n
	return nil
}

func (c *NullCanvas) Close() error { return nil }
