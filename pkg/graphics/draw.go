package graphics

import (
	"math"
	"strconv"
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// direction vectors of the DRAW letters
var drawMoves = map[byte][2]float64{
	'U': {0, -1},
	'D': {0, 1},
	'L': {-1, 0},
	'R': {1, 0},
	'E': {1, -1},
	'F': {1, 1},
	'G': {-1, 1},
	'H': {-1, -1},
}

type drawScanner struct {
	s   string
	pos int
}

func (d *drawScanner) skip() {
	for d.pos < len(d.s) && (d.s[d.pos] == ' ' || d.s[d.pos] == ';') {
		d.pos++
	}
}

// number reads an optionally signed integer; ok is false when none follows.
func (d *drawScanner) number() (n float64, signed, ok bool) {
	d.skip()
	start := d.pos
	if d.pos < len(d.s) && (d.s[d.pos] == '+' || d.s[d.pos] == '-') {
		signed = true
		d.pos++
	}
	for d.pos < len(d.s) && d.s[d.pos] >= '0' && d.s[d.pos] <= '9' {
		d.pos++
	}
	if d.pos == start || (signed && d.pos == start+1) {
		d.pos = start
		return 0, false, false
	}
	v, err := strconv.Atoi(d.s[start:d.pos])
	if err != nil {
		return 0, false, false
	}
	return float64(v), signed, true
}

// runDraw interprets the DRAW subset U D L R E F G H M B N C. Each stroke is
// passed to line; s.lastX/lastY follow the pen.
func runDraw(commands string, s *state, line func(x1, y1, x2, y2 float64, color int)) error {
	d := &drawScanner{s: strings.ToUpper(commands)}
	bad := func() error {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "DRAW %q at %d", commands, d.pos)
	}
	color := s.fg
	noDraw, noMove := false, false
	for {
		d.skip()
		if d.pos >= len(d.s) {
			return nil
		}
		cmd := d.s[d.pos]
		d.pos++
		x0, y0 := s.lastX, s.lastY
		var x1, y1 float64

		switch {
		case cmd == 'B':
			noDraw = true
			continue
		case cmd == 'N':
			noMove = true
			continue
		case cmd == 'C':
			n, _, ok := d.number()
			if !ok {
				return bad()
			}
			color = int(n)
			continue
		case cmd == 'M':
			x, signed, ok := d.number()
			if !ok {
				return bad()
			}
			d.skip()
			if d.pos >= len(d.s) || d.s[d.pos] != ',' {
				return bad()
			}
			d.pos++
			y, _, ok := d.number()
			if !ok {
				return bad()
			}
			if signed {
				x1, y1 = x0+x, y0+y
			} else {
				x1, y1 = x, y
			}
		default:
			v, ok := drawMoves[cmd]
			if !ok {
				return bad()
			}
			n, _, ok := d.number()
			if !ok {
				n = 1
			}
			x1, y1 = x0+v[0]*n, y0+v[1]*n
		}

		if !noDraw {
			line(x0, y0, math.Round(x1), math.Round(y1), color)
		}
		if !noMove {
			s.lastX, s.lastY = math.Round(x1), math.Round(y1)
		}
		noDraw, noMove = false, false
	}
}
