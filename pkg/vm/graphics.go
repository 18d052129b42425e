package vm

import (
	"math"

	"github.com/antibyte/retrobasic/pkg/graphics"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/symtab"
)

// coord reads a staged coordinate; a left-out one is NaN.
func (vm *VM) coord(id symtab.ID) (float64, error) {
	if id == symtab.NullID {
		return math.NaN(), nil
	}
	return vm.number(id)
}

func (vm *VM) coords(ids ...symtab.ID) ([]float64, error) {
	out := make([]float64, len(ids))
	for i, id := range ids {
		f, err := vm.coord(id)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// colorArg reads a staged color; a left-out one keeps the current color.
func (vm *VM) colorArg(id symtab.ID) (int, error) {
	n, _, err := vm.optionalInt(id, graphics.Keep)
	return n, err
}

func (vm *VM) handleCls(in *ir.Instruction) error {
	return vm.svc.Canvas.Cls()
}

func (vm *VM) handleScreen(in *ir.Instruction) error {
	mode, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Screen(mode)
}

func (vm *VM) handleColor(in *ir.Instruction) error {
	fg, err := vm.colorArg(in.Op1)
	if err != nil {
		return err
	}
	bg, err := vm.colorArg(in.Op2)
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Color(fg, bg)
}

func (vm *VM) handlePset(in *ir.Instruction) error {
	args, err := vm.takeArgs(3)
	if err != nil {
		return err
	}
	xy, err := vm.coords(args[0], args[1])
	if err != nil {
		return err
	}
	color, err := vm.colorArg(args[2])
	if err != nil {
		return err
	}
	preset, err := vm.integer(in.Op1)
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Pset(xy[0], xy[1], color, preset != 0)
}

func (vm *VM) handleLine(in *ir.Instruction) error {
	args, err := vm.takeArgs(5)
	if err != nil {
		return err
	}
	c, err := vm.coords(args[:4]...)
	if err != nil {
		return err
	}
	color, err := vm.colorArg(args[4])
	if err != nil {
		return err
	}
	style, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Line(c[0], c[1], c[2], c[3], color, style)
}

func (vm *VM) handleCircle(in *ir.Instruction) error {
	args, err := vm.takeArgs(4)
	if err != nil {
		return err
	}
	c, err := vm.coords(args[:3]...)
	if err != nil {
		return err
	}
	color, err := vm.colorArg(args[3])
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Circle(c[0], c[1], c[2], color)
}

func (vm *VM) handlePaint(in *ir.Instruction) error {
	args, err := vm.takeArgs(4)
	if err != nil {
		return err
	}
	c, err := vm.coords(args[0], args[1])
	if err != nil {
		return err
	}
	paint, err := vm.colorArg(args[2])
	if err != nil {
		return err
	}
	border, err := vm.colorArg(args[3])
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Paint(c[0], c[1], paint, border)
}

func (vm *VM) handleDraw(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Draw(s)
}

func (vm *VM) handleFont(in *ir.Instruction) error {
	n, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	return vm.svc.Canvas.Font(n)
}

// handleGetImage stores the canvas handle of the captured region in the
// first element of the array, dimensioning it when needed.
func (vm *VM) handleGetImage(in *ir.Instruction) error {
	args, err := vm.takeArgs(4)
	if err != nil {
		return err
	}
	c, err := vm.coords(args...)
	if err != nil {
		return err
	}
	arr, err := vm.array(in.Op1)
	if err != nil {
		return err
	}
	if err := arr.Ensure(1); err != nil {
		return err
	}
	handle, err := vm.svc.Canvas.GetImage(c[0], c[1], c[2], c[3])
	if err != nil {
		return err
	}
	return arr.Cell(0).SetInt64(int64(handle))
}

func (vm *VM) handlePutImage(in *ir.Instruction) error {
	args, err := vm.takeArgs(2)
	if err != nil {
		return err
	}
	c, err := vm.coords(args...)
	if err != nil {
		return err
	}
	arr, err := vm.array(in.Op1)
	if err != nil {
		return err
	}
	if !arr.Allocated() || arr.Len() == 0 {
		return illegal("PUT of an empty image array")
	}
	handle, err := arr.Cell(0).Int64()
	if err != nil {
		return err
	}
	action := "XOR"
	if in.Op2 != symtab.NullID {
		if action, err = vm.text(in.Op2); err != nil {
			return err
		}
	}
	return vm.svc.Canvas.PutImage(c[0], c[1], int(handle), action)
}

// sound

func (vm *VM) handleBeep(in *ir.Instruction) error {
	return vm.svc.Sound.Beep()
}

func (vm *VM) handleLoadWav(in *ir.Instruction) error {
	name, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	id, err := vm.smallInt(in.Op2)
	if err != nil {
		return err
	}
	return vm.svc.Sound.LoadWav(name, id)
}

func (vm *VM) handleWav(in *ir.Instruction) error {
	id, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	switch in.Op {
	case ir.OP_PLAYWAV:
		return vm.svc.Sound.Play(id)
	case ir.OP_LOOPWAV:
		return vm.svc.Sound.Loop(id)
	}
	return vm.svc.Sound.Stop(id)
}
