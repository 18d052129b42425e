package vm

import (
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/files"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

const redoFromStart = "?Redo from start\n"

func (vm *VM) file(id symtab.ID) (*files.File, error) {
	n, err := vm.smallInt(id)
	if err != nil {
		return nil, err
	}
	return vm.svc.Files.Get(n)
}

// printer returns the console printer, or the printer of file #id.
func (vm *VM) printer(id symtab.ID) (*files.Printer, error) {
	if id == symtab.NullID {
		return vm.svc.Console.Printer, nil
	}
	f, err := vm.file(id)
	if err != nil {
		return nil, err
	}
	return f.Printer()
}

func ioErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*basicerr.BASICError); ok {
		return err
	}
	return basicerr.RuntimeWrap(basicerr.IOError, err)
}

func (vm *VM) handlePrint(in *ir.Instruction) error {
	p, err := vm.printer(in.Op1)
	if err != nil {
		return err
	}
	x, err := vm.cell(in.Op2)
	if err != nil {
		return err
	}
	return ioErr(p.Print(value.PrintText(x)))
}

func (vm *VM) handlePrintComma(in *ir.Instruction) error {
	p, err := vm.printer(in.Op1)
	if err != nil {
		return err
	}
	return ioErr(p.Comma())
}

func (vm *VM) handlePrintTab(in *ir.Instruction) error {
	p, err := vm.printer(in.Op1)
	if err != nil {
		return err
	}
	n, err := vm.smallInt(in.Op2)
	if err != nil {
		return err
	}
	return ioErr(p.Tab(n))
}

func (vm *VM) handlePrintSpc(in *ir.Instruction) error {
	p, err := vm.printer(in.Op1)
	if err != nil {
		return err
	}
	n, err := vm.smallInt(in.Op2)
	if err != nil {
		return err
	}
	return ioErr(p.Spc(n))
}

func (vm *VM) handlePrintNewline(in *ir.Instruction) error {
	p, err := vm.printer(in.Op1)
	if err != nil {
		return err
	}
	return ioErr(p.Newline())
}

func (vm *VM) handleWrite(in *ir.Instruction) error {
	p, err := vm.printer(in.Op1)
	if err != nil {
		return err
	}
	x, err := vm.cell(in.Op2)
	if err != nil {
		return err
	}
	return ioErr(p.Print(value.WriteText(x)))
}

func (vm *VM) handleWriteSep(in *ir.Instruction) error {
	p, err := vm.printer(in.Op1)
	if err != nil {
		return err
	}
	return ioErr(p.Print(","))
}

// inputTargets returns the types of the INPUT_VAR targets following pc.
func (vm *VM) inputTargets() ([]value.DataType, error) {
	var types []value.DataType
	for i := vm.pc + 1; i < vm.prog.Len(); i++ {
		in := vm.prog.At(i)
		switch in.Op {
		case ir.OP_INPUT_END:
			return types, nil
		case ir.OP_INPUT_VAR:
			t, err := vm.st.TypeOf(in.Result)
			if err != nil {
				return nil, err
			}
			types = append(types, t)
		}
	}
	return nil, basicerr.Internal("INPUT at %d has no end", vm.pc)
}

// acceptable reports whether a console INPUT reply fits the targets: the
// field count must match and numeric targets need numeric text.
func acceptable(fields []string, types []value.DataType) bool {
	if len(fields) != len(types) {
		return false
	}
	for i, t := range types {
		if !t.IsNumeric() || strings.TrimSpace(fields[i]) == "" {
			continue
		}
		f := strings.TrimSpace(fields[i])
		f = strings.TrimPrefix(strings.TrimPrefix(f, "-"), "+")
		if _, err := value.ParseLiteral(f); err != nil {
			return false
		}
	}
	return true
}

// handleInputBegin reads and validates the console reply up front, asking
// again until every target can take its field. File input is read per
// variable instead.
func (vm *VM) handleInputBegin(in *ir.Instruction) error {
	vm.input = inputState{}
	if in.Op1 != symtab.NullID {
		_, err := vm.file(in.Op1)
		return err
	}
	prompt := "? "
	if in.Op2 != symtab.NullID {
		var err error
		if prompt, err = vm.text(in.Op2); err != nil {
			return err
		}
	}
	types, err := vm.inputTargets()
	if err != nil {
		return err
	}
	for {
		line, err := vm.svc.Console.ReadLine(prompt)
		if err != nil {
			return err
		}
		fields := files.SplitFields(line)
		if acceptable(fields, types) {
			vm.input.fields = fields
			return nil
		}
		vmDebugLog("input %q rejected for %d targets", line, len(types))
		if err := ioErr(vm.svc.Console.Print(redoFromStart)); err != nil {
			return err
		}
	}
}

// storeField converts text into target the way INPUT does: numeric targets
// take VAL-like parsing and an empty field is zero.
func storeField(target *value.Value, text string) error {
	if target.Type() == value.STRING {
		return target.SetString(text)
	}
	return target.Assign(value.Val(text))
}

func (vm *VM) handleInputVar(in *ir.Instruction) error {
	target, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	if in.Op1 != symtab.NullID {
		f, err := vm.file(in.Op1)
		if err != nil {
			return err
		}
		text, err := f.ReadField()
		if err != nil {
			return err
		}
		return storeField(target, text)
	}
	if vm.input.pos >= len(vm.input.fields) {
		return basicerr.Internal("INPUT has more targets than fields")
	}
	text := vm.input.fields[vm.input.pos]
	vm.input.pos++
	return storeField(target, text)
}

func (vm *VM) handleInputEnd(in *ir.Instruction) error {
	vm.input = inputState{}
	return nil
}

func (vm *VM) handleLineInput(in *ir.Instruction) error {
	target, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	var line string
	if in.Op1 != symtab.NullID {
		f, err := vm.file(in.Op1)
		if err != nil {
			return err
		}
		if line, err = f.ReadLine(); err != nil {
			return err
		}
	} else {
		prompt := ""
		if in.Op2 != symtab.NullID {
			if prompt, err = vm.text(in.Op2); err != nil {
				return err
			}
		}
		if line, err = vm.svc.Console.ReadLine(prompt); err != nil {
			return err
		}
	}
	return target.SetString(line)
}

func (vm *VM) handleInkey(in *ir.Instruction) error {
	if vm.keys == "" {
		vm.keys = vm.svc.Console.InKey()
	}
	var k string
	if vm.keys != "" {
		k, vm.keys = vm.keys[:1], vm.keys[1:]
	}
	return vm.setString(in, k)
}

// handleInputFn implements INPUT$(n[, #f]). Console input is taken from
// whole lines, the line end counting as a carriage return.
func (vm *VM) handleInputFn(in *ir.Instruction) error {
	n, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	if n < 1 || n > 255 {
		return illegal("INPUT$(%d)", n)
	}
	if in.Op2 != symtab.NullID {
		f, err := vm.file(in.Op2)
		if err != nil {
			return err
		}
		s, err := f.ReadBytes(n)
		if err != nil {
			return err
		}
		return vm.setString(in, s)
	}
	for len(vm.keys) < n {
		line, err := vm.svc.Console.ReadLine("")
		if err != nil {
			return err
		}
		vm.keys += line + "\r"
	}
	s := vm.keys[:n]
	vm.keys = vm.keys[n:]
	return vm.setString(in, s)
}

func (vm *VM) handleEOF(in *ir.Instruction) error {
	f, err := vm.file(in.Op1)
	if err != nil {
		return err
	}
	return vm.setInt(in, boolean(f.EOF()))
}

func (vm *VM) handleLoc(in *ir.Instruction) error {
	f, err := vm.file(in.Op1)
	if err != nil {
		return err
	}
	return vm.setInt(in, int64(f.Loc()))
}

func (vm *VM) handleLof(in *ir.Instruction) error {
	f, err := vm.file(in.Op1)
	if err != nil {
		return err
	}
	return vm.setInt(in, f.Lof())
}

func (vm *VM) handleOpenMode(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	mode, err := files.ParseMode(s)
	if err != nil {
		return err
	}
	recLen, given, err := vm.optionalInt(in.Op2, 0)
	if err != nil {
		return err
	}
	if given && (recLen < 1 || recLen > 32767) {
		return illegal("record length %d", recLen)
	}
	vm.open = openState{mode: mode, recLen: recLen}
	return nil
}

func (vm *VM) handleOpen(in *ir.Instruction) error {
	n, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	name, err := vm.text(in.Op2)
	if err != nil {
		return err
	}
	if vm.open.mode == 0 {
		return basicerr.Internal("OPEN without mode")
	}
	err = vm.svc.Files.Open(n, strings.TrimSpace(name), vm.open.mode, vm.open.recLen)
	vm.open = openState{}
	return err
}

func (vm *VM) handleClose(in *ir.Instruction) error {
	n, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	if vm.field != nil && vm.field.Number == n {
		vm.field = nil
	}
	return vm.svc.Files.Close(n)
}

func (vm *VM) handleCloseAll(in *ir.Instruction) error {
	vm.field = nil
	return vm.svc.Files.CloseAll()
}

func (vm *VM) handleFieldBegin(in *ir.Instruction) error {
	f, err := vm.file(in.Op1)
	if err != nil {
		return err
	}
	if err := f.BeginField(); err != nil {
		return err
	}
	vm.field = f
	return nil
}

func (vm *VM) handleField(in *ir.Instruction) error {
	if vm.field == nil {
		return basicerr.Internal("FIELD without file")
	}
	width, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	target, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	return vm.field.Field(width, target)
}

func (vm *VM) handleRecord(in *ir.Instruction) error {
	f, err := vm.file(in.Op1)
	if err != nil {
		return err
	}
	rec, given, err := vm.optionalInt(in.Op2, 0)
	if err != nil {
		return err
	}
	if in.Op == ir.OP_GET_RECORD {
		return f.GetRecord(rec, given)
	}
	return f.PutRecord(rec, given)
}

func (vm *VM) handleJustify(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	target, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	if in.Op == ir.OP_LSET {
		return target.Lset(s)
	}
	return target.Rset(s)
}

// handleRead assigns the next DATA item. Unquoted items read into a numeric
// target must be numeric literals, optionally signed.
func (vm *VM) handleRead(in *ir.Instruction) error {
	if vm.dataPos >= len(vm.data) {
		return basicerr.Runtime(basicerr.OutOfData, "")
	}
	item := vm.data[vm.dataPos]
	vm.dataPos++
	target, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	if target.Type() == value.STRING {
		return target.SetString(item.Text)
	}
	if item.Quoted {
		return basicerr.Runtime(basicerr.TypeMismatch, "DATA %q is a string", item.Text)
	}
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return target.SetInt64(0)
	}
	negative := false
	switch text[0] {
	case '-':
		negative = true
		text = text[1:]
	case '+':
		text = text[1:]
	}
	v, err := value.ParseLiteral(text)
	if err != nil {
		return basicerr.Runtime(basicerr.TypeMismatch, "DATA %q is not a number", item.Text)
	}
	if negative {
		if v.Type().IsInteger() {
			n, _ := v.Int64()
			v = value.NewInt64(-n)
		} else {
			f, _ := v.Float64()
			v = value.NewDouble(-f)
		}
	}
	return target.Assign(v)
}

// handleRestore rewinds DATA to the start, or to the first item at or after
// the given line.
func (vm *VM) handleRestore(in *ir.Instruction) error {
	if in.Op1 == symtab.NullID {
		vm.dataPos = 0
		return nil
	}
	n, err := vm.integer(in.Op1)
	if err != nil {
		return err
	}
	if _, ok := vm.lines[int(n)]; !ok {
		return basicerr.Runtime(basicerr.UndefinedLine, "%d", n)
	}
	vm.dataPos = len(vm.data)
	for i, item := range vm.data {
		if item.Line >= int(n) {
			vm.dataPos = i
			break
		}
	}
	return nil
}
