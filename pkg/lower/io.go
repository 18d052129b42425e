package lower

import (
	"github.com/antibyte/retrobasic/pkg/ast"
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

func (l *Lowerer) lowerPrint(s *ast.Print) error {
	file, err := l.lowerOptional(s.File)
	if err != nil {
		return err
	}
	newline := true
	for _, item := range s.Items {
		newline = true
		switch item.Kind {
		case ast.PrintExpr:
			x, err := l.lowerExpr(item.X)
			if err != nil {
				return err
			}
			l.emit(ir.OP_PRINT, file, x, symtab.NullID)
		case ast.PrintComma:
			l.emit(ir.OP_PRINT_COMMA, file, symtab.NullID, symtab.NullID)
			newline = false
		case ast.PrintSemicolon:
			newline = false
		case ast.PrintTab, ast.PrintSpc:
			x, err := l.lowerNumeric(item.X)
			if err != nil {
				return err
			}
			op := ir.OP_PRINT_TAB
			if item.Kind == ast.PrintSpc {
				op = ir.OP_PRINT_SPC
			}
			l.emit(op, file, x, symtab.NullID)
		}
	}
	if newline {
		l.emit(ir.OP_PRINT_NEWLINE, file, symtab.NullID, symtab.NullID)
	}
	return nil
}

func (l *Lowerer) lowerWrite(s *ast.Write) error {
	file, err := l.lowerOptional(s.File)
	if err != nil {
		return err
	}
	for i, x := range s.Exprs {
		id, err := l.lowerExpr(x)
		if err != nil {
			return err
		}
		if i > 0 {
			l.emit(ir.OP_WRITE_SEP, file, symtab.NullID, symtab.NullID)
		}
		l.emit(ir.OP_WRITE, file, id, symtab.NullID)
	}
	l.emit(ir.OP_PRINT_NEWLINE, file, symtab.NullID, symtab.NullID)
	return nil
}

// lowerInput emits INPUT_BEGIN, one INPUT_VAR per target and INPUT_END. On a
// bad console reply the VM restarts at INPUT_BEGIN.
func (l *Lowerer) lowerInput(s *ast.Input) error {
	file, err := l.lowerOptional(s.File)
	if err != nil {
		return err
	}
	prompt := symtab.NullID
	if s.File == nil {
		prompt = l.literal(value.NewString(s.Prompt))
	}
	l.emit(ir.OP_INPUT_BEGIN, file, prompt, symtab.NullID)
	for _, v := range s.Vars {
		target, err := l.lowerTarget(v)
		if err != nil {
			return err
		}
		l.emit(ir.OP_INPUT_VAR, file, symtab.NullID, target)
	}
	l.emit(ir.OP_INPUT_END, file, symtab.NullID, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerLineInput(s *ast.LineInput) error {
	file, err := l.lowerOptional(s.File)
	if err != nil {
		return err
	}
	prompt := symtab.NullID
	if s.File == nil {
		prompt = l.literal(value.NewString(s.Prompt))
	}
	target, err := l.lowerTarget(s.Var)
	if err != nil {
		return err
	}
	if l.typeOf(target) != value.STRING {
		return l.semantic(s.Var, basicerr.TypeMismatch, "LINE INPUT needs a string variable")
	}
	l.emit(ir.OP_LINE_INPUT, file, prompt, target)
	return nil
}

func (l *Lowerer) lowerOpen(s *ast.Open) error {
	mode, err := l.lowerString(s.Mode)
	if err != nil {
		return err
	}
	recLen, err := l.lowerOptional(s.RecLen)
	if err != nil {
		return err
	}
	file, err := l.lowerNumeric(s.File)
	if err != nil {
		return err
	}
	name, err := l.lowerString(s.Name)
	if err != nil {
		return err
	}
	l.emit(ir.OP_OPEN_MODE, mode, recLen, symtab.NullID)
	l.emit(ir.OP_OPEN, file, name, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerClose(s *ast.Close) error {
	if len(s.Files) == 0 {
		l.emit(ir.OP_CLOSE_ALL, symtab.NullID, symtab.NullID, symtab.NullID)
		return nil
	}
	for _, x := range s.Files {
		file, err := l.lowerNumeric(x)
		if err != nil {
			return err
		}
		l.emit(ir.OP_CLOSE, file, symtab.NullID, symtab.NullID)
	}
	return nil
}

func (l *Lowerer) lowerField(s *ast.Field) error {
	file, err := l.lowerNumeric(s.File)
	if err != nil {
		return err
	}
	l.emit(ir.OP_FIELD_BEGIN, file, symtab.NullID, symtab.NullID)
	for _, f := range s.Fields {
		width, err := l.lowerNumeric(f.Width)
		if err != nil {
			return err
		}
		target, err := l.lowerTarget(f.Var)
		if err != nil {
			return err
		}
		if l.typeOf(target) != value.STRING {
			return l.semantic(f.Var, basicerr.TypeMismatch, "FIELD needs string variables")
		}
		l.emit(ir.OP_FIELD, width, symtab.NullID, target)
	}
	return nil
}

func (l *Lowerer) lowerRecord(op ir.OpCode, fileX, recordX ast.Expr) error {
	file, err := l.lowerNumeric(fileX)
	if err != nil {
		return err
	}
	record, err := l.lowerOptional(recordX)
	if err != nil {
		return err
	}
	l.emit(op, file, record, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerJustify(op ir.OpCode, targetRef *ast.VarRef, x ast.Expr) error {
	val, err := l.lowerString(x)
	if err != nil {
		return err
	}
	target, err := l.lowerTarget(targetRef)
	if err != nil {
		return err
	}
	if l.typeOf(target) != value.STRING {
		return l.semantic(targetRef, basicerr.TypeMismatch, "string variable expected")
	}
	l.emit(op, val, symtab.NullID, target)
	return nil
}

// lowerUnaryStatement lowers statements taking a single argument.
func (l *Lowerer) lowerUnaryStatement(op ir.OpCode, x ast.Expr, isString bool) error {
	var (
		id  symtab.ID
		err error
	)
	if isString {
		id, err = l.lowerString(x)
	} else {
		id, err = l.lowerNumeric(x)
	}
	if err != nil {
		return err
	}
	l.emit(op, id, symtab.NullID, symtab.NullID)
	return nil
}

// stage lowers optional numeric arguments and passes each with OP_ARG.
func (l *Lowerer) stage(xs ...ast.Expr) error {
	ids := make([]symtab.ID, len(xs))
	for i, x := range xs {
		id, err := l.lowerOptional(x)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	for _, id := range ids {
		l.emit(ir.OP_ARG, id, symtab.NullID, symtab.NullID)
	}
	return nil
}

func (l *Lowerer) lowerColor(s *ast.Color) error {
	fg, err := l.lowerOptional(s.Fg)
	if err != nil {
		return err
	}
	bg, err := l.lowerOptional(s.Bg)
	if err != nil {
		return err
	}
	l.emit(ir.OP_COLOR, fg, bg, symtab.NullID)
	return nil
}

func (l *Lowerer) flag(on bool) symtab.ID {
	if on {
		return l.literal(value.NewInt32(1))
	}
	return l.literal(value.NewInt32(0))
}

func (l *Lowerer) lowerPset(s *ast.Pset) error {
	if err := l.stage(s.X, s.Y, s.Color); err != nil {
		return err
	}
	l.emit(ir.OP_PSET, l.flag(s.Preset), symtab.NullID, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerLineDraw(s *ast.LineDraw) error {
	if err := l.stage(s.X1, s.Y1, s.X2, s.Y2, s.Color); err != nil {
		return err
	}
	l.emit(ir.OP_LINE, l.literal(value.NewString(s.Style)), symtab.NullID, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerCircle(s *ast.Circle) error {
	if err := l.stage(s.X, s.Y, s.R, s.Color); err != nil {
		return err
	}
	l.emit(ir.OP_CIRCLE, symtab.NullID, symtab.NullID, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerPaint(s *ast.Paint) error {
	if err := l.stage(s.X, s.Y, s.Paint, s.Border); err != nil {
		return err
	}
	l.emit(ir.OP_PAINT, symtab.NullID, symtab.NullID, symtab.NullID)
	return nil
}

func (l *Lowerer) imageArray(v *ast.VarRef) (symtab.ID, error) {
	arr, err := l.arrayVariable(v, l.st.GetDataTypeFor(v.Name, v.Suffix))
	if err != nil {
		return symtab.NullID, err
	}
	if l.typeOf(arr) == value.STRING {
		return symtab.NullID, l.semantic(v, basicerr.TypeMismatch, "image array must be numeric")
	}
	return arr, nil
}

func (l *Lowerer) lowerGetImage(s *ast.GetImage) error {
	if err := l.stage(s.X1, s.Y1, s.X2, s.Y2); err != nil {
		return err
	}
	arr, err := l.imageArray(s.Array)
	if err != nil {
		return err
	}
	l.emit(ir.OP_GET_IMAGE, arr, symtab.NullID, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerPutImage(s *ast.PutImage) error {
	if err := l.stage(s.X, s.Y); err != nil {
		return err
	}
	arr, err := l.imageArray(s.Array)
	if err != nil {
		return err
	}
	action := symtab.NullID
	if s.Action != "" {
		action = l.literal(value.NewString(s.Action))
	}
	l.emit(ir.OP_PUT_IMAGE, arr, action, symtab.NullID)
	return nil
}

func (l *Lowerer) lowerLoadWav(s *ast.LoadWav) error {
	name, err := l.lowerString(s.Name)
	if err != nil {
		return err
	}
	clip, err := l.lowerNumeric(s.Clip)
	if err != nil {
		return err
	}
	l.emit(ir.OP_LOADWAV, name, clip, symtab.NullID)
	return nil
}

var wavOps = map[string]ir.OpCode{
	"PLAYWAV": ir.OP_PLAYWAV,
	"STOPWAV": ir.OP_STOPWAV,
	"LOOPWAV": ir.OP_LOOPWAV,
}

func (l *Lowerer) lowerWavControl(s *ast.WavControl) error {
	op, ok := wavOps[s.Command]
	if !ok {
		return basicerr.Internal("unknown sound command %s", s.Command)
	}
	clip, err := l.lowerNumeric(s.Clip)
	if err != nil {
		return err
	}
	l.emit(op, clip, symtab.NullID, symtab.NullID)
	return nil
}
