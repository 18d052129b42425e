package lower

import (
	"errors"
	"testing"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/parser"
	"github.com/antibyte/retrobasic/pkg/source"
	"github.com/antibyte/retrobasic/pkg/symtab"
)

func compile(text string) (*ir.Program, error) {
	listing, err := source.ReadString(text, source.DuplicateError)
	if err != nil {
		return nil, err
	}
	prog, err := parser.Parse(listing.Lines())
	if err != nil {
		return nil, err
	}
	return Lower(prog)
}

func mustCompile(t *testing.T, text string) *ir.Program {
	t.Helper()
	p, err := compile(text)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

func countOps(p *ir.Program) map[ir.OpCode]int {
	counts := make(map[ir.OpCode]int)
	for i := 0; i < p.Len(); i++ {
		counts[p.At(i).Op]++
	}
	return counts
}

func TestEveryJumpHasOneLabel(t *testing.T) {
	p := mustCompile(t, `10 DEF FNA(X) = X * 2
20 FOR I = 1 TO 3
30 IF I = 2 THEN PRINT "two" ELSE PRINT FNA(I)
40 NEXT I
50 WHILE J < 3: J = J + 1: WEND
60 ON J GOSUB 100, 200
70 END
100 RETURN
200 RETURN
`)
	placed := make(map[symtab.ID]int)
	for i := 0; i < p.Len(); i++ {
		if in := p.At(i); in.Op == ir.OP_LABEL {
			placed[in.Op1]++
		}
	}
	for i := 0; i < p.Len(); i++ {
		in := p.At(i)
		var label symtab.ID
		switch {
		case in.Op.IsJump():
			label = in.Op1
		case in.Op == ir.OP_PUSH_RUNTIME_SCOPE:
			label = in.Op2
		default:
			continue
		}
		e, err := p.Symbols.Get(label)
		if err != nil {
			t.Fatalf("instruction %d: %v", i, err)
		}
		if !e.IsLabel() {
			t.Errorf("instruction %d %s jumps to %s", i, in.Op, e)
		}
		if placed[label] != 1 {
			t.Errorf("instruction %d: label %s placed %d times", i, e, placed[label])
		}
	}
}

func TestIfShape(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		labels int
		jumps  int
	}{
		{"if then", "10 IF X THEN PRINT 1\n", 2, 2},
		{"if then else", "10 IF X THEN PRINT 1 ELSE PRINT 2\n", 3, 2},
		{"nested", "10 IF X THEN IF Y THEN PRINT 1 ELSE PRINT 2 ELSE PRINT 3\n", 6, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := countOps(mustCompile(t, tt.text))
			if counts[ir.OP_LABEL] != tt.labels {
				t.Errorf("LABEL count = %d, want %d", counts[ir.OP_LABEL], tt.labels)
			}
			if counts[ir.OP_GOTO_LABEL] != tt.jumps {
				t.Errorf("GOTO_LABEL count = %d, want %d", counts[ir.OP_GOTO_LABEL], tt.jumps)
			}
		})
	}
}

func TestForShape(t *testing.T) {
	counts := countOps(mustCompile(t, "10 FOR I = 1 TO 3: NEXT\n"))
	if counts[ir.OP_LABEL] != 3 {
		t.Errorf("LABEL count = %d, want 3", counts[ir.OP_LABEL])
	}
	if counts[ir.OP_GOTO_LABEL] != 2 || counts[ir.OP_GOTO_LABEL_IF] != 1 {
		t.Errorf("jumps = %d unconditional, %d conditional", counts[ir.OP_GOTO_LABEL], counts[ir.OP_GOTO_LABEL_IF])
	}
	if counts[ir.OP_ADD] != 1 {
		t.Errorf("ADD count = %d, want 1", counts[ir.OP_ADD])
	}
}

func TestLinesStartWithMarker(t *testing.T) {
	p := mustCompile(t, "10 REM nothing\n20 DATA 1, \"A\"\n30 PRINT 1\n")
	var lines []int
	for i := 0; i < p.Len(); i++ {
		if in := p.At(i); in.Op == ir.OP_NOP {
			lines = append(lines, in.Loc.Line)
		}
	}
	if len(lines) != 3 || lines[0] != 10 || lines[1] != 20 || lines[2] != 30 {
		t.Errorf("line markers = %v", lines)
	}
	data := p.Data()
	if len(data) != 2 || data[0].Text != "1" || !data[1].Quoted || data[1].Line != 20 {
		t.Errorf("data = %+v", data)
	}
}

func TestParameterShadowsGlobal(t *testing.T) {
	p := mustCompile(t, "10 DEF FNA(X) = X * 2\n20 X = 5: Y = FNA(X)\n")
	st := p.Symbols
	global, ok := st.Lookup("X!")
	if !ok {
		t.Fatal("global X not bound")
	}
	fn, ok := st.Lookup("FNA!")
	if !ok {
		t.Fatal("FNA not bound")
	}
	e, err := st.Get(fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Params) != 1 || e.Params[0] == global {
		t.Errorf("parameter ids %v must differ from global X %d", e.Params, global)
	}
	if countOps(p)[ir.OP_PUSH_RUNTIME_SCOPE] != 1 {
		t.Error("call must push a runtime scope")
	}
}

func TestDefTypeDefaults(t *testing.T) {
	p := mustCompile(t, "10 DEFINT I-K: DEFSTR S\n20 I = 1: S = \"x\": A = 2\n")
	for _, key := range []string{"I%", "S$", "A!"} {
		if _, ok := p.Symbols.Lookup(key); !ok {
			t.Errorf("%s not bound", key)
		}
	}
}

func TestOptionalArgumentStaged(t *testing.T) {
	p := mustCompile(t, "10 A$ = \"HELLO\": B$ = MID$(A$, 2)\n")
	for i := 1; i < p.Len(); i++ {
		if p.At(i).Op != ir.OP_MID {
			continue
		}
		prev := p.At(i - 1)
		if prev.Op != ir.OP_ARG || prev.Op1 != symtab.NullID {
			t.Errorf("MID$ preceded by %s %d, want ARG NULL", prev.Op, prev.Op1)
		}
		return
	}
	t.Error("no MID$ instruction emitted")
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		text string
		code basicerr.Code
	}{
		{`10 A$ = 1`, basicerr.TypeMismatch},
		{`10 X = "A" + 1`, basicerr.TypeMismatch},
		{`10 X = LEN(5)`, basicerr.TypeMismatch},
		{`10 LINE INPUT A`, basicerr.TypeMismatch},
		{`10 IF "A" THEN 10`, basicerr.TypeMismatch},
		{`10 NEXT`, basicerr.NextWithoutFor},
		{`10 FOR I = 1 TO 2: FOR J = 1 TO 2: NEXT I`, basicerr.NextWithoutFor},
		{`10 FOR I = 1 TO 2`, basicerr.ForWithoutNext},
		{`10 WHILE 1`, basicerr.WhileWithoutWend},
		{`10 WEND`, basicerr.WendWithoutWhile},
		{`10 X = FNA(1)`, basicerr.UndefinedFunction},
		{`10 DEF FNA(X) = X: Y = FNA(1, 2)`, basicerr.InsufficientUDFArgs},
		{`10 DEF FNA(X) = X: DEF FNA(Y) = Y`, basicerr.DuplicateDefinition},
		{`10 DEF FNA$(X) = X`, basicerr.TypeMismatch},
		{`10 FNA = 1`, basicerr.AssignmentToFunction},
		{`10 DIM FNA(3)`, basicerr.ReservedPrefix},
		{`10 X = 1: X(1) = 2`, basicerr.IndexingScalar},
		{`10 DIM A(3): A = 1`, basicerr.ArrayWithoutIndex},
		{`10 FOR A$ = 1 TO 2: NEXT`, basicerr.InvalidForVariable},
		{`10 SWAP A%, B!`, basicerr.TypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := compile(tt.text + "\n")
			if !basicerr.Is(err, tt.code) {
				t.Fatalf("got %v, want %s", err, tt.code)
			}
			var be *basicerr.BASICError
			if !errors.As(err, &be) {
				t.Fatalf("%T is not a BASICError", err)
			}
			if be.Category != basicerr.CategorySemantic || be.LineNumber != 10 {
				t.Errorf("category %s line %d", be.Category, be.LineNumber)
			}
		})
	}
}
