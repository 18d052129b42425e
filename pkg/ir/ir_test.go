package ir

import (
	"strings"
	"testing"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

func TestOpcodeNames(t *testing.T) {
	for op := OpCode(0); int(op) < Count; op++ {
		if op.String() == "UNKNOWN" {
			t.Errorf("opcode %d has no name", op)
		}
	}
	if OpCode(Count).String() != "UNKNOWN" {
		t.Error("out of range opcode must be UNKNOWN")
	}
}

func TestBuildPatchedForwardJump(t *testing.T) {
	st := symtab.New()
	b := NewBuilder()
	loc := Location{Line: 10, Text: "GOTO"}

	target := st.AddGotoTarget()
	jump := b.Emit(loc, OP_GOTO_LABEL, target, symtab.NullID, symtab.NullID)
	b.Emit(loc, OP_NOP, symtab.NullID, symtab.NullID, symtab.NullID)
	label := st.AddLabel()
	b.Emit(loc, OP_LABEL, label, symtab.NullID, symtab.NullID)
	b.PatchOp1(jump, label)

	p, err := b.Build(st)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Len() != 3 {
		t.Errorf("Len() = %d, want 3", p.Len())
	}
	if p.At(0).Op1 != label {
		t.Errorf("jump operand = %d, want %d", p.At(0).Op1, label)
	}
}

func TestBuildRejectsDanglingTargets(t *testing.T) {
	tests := []struct {
		name  string
		build func(st *symtab.Table, b *Builder)
	}{
		{
			name: "unpatched placeholder",
			build: func(st *symtab.Table, b *Builder) {
				b.Emit(Location{}, OP_GOTO_LABEL, st.AddGotoTarget(), symtab.NullID, symtab.NullID)
			},
		},
		{
			name: "label never placed",
			build: func(st *symtab.Table, b *Builder) {
				b.Emit(Location{}, OP_GOTO_LABEL_IF, st.AddLabel(), symtab.NullID, symtab.NullID)
			},
		},
		{
			name: "label placed twice",
			build: func(st *symtab.Table, b *Builder) {
				l := st.AddLabel()
				b.Emit(Location{}, OP_LABEL, l, symtab.NullID, symtab.NullID)
				b.Emit(Location{}, OP_LABEL, l, symtab.NullID, symtab.NullID)
			},
		},
		{
			name: "call return label missing",
			build: func(st *symtab.Table, b *Builder) {
				fn := st.AddVariableOrUDF(symtab.Variable{Name: "FNA", Type: value.FLOAT, Kind: symtab.UserDefinedFunction}, nil)
				b.Emit(Location{}, OP_PUSH_RUNTIME_SCOPE, fn, st.AddLabel(), symtab.NullID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := symtab.New()
			b := NewBuilder()
			tt.build(st, b)
			if _, err := b.Build(st); !basicerr.IsInternal(err) {
				t.Errorf("Build: got %v, want internal error", err)
			}
		})
	}
}

func TestDump(t *testing.T) {
	st := symtab.New()
	b := NewBuilder()
	x := st.AddVariableOrUDF(symtab.Variable{Name: "X", Type: value.INT32}, nil)
	one := st.AddTemp(value.INT32, value.NewInt32(1))
	b.Emit(Location{Line: 10}, OP_ADD, x, one, x)
	b.AddData(DataItem{Line: 20, Text: "HELLO", Quoted: true})

	p, err := b.Build(st)
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	if err := p.Dump(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{"ADD", "X%", "t1"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump %q lacks %q", out, want)
		}
	}
	if len(p.Data()) != 1 || p.Data()[0].Text != "HELLO" {
		t.Errorf("Data() = %v", p.Data())
	}
}
