package ir

import (
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/symtab"
)

// Location ties an instruction to the BASIC line and statement it came from.
type Location struct {
	Line int
	Text string
}

// Instruction is one three-address operation. Operands and result are
// symbol-table ids or symtab.NullID.
type Instruction struct {
	Loc    Location
	Op     OpCode
	Op1    symtab.ID
	Op2    symtab.ID
	Result symtab.ID
}

// DataItem is one constant of a DATA statement, kept as source text.
type DataItem struct {
	Line   int
	Text   string
	Quoted bool
}

// Builder collects instructions during lowering. Operands of emitted
// instructions may be patched until Build freezes the stream.
type Builder struct {
	instructions []Instruction
	data         []DataItem
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{instructions: make([]Instruction, 0, 256)}
}

// Emit appends an instruction and returns its index.
func (b *Builder) Emit(loc Location, op OpCode, op1, op2, result symtab.ID) int {
	b.instructions = append(b.instructions, Instruction{
		Loc:    loc,
		Op:     op,
		Op1:    op1,
		Op2:    op2,
		Result: result,
	})
	return len(b.instructions) - 1
}

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.instructions) }

// At returns a copy of instruction i.
func (b *Builder) At(i int) Instruction { return b.instructions[i] }

// Last returns the index of the most recent instruction, -1 when empty.
func (b *Builder) Last() int { return len(b.instructions) - 1 }

// PatchOp1 replaces op1 of instruction i.
func (b *Builder) PatchOp1(i int, id symtab.ID) { b.instructions[i].Op1 = id }

// PatchOp2 replaces op2 of instruction i.
func (b *Builder) PatchOp2(i int, id symtab.ID) { b.instructions[i].Op2 = id }

// AddData records a DATA constant.
func (b *Builder) AddData(item DataItem) { b.data = append(b.data, item) }

// Build verifies that every jump operand names a label that has exactly one
// LABEL instruction and freezes the stream into a Program.
func (b *Builder) Build(st *symtab.Table) (*Program, error) {
	defined := make(map[symtab.ID]int)
	for i, in := range b.instructions {
		if in.Op != OP_LABEL {
			continue
		}
		if prev, dup := defined[in.Op1]; dup {
			return nil, basicerr.Internal("label %d placed at %d and %d", in.Op1, prev, i)
		}
		defined[in.Op1] = i
	}

	check := func(i int, id symtab.ID) error {
		e, err := st.Get(id)
		if err != nil {
			return err
		}
		if !e.IsLabel() {
			return basicerr.Internal("instruction %d jumps to unpatched operand %s", i, e)
		}
		if _, ok := defined[id]; !ok {
			return basicerr.Internal("instruction %d jumps to label %s that is never placed", i, e)
		}
		return nil
	}
	for i, in := range b.instructions {
		if in.Op.IsJump() {
			if err := check(i, in.Op1); err != nil {
				return nil, err
			}
		}
		if in.Op.labelInOp2() {
			if err := check(i, in.Op2); err != nil {
				return nil, err
			}
		}
	}

	p := &Program{
		instructions: b.instructions,
		data:         b.data,
		Symbols:      st,
	}
	b.instructions = nil
	b.data = nil
	return p, nil
}

// Program is a frozen instruction stream together with the symbol table
// that owns its operands.
type Program struct {
	instructions []Instruction
	data         []DataItem
	Symbols      *symtab.Table
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.instructions) }

// At returns a copy of instruction i.
func (p *Program) At(i int) Instruction { return p.instructions[i] }

// Data returns the DATA constants in program order.
func (p *Program) Data() []DataItem { return p.data }
