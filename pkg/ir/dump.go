package ir

import (
	"fmt"
	"io"

	"github.com/antibyte/retrobasic/pkg/symtab"
)

// Dump writes one line per instruction: index, line number, opcode and the
// three operands. The format is meant for people, not for tools.
func (p *Program) Dump(w io.Writer) error {
	for i, in := range p.instructions {
		_, err := fmt.Fprintf(w, "%5d  %5d  %-18s %-12s %-12s %-12s\n",
			i, in.Loc.Line, in.Op,
			p.operandName(in.Op1), p.operandName(in.Op2), p.operandName(in.Result))
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) operandName(id symtab.ID) string {
	if id == symtab.NullID {
		return "-"
	}
	if p.Symbols == nil {
		return fmt.Sprintf("#%d", id)
	}
	e, err := p.Symbols.Get(id)
	if err != nil {
		// entries local to a function body are only reachable during a call
		return fmt.Sprintf("#%d", id)
	}
	return e.String()
}
