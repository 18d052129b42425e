// Package ast is the syntax tree handed from the parser to the lowering pass.
// Every node carries the byte offsets of its text inside the source line.
package ast

import (
	"github.com/antibyte/retrobasic/pkg/value"
)

// Span is a half-open byte range inside Line.Text.
type Span struct {
	Start, Stop int
}

// Pos returns the span itself so embedding it satisfies Node.
func (s Span) Pos() Span { return s }

// Node is implemented by every tree node.
type Node interface {
	Pos() Span
}

// Program is a whole source file, lines in ascending order.
type Program struct {
	Lines []*Line
}

// Line is one numbered source line.
type Line struct {
	Number int
	Text   string // full line text, number included
	Stmts  []Stmt
}

// SourceOf returns the text covered by n.
func (l *Line) SourceOf(n Node) string {
	s := n.Pos()
	if s.Start < 0 || s.Stop > len(l.Text) || s.Start >= s.Stop {
		return l.Text
	}
	return l.Text[s.Start:s.Stop]
}

// Expressions

type Expr interface {
	Node
	exprNode()
}

type NumberLit struct {
	Span
	Text string
}

type StringLit struct {
	Span
	Value string
}

// VarRef names a variable. Indices is non-nil for array elements; an array
// named without parentheses (ERASE A) has Indices nil and Array set.
type VarRef struct {
	Span
	Name    string
	Suffix  byte // 0 when the name has no type character
	Indices []Expr
	Array   bool
}

// FnCall calls a user-defined function.
type FnCall struct {
	Span
	Name   string
	Suffix byte
	Args   []Expr
}

// BuiltinCall calls a built-in function. Name includes a trailing $ when the
// function returns a string.
type BuiltinCall struct {
	Span
	Name string
	Args []Expr
}

// Unary is "-x", "+x" or "NOT x".
type Unary struct {
	Span
	Op string
	X  Expr
}

// Binary operators: ^ * / \ MOD + - = <> < > <= >= AND OR XOR EQV IMP.
type Binary struct {
	Span
	Op   string
	L, R Expr
}

func (*NumberLit) exprNode()   {}
func (*StringLit) exprNode()   {}
func (*VarRef) exprNode()      {}
func (*FnCall) exprNode()      {}
func (*BuiltinCall) exprNode() {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}

// Statements

type Stmt interface {
	Node
	stmtNode()
}

// Let is an assignment, with or without the LET keyword.
type Let struct {
	Span
	Target *VarRef
	Value  Expr
}

// PrintItemKind distinguishes expressions from separators in a PRINT list.
type PrintItemKind uint8

const (
	PrintExpr PrintItemKind = iota
	PrintComma
	PrintSemicolon
	PrintTab
	PrintSpc
)

type PrintItem struct {
	Kind PrintItemKind
	X    Expr // PrintExpr, PrintTab, PrintSpc
}

// Print is PRINT [#f,] items. A trailing ; or , suppresses the newline.
type Print struct {
	Span
	File  Expr
	Items []PrintItem
}

type Write struct {
	Span
	File  Expr
	Exprs []Expr
}

// Input is INPUT [#f,] or INPUT ["prompt"{;|,}] vars. Prompt already holds the
// "? " that a ; separator adds.
type Input struct {
	Span
	File   Expr
	Prompt string
	Vars   []*VarRef
}

type LineInput struct {
	Span
	File   Expr
	Prompt string
	Var    *VarRef
}

// If holds both the THEN and ELSE branches. A bare line number after THEN or
// ELSE is turned into a Goto by the parser.
type If struct {
	Span
	Cond Expr
	Then []Stmt
	Else []Stmt
}

type Goto struct {
	Span
	Line int
}

type Gosub struct {
	Span
	Line int
}

// Return has Line 0 when no target line is given.
type Return struct {
	Span
	Line int
}

type OnGoto struct {
	Span
	X     Expr
	Lines []int
	Gosub bool
}

type For struct {
	Span
	Var      *VarRef
	From, To Expr
	Step     Expr // nil for STEP 1
}

// Next with no Vars closes the innermost FOR.
type Next struct {
	Span
	Vars []*VarRef
}

type While struct {
	Span
	Cond Expr
}

type Wend struct {
	Span
}

// End also represents STOP.
type End struct {
	Span
}

type Dim struct {
	Span
	Arrays []*VarRef
}

type Erase struct {
	Span
	Arrays []*VarRef
}

type DefFn struct {
	Span
	Name   string
	Suffix byte
	Params []*VarRef
	Body   Expr
}

type LetterRange struct {
	From, To byte
}

// DefType is DEFINT, DEFLNG, DEFSNG, DEFDBL or DEFSTR.
type DefType struct {
	Span
	Type   value.DataType
	Ranges []LetterRange
}

type DataConst struct {
	Text   string
	Quoted bool
}

type Data struct {
	Span
	Items []DataConst
}

type Read struct {
	Span
	Vars []*VarRef
}

// Restore has Line 0 to rewind to the first DATA.
type Restore struct {
	Span
	Line int
}

type Randomize struct {
	Span
	Seed  Expr
	Timer bool
}

type Swap struct {
	Span
	A, B *VarRef
}

// Open covers OPEN "O",#1,"f" and OPEN "f" FOR OUTPUT AS #1. Mode is a string
// expression (I, O, A, R, or the long names).
type Open struct {
	Span
	Mode   Expr
	File   Expr
	Name   Expr
	RecLen Expr
}

// Close with no Files closes everything.
type Close struct {
	Span
	Files []Expr
}

type FieldSpec struct {
	Width Expr
	Var   *VarRef
}

type Field struct {
	Span
	File   Expr
	Fields []FieldSpec
}

// GetRecord and PutRecord are the file forms of GET and PUT.
type GetRecord struct {
	Span
	File   Expr
	Record Expr
}

type PutRecord struct {
	Span
	File   Expr
	Record Expr
}

type Lset struct {
	Span
	Target *VarRef
	Value  Expr
}

type Rset struct {
	Span
	Target *VarRef
	Value  Expr
}

type Environ struct {
	Span
	X Expr
}

// Graphics statements

type Cls struct {
	Span
}

type Screen struct {
	Span
	Mode Expr
}

type Color struct {
	Span
	Fg, Bg Expr
}

type Pset struct {
	Span
	X, Y   Expr
	Color  Expr
	Preset bool
}

// LineDraw is LINE (x1,y1)-(x2,y2)[,color[,B|BF]].
type LineDraw struct {
	Span
	X1, Y1, X2, Y2 Expr
	Color          Expr
	Style          string
}

type Circle struct {
	Span
	X, Y, R Expr
	Color   Expr
}

type Paint struct {
	Span
	X, Y          Expr
	Paint, Border Expr
}

type Draw struct {
	Span
	Commands Expr
}

type GetImage struct {
	Span
	X1, Y1, X2, Y2 Expr
	Array          *VarRef
}

type PutImage struct {
	Span
	X, Y   Expr
	Array  *VarRef
	Action string
}

type Font struct {
	Span
	N Expr
}

// Sound statements

type Beep struct {
	Span
}

type LoadWav struct {
	Span
	Name Expr
	Clip Expr
}

// WavControl is PLAYWAV, STOPWAV or LOOPWAV.
type WavControl struct {
	Span
	Command string
	Clip    Expr
}

func (*Let) stmtNode()        {}
func (*Print) stmtNode()      {}
func (*Write) stmtNode()      {}
func (*Input) stmtNode()      {}
func (*LineInput) stmtNode()  {}
func (*If) stmtNode()         {}
func (*Goto) stmtNode()       {}
func (*Gosub) stmtNode()      {}
func (*Return) stmtNode()     {}
func (*OnGoto) stmtNode()     {}
func (*For) stmtNode()        {}
func (*Next) stmtNode()       {}
func (*While) stmtNode()      {}
func (*Wend) stmtNode()       {}
func (*End) stmtNode()        {}
func (*Dim) stmtNode()        {}
func (*Erase) stmtNode()      {}
func (*DefFn) stmtNode()      {}
func (*DefType) stmtNode()    {}
func (*Data) stmtNode()       {}
func (*Read) stmtNode()       {}
func (*Restore) stmtNode()    {}
func (*Randomize) stmtNode()  {}
func (*Swap) stmtNode()       {}
func (*Open) stmtNode()       {}
func (*Close) stmtNode()      {}
func (*Field) stmtNode()      {}
func (*GetRecord) stmtNode()  {}
func (*PutRecord) stmtNode()  {}
func (*Lset) stmtNode()       {}
func (*Rset) stmtNode()       {}
func (*Environ) stmtNode()    {}
func (*Cls) stmtNode()        {}
func (*Screen) stmtNode()     {}
func (*Color) stmtNode()      {}
func (*Pset) stmtNode()       {}
func (*LineDraw) stmtNode()   {}
func (*Circle) stmtNode()     {}
func (*Paint) stmtNode()      {}
func (*Draw) stmtNode()       {}
func (*GetImage) stmtNode()   {}
func (*PutImage) stmtNode()   {}
func (*Font) stmtNode()       {}
func (*Beep) stmtNode()       {}
func (*LoadWav) stmtNode()    {}
func (*WavControl) stmtNode() {}
