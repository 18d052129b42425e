package symtab

import (
	"fmt"

	"github.com/antibyte/retrobasic/pkg/value"
)

// ID identifies a symbol-table entry. IDs are handed out by a monotonic
// counter and never reused within one program.
type ID int

// NullID marks an unused instruction operand.
const NullID ID = -1

// UDFPrefix starts the name of every user-defined function.
const UDFPrefix = "FN"

// VarKind distinguishes the three kinds of named variables.
type VarKind uint8

const (
	Scalar VarKind = iota
	Array
	UserDefinedFunction
)

func (k VarKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Array:
		return "array"
	default:
		return "function"
	}
}

// Variable is identified by its name together with its data type: A% and A$
// are different variables.
type Variable struct {
	Name string
	Type value.DataType
	Kind VarKind
}

// Key is the binding key of the variable inside a scope.
func (v Variable) Key() string {
	return v.Name + string(v.Type.Suffix())
}

func (v Variable) String() string {
	if v.Kind == Array {
		return v.Key() + "()"
	}
	return v.Key()
}

// EntryKind tags the storage held by an Entry.
type EntryKind uint8

const (
	EntryVariable EntryKind = iota
	EntryUDF
	EntryTemp
	EntryLabel
	EntryGotoTarget
	EntryArrayRef
)

// Entry is one slot of the symbol table.
type Entry struct {
	ID   ID
	Kind EntryKind

	Var    *Variable    // EntryVariable, EntryUDF
	Value  *value.Value // scalars, UDF results, temps, labels
	Array  *ArrayStore  // array variables
	Params []ID         // EntryUDF, in declaration order
	Ref    *ArrayRef    // EntryArrayRef
}

// Type returns the data type of the value the entry holds.
func (e *Entry) Type() value.DataType {
	switch {
	case e.Var != nil:
		return e.Var.Type
	case e.Ref != nil:
		return e.Ref.Type
	case e.Value != nil:
		return e.Value.Type()
	}
	return value.INT32
}

// IsArray reports whether the entry is an array variable.
func (e *Entry) IsArray() bool {
	return e.Kind == EntryVariable && e.Var.Kind == Array
}

// IsLabel reports whether the entry can be a jump target.
func (e *Entry) IsLabel() bool { return e.Kind == EntryLabel }

func (e *Entry) String() string {
	switch e.Kind {
	case EntryVariable, EntryUDF:
		return e.Var.String()
	case EntryTemp:
		return fmt.Sprintf("t%d", e.ID)
	case EntryLabel:
		return fmt.Sprintf("L%d", e.ID)
	case EntryGotoTarget:
		return fmt.Sprintf("?%d", e.ID)
	case EntryArrayRef:
		return fmt.Sprintf("%s[r%d]", e.Ref.Name, e.ID)
	}
	return fmt.Sprintf("#%d", e.ID)
}

// clone copies the entry with independent storage, used for runtime scopes.
func (e *Entry) clone() *Entry {
	c := *e
	if e.Value != nil {
		c.Value = e.Value.Clone()
	}
	if e.Array != nil {
		c.Array = e.Array.clone()
	}
	if e.Ref != nil {
		r := *e.Ref
		c.Ref = &r
	}
	if e.Params != nil {
		c.Params = append([]ID(nil), e.Params...)
	}
	return &c
}
