// Package symtab holds every storage cell of a lowered program: variables,
// user-defined functions, temporaries, labels and array references, organised
// in a tree of scopes addressed by index.
package symtab

import (
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/value"
)

// GlobalScope is the arena index of the root scope.
const GlobalScope = 0

type scopeKind uint8

const (
	scopeGlobal scopeKind = iota
	scopeDeclaration
	scopeRuntime
)

// Scope is a node of the scope tree.
type Scope struct {
	kind    scopeKind
	parent  int
	fn      ID // owning function, NullID for the global scope
	caller  int
	entries map[ID]*Entry
	names   map[string]ID
}

func newScope(kind scopeKind, parent int, fn ID) *Scope {
	return &Scope{
		kind:    kind,
		parent:  parent,
		fn:      fn,
		caller:  -1,
		entries: make(map[ID]*Entry),
		names:   make(map[string]ID),
	}
}

// Table is the symbol table of one program run.
type Table struct {
	nextID     ID
	scopes     []*Scope
	current    int
	declScopes map[ID]int
	runtime    int // number of runtime scopes on the stack
	defaults   [26]value.DataType
}

// New returns a table holding only the global scope. Untyped names default
// to FLOAT.
func New() *Table {
	t := &Table{
		scopes:     []*Scope{newScope(scopeGlobal, -1, NullID)},
		declScopes: make(map[ID]int),
	}
	for i := range t.defaults {
		t.defaults[i] = value.FLOAT
	}
	return t
}

func symtabDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaLowering, "[SYMTAB] "+format, args...)
}

func (t *Table) allocID() ID {
	id := t.nextID
	t.nextID++
	return id
}

func (t *Table) scope() *Scope { return t.scopes[t.current] }

func (t *Table) register(s *Scope, e *Entry) ID {
	e.ID = t.allocID()
	s.entries[e.ID] = e
	return e.ID
}

// SetDefaultDataType sets the type of untyped names starting with letter
// (DEFINT, DEFLNG, DEFSNG, DEFDBL, DEFSTR).
func (t *Table) SetDefaultDataType(letter byte, dt value.DataType) {
	letter = upper(letter)
	if letter >= 'A' && letter <= 'Z' {
		t.defaults[letter-'A'] = dt
	}
}

// GetDataTypeFor returns the type of a name: the suffix when present,
// otherwise the default for its first letter.
func (t *Table) GetDataTypeFor(name string, suffix byte) value.DataType {
	if dt, ok := value.FromSuffix(suffix); ok {
		return dt
	}
	if name == "" {
		return value.FLOAT
	}
	first := upper(name[0])
	if strings.HasPrefix(strings.ToUpper(name), UDFPrefix) && len(name) > len(UDFPrefix) {
		first = upper(name[len(UDFPrefix)])
	}
	if first < 'A' || first > 'Z' {
		return value.FLOAT
	}
	return t.defaults[first-'A']
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Lookup resolves a variable key from the current scope up to the root.
func (t *Table) Lookup(key string) (ID, bool) {
	for i := t.current; i >= 0; i = t.scopes[i].parent {
		if id, ok := t.scopes[i].names[key]; ok {
			return id, true
		}
	}
	return NullID, false
}

// AddVariableOrUDF returns the id bound to v in the current scope chain. When
// no binding exists a new entry is created in the current scope and init is
// called on it once.
func (t *Table) AddVariableOrUDF(v Variable, init func(*Entry)) ID {
	if id, ok := t.Lookup(v.Key()); ok {
		return id
	}
	return t.bind(t.scope(), v, init)
}

// AddParameter binds a function parameter in the current scope even when an
// enclosing scope already has a variable of that name.
func (t *Table) AddParameter(v Variable) ID {
	return t.bind(t.scope(), v, nil)
}

func (t *Table) bind(s *Scope, v Variable, init func(*Entry)) ID {
	vv := v
	e := &Entry{Kind: EntryVariable, Var: &vv}
	switch v.Kind {
	case Array:
		e.Array = newArrayStore(v.Type)
	case UserDefinedFunction:
		e.Kind = EntryUDF
		e.Value = value.New(v.Type)
	default:
		e.Value = value.New(v.Type)
	}
	id := t.register(s, e)
	s.names[v.Key()] = id
	if init != nil {
		init(e)
	}
	symtabDebugLog("bound %s as %d in scope %d", v, id, t.current)
	return id
}

// AddTemp allocates an anonymous cell of type dt in the current scope. When
// init is non-nil the temp starts out with a copy of it.
func (t *Table) AddTemp(dt value.DataType, init *value.Value) ID {
	v := value.New(dt)
	if init != nil {
		v = init.Clone()
	}
	return t.register(t.scope(), &Entry{Kind: EntryTemp, Value: v})
}

// AddTmpCompatibleWith allocates a temp of the same type as entry id.
func (t *Table) AddTmpCompatibleWith(id ID) (ID, error) {
	e, err := t.Get(id)
	if err != nil {
		return NullID, err
	}
	return t.AddTemp(e.Type(), nil), nil
}

// AddLabel allocates a jump target. Labels always live in the global scope.
func (t *Table) AddLabel() ID {
	return t.register(t.scopes[GlobalScope], &Entry{Kind: EntryLabel, Value: value.New(value.INT32)})
}

// AddGotoTarget allocates a placeholder operand for a jump whose LABEL has not
// been emitted yet. It must be patched to a real label before the program runs.
func (t *Table) AddGotoTarget() ID {
	return t.register(t.scopes[GlobalScope], &Entry{Kind: EntryGotoTarget})
}

// AddArrayReference allocates an element reference for array variable arrayID
// used with rank indices.
func (t *Table) AddArrayReference(arrayID ID, rank int) (ID, error) {
	e, err := t.Get(arrayID)
	if err != nil {
		return NullID, err
	}
	if !e.IsArray() {
		return NullID, basicerr.Internal("entry %d is not an array", arrayID)
	}
	ref := &ArrayRef{Array: arrayID, Name: e.Var.Key(), Type: e.Var.Type, Rank: rank}
	return t.register(t.scope(), &Entry{Kind: EntryArrayRef, Ref: ref}), nil
}

// Get resolves an id from the current scope up to the root.
func (t *Table) Get(id ID) (*Entry, error) {
	for i := t.current; i >= 0; i = t.scopes[i].parent {
		if e, ok := t.scopes[i].entries[id]; ok {
			return e, nil
		}
	}
	return nil, basicerr.Internal("symbol %d not found from scope %d", id, t.current)
}

// Value returns the storage cell behind id. For an array reference this is the
// element selected by the accumulated index.
func (t *Table) Value(id ID) (*value.Value, error) {
	e, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	switch {
	case e.Value != nil:
		return e.Value, nil
	case e.Kind == EntryArrayRef:
		arr, err := t.Get(e.Ref.Array)
		if err != nil {
			return nil, err
		}
		return e.Ref.Cell(arr.Array)
	case e.IsArray():
		return nil, basicerr.Runtime(basicerr.ArrayWithoutIndex, "%s", e.Var)
	}
	return nil, basicerr.Internal("entry %s has no storage", e)
}

// TypeOf returns the data type held by entry id.
func (t *Table) TypeOf(id ID) (value.DataType, error) {
	e, err := t.Get(id)
	if err != nil {
		return 0, err
	}
	return e.Type(), nil
}

// PushDeclarationScope enters the declaration scope of function fn, creating
// it on first use.
func (t *Table) PushDeclarationScope(fn ID) {
	if idx, ok := t.declScopes[fn]; ok {
		t.current = idx
		return
	}
	t.scopes = append(t.scopes, newScope(scopeDeclaration, t.current, fn))
	t.current = len(t.scopes) - 1
	t.declScopes[fn] = t.current
}

// PushRuntimeScope enters a fresh copy of fn's declaration scope for one call.
// caller is the instruction index execution resumes at on return.
func (t *Table) PushRuntimeScope(fn ID, caller int) error {
	idx, ok := t.declScopes[fn]
	if !ok {
		return basicerr.Internal("no declaration scope for function %d", fn)
	}
	decl := t.scopes[idx]
	s := newScope(scopeRuntime, t.current, fn)
	s.caller = caller
	for id, e := range decl.entries {
		s.entries[id] = e.clone()
	}
	for name, id := range decl.names {
		s.names[name] = id
	}
	t.scopes = append(t.scopes, s)
	t.current = len(t.scopes) - 1
	t.runtime++
	return nil
}

// PopScope leaves the current scope. Popping the global scope is an internal error.
func (t *Table) PopScope() error {
	if t.current == GlobalScope {
		return basicerr.Internal("pop of the global scope")
	}
	s := t.scope()
	popped := t.current
	t.current = s.parent
	if s.kind == scopeRuntime {
		t.runtime--
		if popped == len(t.scopes)-1 {
			t.scopes[popped] = nil
			t.scopes = t.scopes[:popped]
		}
	}
	return nil
}

// CallerIndex returns the resume instruction index recorded by the innermost
// runtime scope.
func (t *Table) CallerIndex() (int, error) {
	s := t.scope()
	if s.kind != scopeRuntime {
		return 0, basicerr.Internal("return from function outside a call")
	}
	return s.caller, nil
}

// CallDepth returns the number of active function calls.
func (t *Table) CallDepth() int { return t.runtime }

// InGlobalScope reports whether the current scope is the root.
func (t *Table) InGlobalScope() bool { return t.current == GlobalScope }

// CurrentFunction returns the function owning the current scope, or NullID.
func (t *Table) CurrentFunction() ID { return t.scope().fn }

// Size returns the number of ids handed out so far.
func (t *Table) Size() int { return int(t.nextID) }

// ResetRuntime drops every runtime scope and returns to the global scope.
func (t *Table) ResetRuntime() {
	for t.current != GlobalScope {
		t.PopScope()
	}
	keep := t.scopes[:0]
	for _, s := range t.scopes {
		if s.kind != scopeRuntime {
			keep = append(keep, s)
		}
	}
	t.scopes = keep
	t.runtime = 0
}
