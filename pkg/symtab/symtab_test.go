package symtab

import (
	"testing"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/value"
)

func TestAddVariableOrUDFReusesBinding(t *testing.T) {
	st := New()
	calls := 0
	init := func(*Entry) { calls++ }

	a := st.AddVariableOrUDF(Variable{Name: "A", Type: value.INT32}, init)
	b := st.AddVariableOrUDF(Variable{Name: "A", Type: value.INT32}, init)
	if a != b {
		t.Errorf("same variable got ids %d and %d", a, b)
	}
	if calls != 1 {
		t.Errorf("initializer called %d times, want 1", calls)
	}

	s := st.AddVariableOrUDF(Variable{Name: "A", Type: value.STRING}, init)
	if s == a {
		t.Error("A% and A$ must be distinct variables")
	}
}

func TestIDsAreUnique(t *testing.T) {
	st := New()
	seen := map[ID]bool{}
	ids := []ID{
		st.AddTemp(value.INT32, nil),
		st.AddLabel(),
		st.AddGotoTarget(),
		st.AddVariableOrUDF(Variable{Name: "X", Type: value.FLOAT}, nil),
		st.AddTemp(value.STRING, nil),
	}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("id %d handed out twice", id)
		}
		seen[id] = true
	}
	if st.Size() != len(ids) {
		t.Errorf("Size() = %d, want %d", st.Size(), len(ids))
	}
}

func TestDefaultDataTypes(t *testing.T) {
	st := New()
	tests := []struct {
		name     string
		suffix   byte
		expected value.DataType
	}{
		{"A", 0, value.FLOAT},
		{"A", '%', value.INT32},
		{"N", 0, value.INT32},
		{"NAME", 0, value.INT32},
		{"S", 0, value.STRING},
		{"S", '#', value.DOUBLE},
		{"FNS", 0, value.STRING},
	}

	st.SetDefaultDataType('N', value.INT32)
	st.SetDefaultDataType('s', value.STRING)

	for _, tt := range tests {
		t.Run(tt.name+string(tt.suffix), func(t *testing.T) {
			if got := st.GetDataTypeFor(tt.name, tt.suffix); got != tt.expected {
				t.Errorf("GetDataTypeFor(%q, %q) = %s, want %s", tt.name, tt.suffix, got, tt.expected)
			}
		})
	}
}

func TestArrayLinearization(t *testing.T) {
	st := New()
	arrID := st.AddVariableOrUDF(Variable{Name: "A", Type: value.INT32, Kind: Array}, nil)
	arr, _ := st.Get(arrID)

	arr.Array.BeginDim()
	arr.Array.AddExtent(2)
	arr.Array.AddExtent(3)
	if err := arr.Array.EndDim(); err != nil {
		t.Fatal(err)
	}
	if got := arr.Array.Dims(); len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("dims = %v, want [3 4]", got)
	}

	refID, err := st.AddArrayReference(arrID, 2)
	if err != nil {
		t.Fatal(err)
	}
	ref, _ := st.Get(refID)
	ref.Ref.Reset()
	if err := ref.Ref.AddIndex(arr.Array, 1); err != nil {
		t.Fatal(err)
	}
	if err := ref.Ref.AddIndex(arr.Array, 2); err != nil {
		t.Fatal(err)
	}
	if ref.Ref.Index() != 6 {
		t.Errorf("A(1,2) linear index = %d, want 6", ref.Ref.Index())
	}

	cell, err := st.Value(refID)
	if err != nil {
		t.Fatal(err)
	}
	cell.SetInt64(42)
	if got, _ := arr.Array.Cell(6).Int64(); got != 42 {
		t.Errorf("cell 6 = %d, want 42", got)
	}
}

func TestArrayBounds(t *testing.T) {
	st := New()
	arrID := st.AddVariableOrUDF(Variable{Name: "B", Type: value.FLOAT, Kind: Array}, nil)
	arr, _ := st.Get(arrID)
	arr.Array.BeginDim()
	arr.Array.AddExtent(5)
	arr.Array.EndDim()

	refID, _ := st.AddArrayReference(arrID, 1)
	ref, _ := st.Get(refID)

	tests := []struct {
		name  string
		index int64
		ok    bool
	}{
		{"lower bound", 0, true},
		{"upper bound", 5, true},
		{"past upper", 6, false},
		{"negative", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref.Ref.Reset()
			err := ref.Ref.AddIndex(arr.Array, tt.index)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !basicerr.Is(err, basicerr.IndexOutOfBounds) {
				t.Errorf("got %v, want INDEX_OUT_OF_BOUNDS", err)
			}
		})
	}

	// a second index on a one-dimensional array is out of range
	ref.Ref.Reset()
	ref.Ref.AddIndex(arr.Array, 1)
	if err := ref.Ref.AddIndex(arr.Array, 1); !basicerr.Is(err, basicerr.IndexOutOfBounds) {
		t.Errorf("extra dimension: got %v", err)
	}

	arr.Array.BeginDim()
	arr.Array.AddExtent(3)
	if err := arr.Array.EndDim(); !basicerr.Is(err, basicerr.DuplicateDefinition) {
		t.Errorf("re-DIM: got %v, want DUPLICATE_DEFINITION", err)
	}
}

func TestImplicitArray(t *testing.T) {
	st := New()
	arrID := st.AddVariableOrUDF(Variable{Name: "C", Type: value.INT32, Kind: Array}, nil)
	refID, _ := st.AddArrayReference(arrID, 2)
	ref, _ := st.Get(refID)
	arr, _ := st.Get(arrID)

	ref.Ref.Reset()
	if err := ref.Ref.AddIndex(arr.Array, 10); err != nil {
		t.Fatalf("implicit bound 10 rejected: %v", err)
	}
	ref.Ref.AddIndex(arr.Array, 10)
	if arr.Array.Len() != 121 {
		t.Errorf("implicit array has %d cells, want 121", arr.Array.Len())
	}
}

func TestRuntimeScopesAreIndependent(t *testing.T) {
	st := New()
	fn := st.AddVariableOrUDF(Variable{Name: "FNA", Type: value.FLOAT, Kind: UserDefinedFunction}, nil)
	global := st.AddVariableOrUDF(Variable{Name: "X", Type: value.FLOAT}, nil)

	st.PushDeclarationScope(fn)
	param := st.AddParameter(Variable{Name: "X", Type: value.FLOAT})
	if param == global {
		t.Fatal("parameter must shadow the global X")
	}
	if err := st.PopScope(); err != nil {
		t.Fatal(err)
	}

	if err := st.PushRuntimeScope(fn, 10); err != nil {
		t.Fatal(err)
	}
	v, _ := st.Value(param)
	v.SetFloat64(1)
	if idx, _ := st.CallerIndex(); idx != 10 {
		t.Errorf("caller index = %d, want 10", idx)
	}
	st.PopScope()

	st.PushRuntimeScope(fn, 20)
	v2, _ := st.Value(param)
	if f, _ := v2.Float64(); f != 0 {
		t.Errorf("second call sees %v from the first call", f)
	}
	if st.CallDepth() != 1 {
		t.Errorf("CallDepth() = %d, want 1", st.CallDepth())
	}
	st.PopScope()

	if _, err := st.Get(param); !basicerr.IsInternal(err) {
		t.Errorf("parameter visible outside call: %v", err)
	}
	if !st.InGlobalScope() {
		t.Error("not back in the global scope")
	}
}

func TestPopGlobalScopeFails(t *testing.T) {
	st := New()
	if err := st.PopScope(); !basicerr.IsInternal(err) {
		t.Errorf("PopScope on root: got %v, want internal error", err)
	}
	if _, err := st.Get(99); !basicerr.IsInternal(err) {
		t.Errorf("Get of unknown id: got %v, want internal error", err)
	}
}

func TestNestedRuntimeScopeSeesCallerTemps(t *testing.T) {
	st := New()
	outer := st.AddVariableOrUDF(Variable{Name: "FNO", Type: value.FLOAT, Kind: UserDefinedFunction}, nil)
	inner := st.AddVariableOrUDF(Variable{Name: "FNI", Type: value.FLOAT, Kind: UserDefinedFunction}, nil)

	st.PushDeclarationScope(outer)
	tmp := st.AddTemp(value.FLOAT, nil)
	st.PopScope()
	st.PushDeclarationScope(inner)
	st.PopScope()

	st.PushRuntimeScope(outer, 1)
	st.PushRuntimeScope(inner, 2)
	if _, err := st.Value(tmp); err != nil {
		t.Errorf("outer temp not visible in inner call: %v", err)
	}
	if st.CallDepth() != 2 {
		t.Errorf("CallDepth() = %d, want 2", st.CallDepth())
	}
	st.ResetRuntime()
	if !st.InGlobalScope() || st.CallDepth() != 0 {
		t.Error("ResetRuntime left runtime scopes behind")
	}
}
