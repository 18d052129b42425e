package symtab

import (
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/value"
)

// ImplicitExtent is the upper bound used for arrays indexed before any DIM.
const ImplicitExtent = 10

// ArrayStore is the flat backing buffer of an array variable.
type ArrayStore struct {
	typ     value.DataType
	dims    []int // per-dimension sizes, declared bound + 1
	strides []int // product of the remaining dimension sizes
	cells   []*value.Value
	pending []int // extents collected by DIM before allocation
}

func newArrayStore(t value.DataType) *ArrayStore {
	return &ArrayStore{typ: t}
}

// Allocated reports whether DIM (or an implicit first access) sized the array.
func (a *ArrayStore) Allocated() bool { return a.cells != nil }

// Dims returns the per-dimension sizes.
func (a *ArrayStore) Dims() []int { return a.dims }

// Len returns the number of cells.
func (a *ArrayStore) Len() int { return len(a.cells) }

// Cell returns cell i of the flat buffer.
func (a *ArrayStore) Cell(i int) *value.Value { return a.cells[i] }

// BeginDim starts collecting extents for a DIM.
func (a *ArrayStore) BeginDim() { a.pending = a.pending[:0] }

// AddExtent records the declared upper bound of the next dimension.
func (a *ArrayStore) AddExtent(bound int64) error {
	if bound < 0 || bound > 1<<24 {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "array bound %d", bound)
	}
	a.pending = append(a.pending, int(bound)+1)
	return nil
}

// EndDim allocates the buffer from the collected extents.
func (a *ArrayStore) EndDim() error {
	if a.Allocated() {
		return basicerr.Runtime(basicerr.DuplicateDefinition, "array already dimensioned")
	}
	return a.allocate(a.pending)
}

func (a *ArrayStore) allocate(sizes []int) error {
	if len(sizes) == 0 {
		return basicerr.Internal("array allocated without dimensions")
	}
	total := 1
	for _, s := range sizes {
		total *= s
		if total > 1<<24 {
			return basicerr.Runtime(basicerr.Overflow, "array too large")
		}
	}
	a.dims = append([]int(nil), sizes...)
	a.strides = make([]int, len(sizes))
	stride := 1
	for d := len(sizes) - 1; d >= 0; d-- {
		a.strides[d] = stride
		stride *= sizes[d]
	}
	a.cells = make([]*value.Value, total)
	for i := range a.cells {
		a.cells[i] = value.New(a.typ)
	}
	a.pending = nil
	return nil
}

// Ensure sizes an array that is accessed before any DIM.
func (a *ArrayStore) Ensure(rank int) error {
	if a.Allocated() {
		return nil
	}
	sizes := make([]int, rank)
	for i := range sizes {
		sizes[i] = ImplicitExtent + 1
	}
	return a.allocate(sizes)
}

// Erase drops the buffer so the array can be dimensioned again.
func (a *ArrayStore) Erase() {
	a.dims, a.strides, a.cells, a.pending = nil, nil, nil, nil
}

func (a *ArrayStore) clone() *ArrayStore {
	c := &ArrayStore{typ: a.typ}
	c.dims = append([]int(nil), a.dims...)
	c.strides = append([]int(nil), a.strides...)
	if a.cells != nil {
		c.cells = make([]*value.Value, len(a.cells))
		for i, v := range a.cells {
			c.cells[i] = v.Clone()
		}
	}
	return c
}

// ArrayRef is an indirection onto one element of an array. The linear index
// is accumulated one dimension at a time so element access can use the same
// instruction shapes as scalars.
type ArrayRef struct {
	Array ID
	Name  string
	Type  value.DataType
	Rank  int // number of indices at the use site

	index int
	dim   int
}

// Reset clears the running index before the first dimension is supplied.
func (r *ArrayRef) Reset() {
	r.index = 0
	r.dim = 0
}

// Index returns the linear index accumulated so far.
func (r *ArrayRef) Index() int { return r.index }

// AddIndex folds the index of the next dimension into the linear index:
// index += i * product of the sizes of the dimensions after it.
func (r *ArrayRef) AddIndex(a *ArrayStore, i int64) error {
	if err := a.Ensure(r.Rank); err != nil {
		return err
	}
	if r.dim >= len(a.dims) {
		return basicerr.Runtime(basicerr.IndexOutOfBounds, "%s has %d dimensions", r.Name, len(a.dims))
	}
	if i < 0 || i >= int64(a.dims[r.dim]) {
		return basicerr.Runtime(basicerr.IndexOutOfBounds, "%s index %d", r.Name, i)
	}
	r.index += int(i) * a.strides[r.dim]
	r.dim++
	return nil
}

// Cell returns the element the reference points at once every dimension
// has been supplied.
func (r *ArrayRef) Cell(a *ArrayStore) (*value.Value, error) {
	if err := a.Ensure(r.Rank); err != nil {
		return nil, err
	}
	if r.dim != len(a.dims) {
		return nil, basicerr.Runtime(basicerr.IndexOutOfBounds,
			"%s needs %d indices, got %d", r.Name, len(a.dims), r.dim)
	}
	return a.cells[r.index], nil
}
