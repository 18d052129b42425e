package lower

import (
	"io"

	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/parser"
	"github.com/antibyte/retrobasic/pkg/source"
)

// Compile reads, parses and lowers the program text in r.
func Compile(r io.Reader, mode source.DuplicateMode) (*ir.Program, error) {
	listing, err := source.Read(r, mode)
	if err != nil {
		return nil, err
	}
	tree, err := parser.Parse(listing.Lines())
	if err != nil {
		return nil, err
	}
	lowerDebugLog("compiling %d lines", listing.Len())
	return Lower(tree)
}
