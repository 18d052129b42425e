// Package source splits program text into numbered lines and keeps them
// ordered by line number.
package source

import (
	"bufio"
	"io"
	"strings"

	"github.com/google/btree"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/logger"
)

// MaxLineNumber is the highest accepted line number.
const MaxLineNumber = 65529

// DuplicateMode selects what happens when a line number appears twice.
type DuplicateMode int

const (
	// DuplicateError rejects the program with DUPLICATE_LINE.
	DuplicateError DuplicateMode = iota
	// DuplicateLog logs a warning and keeps the later line.
	DuplicateLog
)

// ParseDuplicateMode maps the [Interpreter] duplicate_lines setting.
func ParseDuplicateMode(s string) DuplicateMode {
	if strings.EqualFold(strings.TrimSpace(s), "log") {
		return DuplicateLog
	}
	return DuplicateError
}

// Line is one numbered line. Text is the whole line, number included.
type Line struct {
	Number int
	Text   string
}

// Less orders lines by number.
func (l Line) Less(than btree.Item) bool {
	return l.Number < than.(Line).Number
}

// Listing is a program kept in line-number order.
type Listing struct {
	lines *btree.BTree
	mode  DuplicateMode
}

// NewListing returns an empty listing.
func NewListing(mode DuplicateMode) *Listing {
	return &Listing{lines: btree.New(4), mode: mode}
}

// Add stores a line. The number is parsed from the start of text.
func (l *Listing) Add(text string) error {
	trimmed := strings.TrimRight(text, " \t\r")
	if strings.TrimSpace(trimmed) == "" {
		return nil
	}
	num, ok := leadingNumber(trimmed)
	if !ok {
		return basicerr.Syntax(basicerr.MissingLineNum, 0, trimmed, "")
	}
	if num > MaxLineNumber {
		return basicerr.Syntax(basicerr.SyntaxError, 0, trimmed, "line number %d too large", num)
	}

	line := Line{Number: num, Text: trimmed}
	if l.lines.Has(line) {
		if l.mode == DuplicateError {
			return basicerr.Syntax(basicerr.DuplicateLine, num, trimmed, "")
		}
		logger.Warn(logger.AreaLowering, "duplicate line %d replaced by later definition", num)
	}
	l.lines.ReplaceOrInsert(line)
	return nil
}

// Len returns the number of lines.
func (l *Listing) Len() int { return l.lines.Len() }

// Lines returns the lines in ascending order.
func (l *Listing) Lines() []Line {
	out := make([]Line, 0, l.lines.Len())
	l.lines.Ascend(func(item btree.Item) bool {
		out = append(out, item.(Line))
		return true
	})
	return out
}

// Get returns line number n.
func (l *Listing) Get(n int) (Line, bool) {
	item := l.lines.Get(Line{Number: n})
	if item == nil {
		return Line{}, false
	}
	return item.(Line), true
}

// Read builds a listing from program text, one line per text line.
func Read(r io.Reader, mode DuplicateMode) (*Listing, error) {
	l := NewListing(mode)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := l.Add(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, basicerr.RuntimeWrap(basicerr.IOError, err)
	}
	return l, nil
}

// ReadString is Read over a string.
func ReadString(text string, mode DuplicateMode) (*Listing, error) {
	return Read(strings.NewReader(text), mode)
}

func leadingNumber(s string) (int, bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	start := i
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		if n > 1<<30 {
			return 0, false
		}
		i++
	}
	return n, i > start
}
