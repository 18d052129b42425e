// Package files implements the BASIC file table: numbered sequential and
// random-access files on top of a pluggable storage backend.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/value"
)

const (
	// MaxFileNumber is the highest usable #n.
	MaxFileNumber = 255
	// DefaultRecordLength applies to RANDOM files opened without LEN.
	DefaultRecordLength = 128
)

func filesDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaFiles, "[FILES] "+format, args...)
}

// Mode is the access mode of an open file.
type Mode uint8

const (
	ModeInput Mode = iota + 1
	ModeOutput
	ModeAppend
	ModeRandom
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "INPUT"
	case ModeOutput:
		return "OUTPUT"
	case ModeAppend:
		return "APPEND"
	case ModeRandom:
		return "RANDOM"
	}
	return "UNKNOWN"
}

// ParseMode accepts the one-letter and the long mode names.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "I", "INPUT":
		return ModeInput, nil
	case "O", "OUTPUT":
		return ModeOutput, nil
	case "A", "APPEND":
		return ModeAppend, nil
	case "R", "RANDOM":
		return ModeRandom, nil
	}
	return 0, basicerr.Runtime(basicerr.IllegalFileAccess, "unknown mode %q", s)
}

// Storage loads and saves whole data files. Load reports a missing file with
// an error matching fs.ErrNotExist.
type Storage interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
}

// OSStorage keeps data files in a directory of the host file system.
type OSStorage struct {
	Dir string
}

func (s OSStorage) path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(filepath.Clean(name)))
}

func (s OSStorage) Load(name string) ([]byte, error) {
	return os.ReadFile(s.path(name))
}

func (s OSStorage) Save(name string, data []byte) error {
	return os.WriteFile(s.path(name), data, 0o644)
}

type fieldBinding struct {
	offset, width int
	cell          *value.Value
}

// File is one open file. Contents are held in memory and saved on Close.
type File struct {
	Number int
	Name   string
	Mode   Mode
	RecLen int

	data    []byte
	reader  fieldReader
	printer *Printer
	dirty   bool

	record int // last record read or written
	buffer []byte
	fields []fieldBinding
}

func (f *File) Write(p []byte) (int, error) {
	f.data = append(f.data, p...)
	f.dirty = true
	return len(p), nil
}

func (f *File) illegal(op string) error {
	return basicerr.Runtime(basicerr.IllegalFileAccess, "%s on #%d opened for %s", op, f.Number, f.Mode)
}

// Printer returns the output printer of a sequential output file.
func (f *File) Printer() (*Printer, error) {
	if f.Mode != ModeOutput && f.Mode != ModeAppend {
		return nil, f.illegal("PRINT")
	}
	return f.printer, nil
}

func (f *File) readable(op string) error {
	if f.Mode != ModeInput {
		return f.illegal(op)
	}
	if f.reader.atEnd() {
		return basicerr.Runtime(basicerr.InputPastEnd, "#%d", f.Number)
	}
	return nil
}

// ReadField returns the next comma or newline separated item (INPUT #).
func (f *File) ReadField() (string, error) {
	if err := f.readable("INPUT"); err != nil {
		return "", err
	}
	field, ok := f.reader.next(true)
	if !ok {
		return "", basicerr.Runtime(basicerr.InputPastEnd, "#%d", f.Number)
	}
	return field, nil
}

// ReadLine returns the rest of the current line (LINE INPUT #).
func (f *File) ReadLine() (string, error) {
	if err := f.readable("LINE INPUT"); err != nil {
		return "", err
	}
	r := &f.reader
	start := r.pos
	for !r.atEnd() && r.data[r.pos] != '\n' {
		r.pos++
	}
	line := strings.TrimRight(string(r.data[start:r.pos]), "\r")
	if !r.atEnd() {
		r.pos++
	}
	return line, nil
}

// ReadBytes returns the next n bytes (INPUT$).
func (f *File) ReadBytes(n int) (string, error) {
	if err := f.readable("INPUT$"); err != nil {
		return "", err
	}
	r := &f.reader
	if r.pos+n > len(r.data) {
		return "", basicerr.Runtime(basicerr.InputPastEnd, "#%d", f.Number)
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

// EOF reports whether no more input is available.
func (f *File) EOF() bool {
	switch f.Mode {
	case ModeInput:
		r := &f.reader
		for i := r.pos; i < len(r.data); i++ {
			if c := r.data[i]; c != '\n' && c != '\r' && c != ' ' && c != 0x1a {
				return false
			}
		}
		return true
	case ModeRandom:
		return f.record*f.RecLen >= len(f.data)
	}
	return true
}

// Loc returns the last record number for random files and the number of
// 128-byte blocks consumed or written for sequential files.
func (f *File) Loc() int {
	switch f.Mode {
	case ModeRandom:
		return f.record
	case ModeInput:
		return f.reader.pos / DefaultRecordLength
	}
	return len(f.data) / DefaultRecordLength
}

// Lof returns the file length in bytes.
func (f *File) Lof() int64 { return int64(len(f.data)) }

// BeginField drops the previous FIELD layout.
func (f *File) BeginField() error {
	if f.Mode != ModeRandom {
		return f.illegal("FIELD")
	}
	f.fields = f.fields[:0]
	return nil
}

// Field binds the next width bytes of the record buffer to cell.
func (f *File) Field(width int, cell *value.Value) error {
	if f.Mode != ModeRandom {
		return f.illegal("FIELD")
	}
	offset := 0
	if n := len(f.fields); n > 0 {
		offset = f.fields[n-1].offset + f.fields[n-1].width
	}
	if width < 0 || offset+width > f.RecLen {
		return basicerr.Runtime(basicerr.FieldOverflow, "field of %d bytes at %d exceeds record length %d", width, offset, f.RecLen)
	}
	if err := cell.BindField(width); err != nil {
		return err
	}
	f.fields = append(f.fields, fieldBinding{offset: offset, width: width, cell: cell})
	return nil
}

func (f *File) recordNumber(n int, given bool) (int, error) {
	if !given {
		return f.record + 1, nil
	}
	if n < 1 {
		return 0, basicerr.Runtime(basicerr.BadRecordNumber, "%d", n)
	}
	return n, nil
}

// GetRecord reads record n (the next one when given is false) into the
// buffer and the bound field variables.
func (f *File) GetRecord(n int, given bool) error {
	if f.Mode != ModeRandom {
		return f.illegal("GET")
	}
	rec, err := f.recordNumber(n, given)
	if err != nil {
		return err
	}
	for i := range f.buffer {
		f.buffer[i] = 0
	}
	start := (rec - 1) * f.RecLen
	if start < len(f.data) {
		copy(f.buffer, f.data[start:])
	}
	f.record = rec
	for _, fb := range f.fields {
		fb.cell.SetRaw(string(f.buffer[fb.offset : fb.offset+fb.width]))
	}
	return nil
}

// PutRecord writes the field variables into record n.
func (f *File) PutRecord(n int, given bool) error {
	if f.Mode != ModeRandom {
		return f.illegal("PUT")
	}
	rec, err := f.recordNumber(n, given)
	if err != nil {
		return err
	}
	for _, fb := range f.fields {
		s, err := fb.cell.Str()
		if err != nil {
			return err
		}
		padded := []byte(s + strings.Repeat(" ", fb.width))
		copy(f.buffer[fb.offset:fb.offset+fb.width], padded)
	}
	end := rec * f.RecLen
	if end > len(f.data) {
		f.data = append(f.data, make([]byte, end-len(f.data))...)
	}
	copy(f.data[(rec-1)*f.RecLen:end], f.buffer)
	f.record = rec
	f.dirty = true
	return nil
}

// Table maps file numbers to open files.
type Table struct {
	storage Storage
	open    map[int]*File
}

// NewTable returns an empty table over storage.
func NewTable(storage Storage) *Table {
	return &Table{storage: storage, open: make(map[int]*File)}
}

func checkNumber(n int) error {
	if n < 1 || n > MaxFileNumber {
		return basicerr.Runtime(basicerr.BadFileNumber, "#%d", n)
	}
	return nil
}

// Open opens name as file number n.
func (t *Table) Open(n int, name string, mode Mode, recLen int) error {
	if err := checkNumber(n); err != nil {
		return err
	}
	if _, busy := t.open[n]; busy {
		return basicerr.Runtime(basicerr.FileAlreadyOpen, "#%d", n)
	}
	if name == "" {
		return basicerr.Runtime(basicerr.FileNotFound, "empty file name")
	}

	f := &File{Number: n, Name: name, Mode: mode}
	if mode != ModeOutput {
		data, err := t.storage.Load(name)
		switch {
		case err == nil:
			f.data = data
		case errors.Is(err, fs.ErrNotExist):
			if mode == ModeInput {
				return basicerr.Runtime(basicerr.FileNotFound, "%s", name)
			}
		default:
			return basicerr.RuntimeWrap(basicerr.IOError, err)
		}
	}

	switch mode {
	case ModeInput:
		f.reader = fieldReader{data: f.data}
	case ModeOutput:
		f.dirty = true
		f.printer = NewPrinter(f)
	case ModeAppend:
		f.printer = NewPrinter(f)
	case ModeRandom:
		if recLen <= 0 {
			recLen = DefaultRecordLength
		}
		f.RecLen = recLen
		f.buffer = make([]byte, recLen)
	}
	t.open[n] = f
	filesDebugLog("opened #%d %s for %s", n, name, mode)
	return nil
}

// Get returns open file n.
func (t *Table) Get(n int) (*File, error) {
	if err := checkNumber(n); err != nil {
		return nil, err
	}
	f, ok := t.open[n]
	if !ok {
		return nil, basicerr.Runtime(basicerr.BadFileNumber, "#%d is not open", n)
	}
	return f, nil
}

// Close saves and closes file n. Closing a file that is not open is allowed.
func (t *Table) Close(n int) error {
	if err := checkNumber(n); err != nil {
		return err
	}
	f, ok := t.open[n]
	if !ok {
		return nil
	}
	delete(t.open, n)
	if !f.dirty {
		return nil
	}
	if err := t.storage.Save(f.Name, f.data); err != nil {
		return basicerr.RuntimeWrap(basicerr.IOError, fmt.Errorf("saving %s: %w", f.Name, err))
	}
	filesDebugLog("closed #%d %s (%d bytes)", n, f.Name, len(f.data))
	return nil
}

// CloseAll closes every open file in ascending order and returns the first
// error.
func (t *Table) CloseAll() error {
	numbers := make([]int, 0, len(t.open))
	for n := range t.open {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	var first error
	for _, n := range numbers {
		if err := t.Close(n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
