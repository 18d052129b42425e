// Package basicerr defines the structured errors reported by the parser,
// the lowering pass and the execution engine.
package basicerr

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Category groups errors by the phase that raised them.
type Category string

const (
	// CategorySyntax marks errors raised by the parser.
	CategorySyntax Category = "SYNTAX ERROR"
	// CategorySemantic marks errors raised while lowering to IR.
	CategorySemantic Category = "SEMANTIC ERROR"
	// CategoryRuntime marks errors raised while executing IR.
	CategoryRuntime Category = "RUNTIME ERROR"
)

// Code is the machine-readable error identifier.
type Code string

// Syntax codes.
const (
	SyntaxError      Code = "SYNTAX_ERROR"
	MissingLineNum   Code = "MISSING_LINE_NUMBER"
	DuplicateLine    Code = "DUPLICATE_LINE"
	UnexpectedToken  Code = "UNEXPECTED_TOKEN"
	UnterminatedStr  Code = "UNTERMINATED_STRING"
	UnknownStatement Code = "UNKNOWN_STATEMENT"
)

// Semantic codes.
const (
	TypeMismatch         Code = "TYPE_MISMATCH"
	ForWithoutNext       Code = "FOR_WITHOUT_NEXT"
	NextWithoutFor       Code = "NEXT_WITHOUT_FOR"
	WhileWithoutWend     Code = "WHILE_WITHOUT_WEND"
	WendWithoutWhile     Code = "WEND_WITHOUT_WHILE"
	AssignmentToFunction Code = "ASSIGNMENT_TO_FUNCTION"
	IndexingScalar       Code = "INDEXING_SCALAR"
	ArrayWithoutIndex    Code = "ARRAY_WITHOUT_INDEX"
	InsufficientUDFArgs  Code = "INSUFFICIENT_UDF_ARGS"
	UndefinedFunction    Code = "UNDEFINED_FUNCTION"
	BadNumber            Code = "BAD_NUMBER"
	ReservedPrefix       Code = "RESERVED_PREFIX"
	WrongArgumentCount   Code = "WRONG_ARGUMENT_COUNT"
	InvalidForVariable   Code = "INVALID_FOR_VARIABLE"
)

// Runtime codes.
const (
	DivisionByZero      Code = "DIVISION_BY_ZERO"
	IndexOutOfBounds    Code = "INDEX_OUT_OF_BOUNDS"
	IllegalFileAccess   Code = "ILLEGAL_FILE_ACCESS"
	FileAlreadyOpen     Code = "FILE_ALREADY_OPEN"
	BadFileNumber       Code = "BAD_FILE_NUMBER"
	FileNotFound        Code = "FILE_NOT_FOUND"
	IllegalFunctionCall Code = "ILLEGAL_FUNCTION_CALL"
	OutOfData           Code = "OUT_OF_DATA"
	IOError             Code = "IO_ERROR"
	InputPastEnd        Code = "INPUT_PAST_END"
	ReturnWithoutGosub  Code = "RETURN_WITHOUT_GOSUB"
	UndefinedLine       Code = "UNDEFINED_LINE"
	Overflow            Code = "OVERFLOW"
	DuplicateDefinition Code = "DUPLICATE_DEFINITION"
	GosubDepthExceeded  Code = "GOSUB_DEPTH_EXCEEDED"
	CallDepthExceeded   Code = "CALL_DEPTH_EXCEEDED"
	FieldOverflow       Code = "FIELD_OVERFLOW"
	BadRecordNumber     Code = "BAD_RECORD_NUMBER"
)

// FriendlyErrorTexts maps codes to the text shown to the user.
var FriendlyErrorTexts = map[Code]string{
	SyntaxError:      "SYNTAX ERROR",
	MissingLineNum:   "LINE NUMBER EXPECTED",
	DuplicateLine:    "DUPLICATE LINE NUMBER",
	UnexpectedToken:  "UNEXPECTED TOKEN ENCOUNTERED",
	UnterminatedStr:  "STRING LITERAL NOT TERMINATED",
	UnknownStatement: "STATEMENT NOT RECOGNIZED",

	TypeMismatch:         "TYPE MISMATCH",
	ForWithoutNext:       "FOR WITHOUT NEXT",
	NextWithoutFor:       "NEXT WITHOUT FOR",
	WhileWithoutWend:     "WHILE WITHOUT WEND",
	WendWithoutWhile:     "WEND WITHOUT WHILE",
	AssignmentToFunction: "CANNOT ASSIGN TO A FUNCTION",
	IndexingScalar:       "SCALAR VARIABLE CANNOT BE INDEXED",
	ArrayWithoutIndex:    "ARRAY USED WITHOUT INDEX",
	InsufficientUDFArgs:  "WRONG NUMBER OF ARGUMENTS FOR USER FUNCTION",
	UndefinedFunction:    "UNDEFINED USER FUNCTION",
	BadNumber:            "INVALID NUMBER FORMAT",
	ReservedPrefix:       "ARRAY NAME USES RESERVED PREFIX",
	WrongArgumentCount:   "WRONG NUMBER OF ARGUMENTS",
	InvalidForVariable:   "FOR NEEDS A NUMERIC SCALAR VARIABLE",

	DivisionByZero:      "DIVISION BY ZERO",
	IndexOutOfBounds:    "SUBSCRIPT OUT OF RANGE",
	IllegalFileAccess:   "BAD FILE MODE",
	FileAlreadyOpen:     "FILE ALREADY OPEN",
	BadFileNumber:       "BAD FILE NUMBER",
	FileNotFound:        "FILE NOT FOUND",
	IllegalFunctionCall: "ILLEGAL FUNCTION CALL",
	OutOfData:           "OUT OF DATA",
	IOError:             "DEVICE I/O ERROR",
	InputPastEnd:        "INPUT PAST END",
	ReturnWithoutGosub:  "RETURN WITHOUT GOSUB",
	UndefinedLine:       "UNDEFINED LINE NUMBER",
	Overflow:            "OVERFLOW",
	DuplicateDefinition: "DUPLICATE DEFINITION",
	GosubDepthExceeded:  "GOSUB NESTING TOO DEEP",
	CallDepthExceeded:   "FUNCTION CALLS NESTED TOO DEEP",
	FieldOverflow:       "FIELD OVERFLOW",
	BadRecordNumber:     "BAD RECORD NUMBER",
}

// BASICError is a user-facing error with its source context.
type BASICError struct {
	Category   Category
	Code       Code
	Message    string // detail, may be empty
	LineNumber int    // BASIC line number, 0 if unknown
	Source     string // offending source text
	Err        error  // underlying cause, e.g. an *os.PathError
}

// Error renders "CATEGORY IN LINE n: TEXT (detail)".
func (e *BASICError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Category))
	if e.LineNumber > 0 {
		fmt.Fprintf(&b, " IN LINE %d", e.LineNumber)
	}
	b.WriteString(": ")
	b.WriteString(FriendlyText(e.Code))
	if e.Message != "" {
		b.WriteString(" (")
		b.WriteString(e.Message)
		b.WriteString(")")
	}
	if e.Source != "" {
		b.WriteString("\n  ")
		b.WriteString(strings.TrimSpace(e.Source))
	}
	return b.String()
}

func (e *BASICError) Unwrap() error { return e.Err }

// WithLocation returns a copy of e carrying line and source text. Context that
// is already set is kept, so the innermost location wins.
func (e *BASICError) WithLocation(line int, source string) *BASICError {
	c := *e
	if c.LineNumber == 0 {
		c.LineNumber = line
	}
	if c.Source == "" {
		c.Source = source
	}
	return &c
}

// FriendlyText returns the display text for code.
func FriendlyText(code Code) string {
	if text, ok := FriendlyErrorTexts[code]; ok {
		return text
	}
	return strings.ReplaceAll(string(code), "_", " ")
}

func newError(cat Category, code Code, format string, args ...interface{}) *BASICError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &BASICError{Category: cat, Code: code, Message: msg}
}

// Syntax creates a parser error.
func Syntax(code Code, line int, source string, format string, args ...interface{}) *BASICError {
	e := newError(CategorySyntax, code, format, args...)
	e.LineNumber = line
	e.Source = source
	return e
}

// Semantic creates a lowering error for the given source text.
func Semantic(code Code, line int, source string, format string, args ...interface{}) *BASICError {
	e := newError(CategorySemantic, code, format, args...)
	e.LineNumber = line
	e.Source = source
	return e
}

// Runtime creates an execution error; the engine attaches the location.
func Runtime(code Code, format string, args ...interface{}) *BASICError {
	return newError(CategoryRuntime, code, format, args...)
}

// RuntimeWrap creates an execution error caused by err.
func RuntimeWrap(code Code, err error) *BASICError {
	e := newError(CategoryRuntime, code, "%v", err)
	e.Err = err
	return e
}

// Is reports whether err is a BASICError with the given code.
func Is(err error, code Code) bool {
	var be *BASICError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// CodeOf returns the code of a BASICError, or "" for other errors.
func CodeOf(err error) Code {
	var be *BASICError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// InternalError reports a broken invariant in the lowering pass or the engine.
// It carries a stack trace; print it with %+v.
type InternalError struct {
	err error
}

// Internal creates an InternalError with a captured stack.
func Internal(format string, args ...interface{}) *InternalError {
	return &InternalError{err: pkgerrors.Errorf(format, args...)}
}

func (e *InternalError) Error() string { return "INTERNAL ERROR: " + e.err.Error() }

func (e *InternalError) Unwrap() error { return e.err }

// Format prints the stack trace for %+v.
func (e *InternalError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "INTERNAL ERROR: %+v", e.err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// IsInternal reports whether err is an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
