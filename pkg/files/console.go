package files

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// LineReader supplies console input lines. The reader shows the prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// KeyReader is implemented by line readers that can report a pending key
// without blocking (INKEY$).
type KeyReader interface {
	ReadKey() (string, bool)
}

// Console is the system console: a printer for output plus a line source.
type Console struct {
	*Printer
	in LineReader
}

// NewConsole combines an output writer and a line source.
func NewConsole(out io.Writer, in LineReader) *Console {
	return &Console{Printer: NewPrinter(out), in: in}
}

// ReadLine shows prompt and returns one line without its terminator. End of
// input is INPUT_PAST_END.
func (c *Console) ReadLine(prompt string) (string, error) {
	if c.in == nil {
		return "", basicerr.Runtime(basicerr.InputPastEnd, "console has no input")
	}
	line, err := c.in.ReadLine(prompt)
	c.resetColumn()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", basicerr.Runtime(basicerr.InputPastEnd, "end of console input")
		}
		return "", basicerr.RuntimeWrap(basicerr.IOError, err)
	}
	return line, nil
}

// InKey returns a pending key or "".
func (c *Console) InKey() string {
	if kr, ok := c.in.(KeyReader); ok {
		if k, ok := kr.ReadKey(); ok {
			return k
		}
	}
	return ""
}

// StreamInput reads lines from a plain stream and echoes prompts to out.
type StreamInput struct {
	r   *bufio.Reader
	out io.Writer
}

// NewStreamInput returns a LineReader over r. Prompts go to out when it is
// non-nil.
func NewStreamInput(r io.Reader, out io.Writer) *StreamInput {
	return &StreamInput{r: bufio.NewReader(r), out: out}
}

func (s *StreamInput) ReadLine(prompt string) (string, error) {
	if s.out != nil && prompt != "" {
		if _, err := io.WriteString(s.out, prompt); err != nil {
			return "", err
		}
	}
	line, err := s.r.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// SplitFields splits a console INPUT reply at commas. Quoted fields keep
// their commas; unquoted fields are trimmed.
func SplitFields(line string) []string {
	var fields []string
	r := &fieldReader{data: []byte(line)}
	for {
		f, ok := r.next(false)
		if !ok {
			break
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		fields = []string{""}
	}
	return fields
}

// fieldReader scans comma/newline separated fields the way INPUT # does.
type fieldReader struct {
	data []byte
	pos  int
}

func (r *fieldReader) atEnd() bool { return r.pos >= len(r.data) }

// next returns the next field. stopAtNewline makes a newline a separator.
func (r *fieldReader) next(stopAtNewline bool) (string, bool) {
	for !r.atEnd() && (r.data[r.pos] == ' ' || r.data[r.pos] == '\t' || (stopAtNewline && (r.data[r.pos] == '\n' || r.data[r.pos] == '\r'))) {
		r.pos++
	}
	if r.atEnd() {
		return "", false
	}
	var field string
	if r.data[r.pos] == '"' {
		r.pos++
		start := r.pos
		for !r.atEnd() && r.data[r.pos] != '"' {
			r.pos++
		}
		field = string(r.data[start:r.pos])
		if !r.atEnd() {
			r.pos++
		}
		for !r.atEnd() && r.data[r.pos] != ',' && r.data[r.pos] != '\n' {
			r.pos++
		}
	} else {
		start := r.pos
		for !r.atEnd() && r.data[r.pos] != ',' && r.data[r.pos] != '\n' {
			r.pos++
		}
		field = strings.TrimRight(string(r.data[start:r.pos]), " \t\r")
	}
	if !r.atEnd() {
		r.pos++
	}
	return field, true
}
