// Package console connects the interpreter's system console to the process
// terminal: line editing with liner on a tty, plain streams otherwise, and an
// optional CP437 code page.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/files"
	"github.com/antibyte/retrobasic/pkg/logger"
)

func consoleDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaTerminal, "[CONSOLE] "+format, args...)
}

// Codepage translates between program strings and the UTF-8 terminal. The
// zero value passes text through unchanged.
type Codepage struct {
	name string
	cm   *charmap.Charmap
}

// LookupCodepage returns the code page for a [Console] codepage setting.
func LookupCodepage(name string) (Codepage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return Codepage{name: "utf8"}, nil
	case "cp437", "ibm437":
		return Codepage{name: "cp437", cm: charmap.CodePage437}, nil
	}
	return Codepage{}, fmt.Errorf("unknown codepage %q", name)
}

func (c Codepage) String() string {
	if c.name == "" {
		return "utf8"
	}
	return c.name
}

// Output wraps w so that program bytes are shown as their code page glyphs.
func (c Codepage) Output(w io.Writer) io.Writer {
	if c.cm == nil {
		return w
	}
	return transform.NewWriter(w, c.cm.NewDecoder())
}

// ToTerminal converts a program string for display.
func (c Codepage) ToTerminal(s string) string {
	if c.cm == nil {
		return s
	}
	out, err := c.cm.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// FromTerminal converts typed text into program bytes. Characters outside
// the code page become the code page's substitute byte.
func (c Codepage) FromTerminal(s string) string {
	if c.cm == nil {
		return s
	}
	out, err := encoding.ReplaceUnsupported(c.cm.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	return out
}

// Options selects how the console talks to the terminal.
type Options struct {
	Codepage    string
	LineEditing bool
}

// OptionsFromConfig reads the [Console] section.
func OptionsFromConfig() Options {
	return Options{
		Codepage:    configuration.GetString("Console", "codepage", "utf8"),
		LineEditing: configuration.GetBool("Console", "line_editing", true),
	}
}

// System is the interpreter's console bound to the process terminal.
type System struct {
	*files.Console
	cp    Codepage
	liner *liner.State
}

// Open builds the console. Line editing is used only when in is a terminal.
func Open(in *os.File, out io.Writer, opts Options) (*System, error) {
	cp, err := LookupCodepage(opts.Codepage)
	if err != nil {
		return nil, err
	}
	s := &System{cp: cp}
	w := cp.Output(out)
	var r files.LineReader
	if opts.LineEditing && term.IsTerminal(int(in.Fd())) {
		s.liner = liner.NewLiner()
		s.liner.SetCtrlCAborts(true)
		r = &linerInput{st: s.liner, cp: cp}
		consoleDebugLog("line editing on %s, codepage %s", in.Name(), cp)
	} else {
		r = &encodedInput{r: files.NewStreamInput(in, w), cp: cp}
		consoleDebugLog("stream input from %s, codepage %s", in.Name(), cp)
	}
	s.Console = files.NewConsole(w, r)
	return s, nil
}

// Close restores the terminal.
func (s *System) Close() error {
	if s.liner != nil {
		return s.liner.Close()
	}
	return nil
}

// linerInput reads with history and editing. liner writes the prompt itself.
type linerInput struct {
	st *liner.State
	cp Codepage
}

func (l *linerInput) ReadLine(prompt string) (string, error) {
	line, err := l.st.Prompt(l.cp.ToTerminal(prompt))
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		l.st.AppendHistory(line)
	}
	return l.cp.FromTerminal(line), nil
}

// encodedInput converts lines read from a stream. Prompts already pass
// through the translating writer.
type encodedInput struct {
	r  files.LineReader
	cp Codepage
}

func (e *encodedInput) ReadLine(prompt string) (string, error) {
	line, err := e.r.ReadLine(prompt)
	if err != nil {
		return "", err
	}
	return e.cp.FromTerminal(line), nil
}
