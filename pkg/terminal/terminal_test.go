package terminal

import (
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/resources"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/vm"

	"github.com/gorilla/websocket"
)

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memStorage) Load(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.files[name]; ok {
		return append([]byte(nil), b...), nil
	}
	return nil, fs.ErrNotExist
}

func (m *memStorage) Save(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	return nil
}

// dial starts a server for opts and connects to it. The session message is
// consumed and checked.
func dial(t *testing.T, opts Options, query string) *websocket.Conn {
	t.Helper()
	if opts.Storage == nil {
		opts.Storage = &memStorage{files: map[string][]byte{}}
	}
	if opts.Env == nil {
		opts.Env = vm.NewMapEnv(nil)
	}
	h := NewTerminalHandler(opts)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
	})
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+query, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	msg := read(t, conn)
	if msg.Type != shared.MessageTypeSession || len(msg.SessionID) != 36 {
		t.Fatalf("first message = %+v, want a session id", msg)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) shared.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg shared.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, typ shared.MessageType, content string) {
	t.Helper()
	if err := conn.WriteJSON(shared.Message{Type: typ, Content: content}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// until reads messages up to the first one of type typ and returns it with
// the text output seen before it.
func until(t *testing.T, conn *websocket.Conn, typ shared.MessageType) (string, shared.Message) {
	t.Helper()
	var out strings.Builder
	for {
		msg := read(t, conn)
		if msg.Type == typ {
			return out.String(), msg
		}
		if msg.Type == shared.MessageTypeText {
			out.WriteString(msg.Content)
		}
	}
}

func TestRunWithInput(t *testing.T) {
	conn := dial(t, Options{}, "")

	send(t, conn, shared.MessageTypeRun, "10 INPUT \"N\"; N\n20 PRINT N * 2\n")
	_, req := until(t, conn, shared.MessageTypeInputRequest)
	if req.Content != "N? " {
		t.Errorf("prompt = %q", req.Content)
	}
	send(t, conn, shared.MessageTypeInput, "21")
	out, done := until(t, conn, shared.MessageTypeDone)
	if out != " 42 \n" {
		t.Errorf("output = %q", out)
	}
	if done.RunID == "" || done.Content != "" {
		t.Errorf("done = %+v", done)
	}

	// The connection takes another program once the first one is done.
	send(t, conn, shared.MessageTypeRun, "10 PRINT \"OK\"\n")
	if out, _ := until(t, conn, shared.MessageTypeDone); out != "OK\n" {
		t.Errorf("second run output = %q", out)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		program string
		output  string
		code    string
		line    int
	}{
		{"runtime", "10 PRINT \"A\"\n20 X = 0: PRINT 1 / X\n", "A\n", "DIVISION_BY_ZERO", 20},
		{"missing line", "10 GOTO 99\n", "", "UNDEFINED_LINE", 10},
		{"no line number", "PRINT 1\n", "", "", 0},
	}
	conn := dial(t, Options{}, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, shared.MessageTypeRun, tt.program)
			out, msg := until(t, conn, shared.MessageTypeError)
			if out != tt.output {
				t.Errorf("output = %q, want %q", out, tt.output)
			}
			if tt.code != "" && (msg.Code != tt.code || msg.Line != tt.line) {
				t.Errorf("error = %s in line %d, want %s in line %d", msg.Code, msg.Line, tt.code, tt.line)
			}
			if msg.Content == "" {
				t.Error("error message has no text")
			}
			until(t, conn, shared.MessageTypeDone)
		})
	}
}

func TestStop(t *testing.T) {
	conn := dial(t, Options{}, "")
	send(t, conn, shared.MessageTypeRun, "10 GOTO 10\n")
	send(t, conn, shared.MessageTypeRun, "10 END\n")
	if _, msg := until(t, conn, shared.MessageTypeError); !strings.Contains(msg.Content, "already running") {
		t.Errorf("second run: %+v", msg)
	}
	send(t, conn, shared.MessageTypeStop, "")
	if _, done := until(t, conn, shared.MessageTypeDone); done.Content != "stopped" {
		t.Errorf("done = %+v", done)
	}
}

func TestRunTimeLimit(t *testing.T) {
	runs := resources.NewRunManager(resources.Limits{MaxRunTime: 30 * time.Millisecond})
	conn := dial(t, Options{Runs: runs}, "")
	send(t, conn, shared.MessageTypeRun, "10 GOTO 10\n")
	if _, msg := until(t, conn, shared.MessageTypeError); msg.Content != "time limit exceeded" {
		t.Errorf("error = %+v", msg)
	}
	if _, done := until(t, conn, shared.MessageTypeDone); done.Content != "timeout" {
		t.Errorf("done = %+v", done)
	}
	if len(runs.Active()) != 0 {
		t.Error("run still registered")
	}
}

func TestInputTimeout(t *testing.T) {
	conn := dial(t, Options{InputTimeout: 20 * time.Millisecond}, "")
	send(t, conn, shared.MessageTypeRun, "10 INPUT A\n")
	_, msg := until(t, conn, shared.MessageTypeError)
	if msg.Code != "INPUT_PAST_END" || msg.Line != 10 {
		t.Errorf("error = %+v", msg)
	}
}

func TestRejectedMessages(t *testing.T) {
	conn := dial(t, Options{MaxProgramBytes: 16}, "")

	send(t, conn, shared.MessageTypeText, "hello")
	if msg := read(t, conn); msg.Type != shared.MessageTypeError {
		t.Errorf("server message type accepted: %+v", msg)
	}
	send(t, conn, shared.MessageTypeInput, "1")
	if msg := read(t, conn); !strings.Contains(msg.Content, "no program") {
		t.Errorf("idle input: %+v", msg)
	}
	send(t, conn, shared.MessageTypeRun, strings.Repeat("10 REM\n", 10))
	if msg := read(t, conn); !strings.Contains(msg.Content, "too large") {
		t.Errorf("large program: %+v", msg)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatal(err)
	}
	if msg := read(t, conn); !strings.Contains(msg.Content, "invalid message") {
		t.Errorf("bad json: %+v", msg)
	}
}

func TestSharedStorage(t *testing.T) {
	store := &memStorage{files: map[string][]byte{}}
	conn := dial(t, Options{Storage: store}, "")
	send(t, conn, shared.MessageTypeRun, "10 OPEN \"O\", #1, \"LOG.TXT\"\n20 PRINT #1, \"HI\"\n")
	until(t, conn, shared.MessageTypeDone)
	send(t, conn, shared.MessageTypeRun, "10 OPEN \"I\", #1, \"LOG.TXT\"\n20 LINE INPUT #1, A$\n30 PRINT A$\n")
	if out, _ := until(t, conn, shared.MessageTypeDone); out != "HI\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRequireToken(t *testing.T) {
	h := NewTerminalHandler(Options{RequireToken: true, Storage: &memStorage{files: map[string][]byte{}}})
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()
	defer h.Shutdown()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if !errors.Is(err, websocket.ErrBadHandshake) || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token: %v", err)
	}

	token, err := auth.GenerateUserToken("s-1", "dave")
	if err != nil {
		t.Fatal(err)
	}
	conn := dial(t, Options{RequireToken: true}, "?token="+token)
	send(t, conn, shared.MessageTypeRun, "10 PRINT 1\n")
	if out, _ := until(t, conn, shared.MessageTypeDone); out != " 1 \n" {
		t.Errorf("output = %q", out)
	}
}
