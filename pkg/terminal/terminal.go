// Package terminal is the remote console: a websocket endpoint that runs
// submitted programs and streams their console to the browser.
package terminal

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/auth"
	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/files"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/resources"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/source"
	"github.com/antibyte/retrobasic/pkg/vm"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultMaxProgram = 64 * 1024
	sendBuffer        = 256
	inputBuffer       = 16
)

func getWriteWait() time.Duration {
	return configuration.GetDuration("Terminal", "write_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Terminal", "pong_timeout", 60*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

// Options configure the endpoint and every program run through it.
type Options struct {
	RequireToken    bool
	MaxProgramBytes int
	// InputTimeout ends a waiting INPUT with INPUT_PAST_END; 0 waits forever.
	InputTimeout   time.Duration
	Duplicates     source.DuplicateMode
	AllowedOrigins []string
	VM             vm.Options
	// Storage holds the BASIC data files and WAV clips of all sessions.
	Storage files.Storage
	// Env is shared by all sessions; nil gives each run a snapshot of the
	// process environment.
	Env   vm.Environment
	Sound bool
	// Runs tracks the programs of all sessions; nil means no limits.
	Runs *resources.RunManager
}

// OptionsFromConfig reads the [Terminal], [Interpreter], [Files] and
// [Sound] sections.
func OptionsFromConfig() Options {
	var origins []string
	for _, o := range strings.Split(configuration.GetString("Terminal", "allowed_origins", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return Options{
		RequireToken:    configuration.GetBool("Terminal", "require_token", false),
		MaxProgramBytes: configuration.GetInt("Terminal", "max_program_kb", 64) * 1024,
		InputTimeout:    configuration.GetDuration("Terminal", "input_timeout", 0),
		Duplicates:      source.ParseDuplicateMode(configuration.GetString("Interpreter", "duplicate_lines", "error")),
		AllowedOrigins:  origins,
		VM:              vm.OptionsFromConfig(),
		Storage:         files.OSStorage{Dir: configuration.GetString("Files", "base_dir", ".")},
		Sound:           configuration.GetBool("Sound", "enabled", true),
		Runs:            resources.NewRunManager(resources.LimitsFromConfig()),
	}
}

// TerminalHandler verwaltet WebSocket-Verbindungen und deren Programmläufe
type TerminalHandler struct {
	opts     Options
	runs     *resources.RunManager
	upgrader websocket.Upgrader
	clients  map[*Client]bool
	mutex    sync.RWMutex
}

// NewTerminalHandler returns a handler running programs with opts.
func NewTerminalHandler(opts Options) *TerminalHandler {
	if opts.MaxProgramBytes <= 0 {
		opts.MaxProgramBytes = defaultMaxProgram
	}
	if opts.Storage == nil {
		opts.Storage = files.OSStorage{Dir: "."}
	}
	if opts.Runs == nil {
		opts.Runs = resources.NewRunManager(resources.Limits{})
	}
	h := &TerminalHandler{
		opts:    opts,
		runs:    opts.Runs,
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if len(opts.AllowedOrigins) > 0 {
		h.upgrader.CheckOrigin = h.checkOrigin
	}
	return h
}

func (h *TerminalHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	logger.TerminalWarn("WebSocket request from disallowed origin rejected: %q", origin)
	return false
}

// HandleWebSocket upgrades the request and serves one client until it
// disconnects.
func (h *TerminalHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	username := "guest"
	if h.opts.RequireToken {
		token, err := auth.ExtractTokenFromRequest(r)
		if err != nil {
			logger.TerminalWarn("Connection from %s without token: %v", r.RemoteAddr, err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ValidateUserToken(token)
		if err != nil {
			logger.TerminalWarn("Connection from %s with invalid token: %v", r.RemoteAddr, err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		username = claims.Username
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.TerminalError("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan shared.Message, sendBuffer),
		input:     make(chan string, inputBuffer),
		shutdown:  make(chan struct{}),
		handler:   h,
		sessionID: uuid.NewString(),
		username:  username,
	}
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()
	logger.TerminalInfo("Session %s opened for %s from %s", client.sessionID, username, r.RemoteAddr)

	client.Send(shared.Message{Type: shared.MessageTypeSession, SessionID: client.sessionID})
	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (h *TerminalHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Shutdown stops every running program and closes all connections.
func (h *TerminalHandler) Shutdown() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()
	for _, c := range clients {
		h.cleanupClient(c)
	}
}

func (h *TerminalHandler) cleanupClient(c *Client) {
	h.mutex.Lock()
	if !h.clients[c] {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, c)
	h.mutex.Unlock()

	c.stopRun()
	c.closeOnce.Do(func() { close(c.shutdown) })
	c.conn.Close()
	logger.TerminalInfo("Session %s closed", c.sessionID)
}
