package terminal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/shared"

	"github.com/gorilla/websocket"
)

// Client repräsentiert einen verbundenen WebSocket-Client
type Client struct {
	conn      *websocket.Conn
	send      chan shared.Message
	input     chan string
	shutdown  chan struct{}
	closeOnce sync.Once
	handler   *TerminalHandler
	sessionID string
	username  string
}

// Send queues msg for the client. It blocks while the queue is full, so a
// chatty program runs at the speed of the connection.
func (c *Client) Send(msg shared.Message) {
	select {
	case c.send <- msg:
	case <-c.shutdown:
	}
}

func (c *Client) sendError(format string, args ...interface{}) {
	c.Send(shared.Message{Type: shared.MessageTypeError, Content: fmt.Sprintf(format, args...)})
}

// readPump dispatches client messages until the connection ends.
func (c *Client) readPump() {
	defer c.handler.cleanupClient(c)

	c.conn.SetReadLimit(int64(c.handler.opts.MaxProgramBytes) + 4096)
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.TerminalWarn("Unexpected close for session %s: %v", c.sessionID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.sendError("binary messages are not supported")
			continue
		}
		var msg shared.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg shared.Message) {
	logger.TerminalDebug("Session %s: %s message, %d bytes", c.sessionID, msg.Type, len(msg.Content))
	if !msg.Type.FromClient() {
		c.sendError("unexpected message type %q", msg.Type)
		return
	}
	switch msg.Type {
	case shared.MessageTypeRun:
		if len(msg.Content) > c.handler.opts.MaxProgramBytes {
			c.sendError("program too large: %d bytes, limit %d", len(msg.Content), c.handler.opts.MaxProgramBytes)
			return
		}
		if err := c.startRun(msg.Content); err != nil {
			c.sendError("%v", err)
		}
	case shared.MessageTypeInput:
		if !c.handler.runs.Running(c.sessionID) {
			c.sendError("no program is running")
			return
		}
		select {
		case c.input <- msg.Content:
		default:
			c.sendError("input queue full")
		}
	case shared.MessageTypeStop:
		c.stopRun()
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.handler.cleanupClient(c)
	}()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.TerminalWarn("Write to session %s failed: %v", c.sessionID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.shutdown:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(getWriteWait()))
			return
		}
	}
}

// startRun starts text in the background unless the session already runs
// a program or the server limits forbid another run.
func (c *Client) startRun(text string) error {
	execution, err := c.handler.runs.Start(c.sessionID, c.username)
	if err != nil {
		return err
	}
	for len(c.input) > 0 {
		<-c.input
	}
	go func() {
		done := c.execute(execution.Context, text)
		c.handler.runs.Finish(c.sessionID)
		c.Send(done)
	}()
	return nil
}

func (c *Client) stopRun() {
	c.handler.runs.Stop(c.sessionID)
}
