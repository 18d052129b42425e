package shared

// MessageType names the kind of a terminal websocket message.
type MessageType string

// Client -> server.
const (
	MessageTypeRun   MessageType = "run"   // Content: program source
	MessageTypeInput MessageType = "input" // Content: one console line
	MessageTypeStop  MessageType = "stop"
)

// Server -> client.
const (
	MessageTypeSession      MessageType = "session"       // SessionID of the connection
	MessageTypeText         MessageType = "text"          // PRINT output, no implied newline
	MessageTypeInputRequest MessageType = "input_request" // Content: the prompt
	MessageTypeBeep         MessageType = "beep"
	MessageTypeSound        MessageType = "sound" // Content: event kind, Clip: clip id
	MessageTypeError        MessageType = "error" // Content: error text, Line/Code when known
	MessageTypeDone         MessageType = "done"  // RunID of the finished run
)

// Message is the JSON frame exchanged over the terminal websocket.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`

	SessionID string `json:"sessionId,omitempty"`
	RunID     string `json:"runId,omitempty"`

	// Für ERROR
	Code string `json:"code,omitempty"`
	Line int    `json:"line,omitempty"`

	// Für SOUND
	Clip int `json:"clip,omitempty"`
}

// FromClient reports whether t may be sent by a client.
func (t MessageType) FromClient() bool {
	switch t {
	case MessageTypeRun, MessageTypeInput, MessageTypeStop:
		return true
	}
	return false
}
