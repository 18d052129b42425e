package terminal

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/files"
	"github.com/antibyte/retrobasic/pkg/graphics"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/lower"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/sound"
	"github.com/antibyte/retrobasic/pkg/vm"
)

// textWriter streams console output as text messages.
type textWriter struct{ c *Client }

func (w textWriter) Write(p []byte) (int, error) {
	w.c.Send(shared.Message{Type: shared.MessageTypeText, Content: string(p)})
	return len(p), nil
}

// remoteInput asks the client for a line and waits for its input message.
type remoteInput struct {
	c       *Client
	ctx     context.Context
	timeout time.Duration
}

func (r *remoteInput) ReadLine(prompt string) (string, error) {
	r.c.Send(shared.Message{Type: shared.MessageTypeInputRequest, Content: prompt})
	var expired <-chan time.Time
	if r.timeout > 0 {
		t := time.NewTimer(r.timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case line := <-r.c.input:
		return line, nil
	case <-r.ctx.Done():
		return "", r.ctx.Err()
	case <-r.c.shutdown:
		return "", io.EOF
	case <-expired:
		return "", io.EOF
	}
}

// errorMessage renders err for the client, with code and line when it is a
// BASIC error.
func errorMessage(err error) shared.Message {
	msg := shared.Message{Type: shared.MessageTypeError, Content: err.Error()}
	var be *basicerr.BASICError
	if errors.As(err, &be) {
		msg.Code = string(be.Code)
		msg.Line = be.LineNumber
	}
	return msg
}

// soundMessage maps a player event to a message.
func soundMessage(e sound.Event) shared.Message {
	if e.Kind == sound.EventBeep {
		return shared.Message{Type: shared.MessageTypeBeep}
	}
	msg := shared.Message{Type: shared.MessageTypeSound, Content: e.Kind.String()}
	if e.Clip != nil {
		msg.Clip = e.Clip.ID
	}
	return msg
}

// execute compiles and runs text with a console on the websocket and returns
// the closing done message.
func (c *Client) execute(ctx context.Context, text string) shared.Message {
	opts := c.handler.opts
	done := shared.Message{Type: shared.MessageTypeDone, SessionID: c.sessionID}

	prog, err := lower.Compile(strings.NewReader(text), opts.Duplicates)
	if err != nil {
		logger.TerminalDebug("Session %s: compile failed: %v", c.sessionID, err)
		c.Send(errorMessage(err))
		return done
	}

	env := opts.Env
	if env == nil {
		env = vm.NewProcessEnv()
	}
	player := sound.NewPlayer(nil, opts.Storage, opts.Sound)
	player.OnEvent = func(e sound.Event) { c.Send(soundMessage(e)) }

	machine := vm.New(prog, vm.Services{
		Console: files.NewConsole(textWriter{c}, &remoteInput{c: c, ctx: ctx, timeout: opts.InputTimeout}),
		Files:   files.NewTable(opts.Storage),
		Env:     env,
		Canvas:  graphics.NewNullCanvas(),
		Sound:   player,
	}, opts.VM)

	err = machine.Run(ctx)
	done.RunID = machine.RunID()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		logger.TerminalInfo("Session %s: run %s hit the time limit", c.sessionID, done.RunID)
		c.sendError("time limit exceeded")
		done.Content = "timeout"
	case ctx.Err() != nil:
		logger.TerminalInfo("Session %s: run %s stopped", c.sessionID, done.RunID)
		done.Content = "stopped"
	case err != nil:
		logger.TerminalInfo("Session %s: run %s failed: %v", c.sessionID, done.RunID, err)
		c.Send(errorMessage(err))
	}
	return done
}
