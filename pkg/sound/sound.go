// Package sound implements BEEP and the WAV clip statements.
package sound

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/logger"
)

func soundDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaSound, "[SOUND] "+format, args...)
}

// BEL is written to the console for BEEP.
const BEL = "\a"

// Loader supplies the bytes of a WAV file.
type Loader interface {
	Load(name string) ([]byte, error)
}

// EventKind says what happened to a clip.
type EventKind int

const (
	EventBeep EventKind = iota
	EventPlay
	EventLoop
	EventStop
)

func (k EventKind) String() string {
	switch k {
	case EventBeep:
		return "beep"
	case EventPlay:
		return "play"
	case EventLoop:
		return "loop"
	case EventStop:
		return "stop"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is reported to the player's listener, if any.
type Event struct {
	Kind EventKind
	Clip *Clip
}

// Clip is a loaded WAV file.
type Clip struct {
	ID         int
	Name       string
	Channels   int
	SampleRate int
	Bits       int
	Data       []byte
	Playing    bool
	Looping    bool
}

// Duration returns the play time of one pass through the clip.
func (c *Clip) Duration() time.Duration {
	frame := c.Channels * c.Bits / 8
	if frame == 0 || c.SampleRate == 0 {
		return 0
	}
	frames := len(c.Data) / frame
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Player keeps the loaded clips. Playback itself is left to the listener;
// without one the player only tracks state.
type Player struct {
	out     io.Writer
	loader  Loader
	enabled bool
	clips   map[int]*Clip
	// OnEvent, when set, receives every beep and clip state change.
	OnEvent func(Event)
}

// NewPlayer returns a player writing BEL to out and loading clips through
// loader. A disabled player accepts every statement silently.
func NewPlayer(out io.Writer, loader Loader, enabled bool) *Player {
	return &Player{out: out, loader: loader, enabled: enabled, clips: make(map[int]*Clip)}
}

func (p *Player) emit(kind EventKind, c *Clip) {
	if p.OnEvent != nil {
		p.OnEvent(Event{Kind: kind, Clip: c})
	}
}

// Beep sounds the console bell.
func (p *Player) Beep() error {
	if !p.enabled {
		return nil
	}
	if p.out != nil {
		if _, err := io.WriteString(p.out, BEL); err != nil {
			return basicerr.RuntimeWrap(basicerr.IOError, err)
		}
	}
	p.emit(EventBeep, nil)
	return nil
}

// LoadWav reads name and stores it as clip id, replacing an earlier clip
// with the same id.
func (p *Player) LoadWav(name string, id int) error {
	if id < 0 {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "clip number %d", id)
	}
	if p.loader == nil {
		return basicerr.Runtime(basicerr.FileNotFound, "%s", name)
	}
	data, err := p.loader.Load(name)
	if err != nil {
		return basicerr.Runtime(basicerr.FileNotFound, "%s: %v", name, err)
	}
	c, err := ParseWav(data)
	if err != nil {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "%s: %v", name, err)
	}
	c.ID, c.Name = id, name
	if old, ok := p.clips[id]; ok && old.Playing {
		p.emit(EventStop, old)
	}
	p.clips[id] = c
	soundDebugLog("loaded %s as clip %d (%d Hz, %d ch, %v)", name, id, c.SampleRate, c.Channels, c.Duration())
	return nil
}

func (p *Player) clip(id int) (*Clip, error) {
	c, ok := p.clips[id]
	if !ok {
		return nil, basicerr.Runtime(basicerr.IllegalFunctionCall, "no clip loaded as %d", id)
	}
	return c, nil
}

// Play starts clip id once.
func (p *Player) Play(id int) error {
	return p.start(id, false)
}

// Loop starts clip id repeating until stopped.
func (p *Player) Loop(id int) error {
	return p.start(id, true)
}

func (p *Player) start(id int, loop bool) error {
	c, err := p.clip(id)
	if err != nil {
		return err
	}
	if !p.enabled {
		return nil
	}
	c.Playing, c.Looping = true, loop
	if loop {
		p.emit(EventLoop, c)
	} else {
		p.emit(EventPlay, c)
	}
	return nil
}

// Stop halts clip id. Stopping a clip that is not playing does nothing.
func (p *Player) Stop(id int) error {
	c, err := p.clip(id)
	if err != nil {
		return err
	}
	if c.Playing {
		c.Playing, c.Looping = false, false
		p.emit(EventStop, c)
	}
	return nil
}

// StopAll halts every clip; called when the program ends.
func (p *Player) StopAll() {
	for _, c := range p.clips {
		if c.Playing {
			c.Playing, c.Looping = false, false
			p.emit(EventStop, c)
		}
	}
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

type formatChunk struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// ParseWav validates a RIFF/WAVE file and returns its format and samples.
func ParseWav(data []byte) (*Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}
	r := bytes.NewReader(data[12:])
	var (
		fmtChunk *formatChunk
		samples  []byte
	)
	for samples == nil {
		var h chunkHeader
		if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
			return nil, fmt.Errorf("missing data chunk")
		}
		if int64(h.Size) > int64(r.Len()) {
			return nil, fmt.Errorf("chunk %q truncated", h.ID[:])
		}
		body := make([]byte, h.Size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		switch string(h.ID[:]) {
		case "fmt ":
			var f formatChunk
			if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &f); err != nil {
				return nil, fmt.Errorf("short fmt chunk")
			}
			fmtChunk = &f
		case "data":
			if fmtChunk == nil {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			samples = body
		}
		// chunks are word aligned
		if h.Size%2 == 1 && r.Len() > 0 {
			r.ReadByte()
		}
	}
	if fmtChunk.AudioFormat != 1 {
		return nil, fmt.Errorf("unsupported encoding %d", fmtChunk.AudioFormat)
	}
	if fmtChunk.Channels == 0 || fmtChunk.SampleRate == 0 {
		return nil, fmt.Errorf("invalid format")
	}
	return &Clip{
		Channels:   int(fmtChunk.Channels),
		SampleRate: int(fmtChunk.SampleRate),
		Bits:       int(fmtChunk.BitsPerSample),
		Data:       samples,
	}, nil
}
