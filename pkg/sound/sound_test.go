package sound

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"testing"
	"time"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

type mapLoader map[string][]byte

func (m mapLoader) Load(name string) ([]byte, error) {
	if b, ok := m[name]; ok {
		return b, nil
	}
	return nil, fs.ErrNotExist
}

// wavFile builds a PCM mono 8-bit file with n samples.
func wavFile(rate uint32, n int) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+n))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, formatChunk{
		AudioFormat: 1, Channels: 1, SampleRate: rate, ByteRate: rate, BlockAlign: 1, BitsPerSample: 8,
	})
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(n))
	b.Write(make([]byte, n))
	return b.Bytes()
}

func TestParseWav(t *testing.T) {
	c, err := ParseWav(wavFile(8000, 4000))
	if err != nil {
		t.Fatal(err)
	}
	if c.SampleRate != 8000 || c.Channels != 1 || c.Bits != 8 {
		t.Errorf("format = %+v", c)
	}
	if c.Duration() != 500*time.Millisecond {
		t.Errorf("Duration = %v", c.Duration())
	}

	bad := map[string][]byte{
		"empty":     nil,
		"not riff":  []byte("RIFX\x00\x00\x00\x00WAVE"),
		"truncated": wavFile(8000, 10)[:40],
		"no data":   wavFile(8000, 0)[:36],
	}
	for name, data := range bad {
		if _, err := ParseWav(data); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestPlayer(t *testing.T) {
	var out bytes.Buffer
	var events []EventKind
	p := NewPlayer(&out, mapLoader{"BOOM.WAV": wavFile(11025, 100)}, true)
	p.OnEvent = func(e Event) { events = append(events, e.Kind) }

	if err := p.Beep(); err != nil {
		t.Fatal(err)
	}
	if out.String() != BEL {
		t.Errorf("Beep wrote %q", out.String())
	}
	if err := p.LoadWav("MISSING.WAV", 1); !basicerr.Is(err, basicerr.FileNotFound) {
		t.Errorf("LoadWav of missing file = %v", err)
	}
	if err := p.Play(1); !basicerr.Is(err, basicerr.IllegalFunctionCall) {
		t.Errorf("Play of unknown clip = %v", err)
	}
	if err := p.LoadWav("BOOM.WAV", 1); err != nil {
		t.Fatal(err)
	}
	for _, step := range []func(int) error{p.Play, p.Stop, p.Stop, p.Loop} {
		if err := step(1); err != nil {
			t.Fatal(err)
		}
	}
	p.StopAll()

	want := []EventKind{EventBeep, EventPlay, EventStop, EventLoop, EventStop}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestDisabledPlayer(t *testing.T) {
	var out bytes.Buffer
	p := NewPlayer(&out, mapLoader{"A.WAV": wavFile(8000, 8)}, false)
	if err := p.Beep(); err != nil || out.Len() != 0 {
		t.Errorf("disabled Beep wrote %q, %v", out.String(), err)
	}
	if err := p.LoadWav("A.WAV", 2); err != nil {
		t.Fatal(err)
	}
	if err := p.Play(2); err != nil {
		t.Fatal(err)
	}
	if p.clips[2].Playing {
		t.Error("disabled player started a clip")
	}
}
