// ABOUTME: Tests for file decoders and the asset manager
// ABOUTME: Encodes WAV fixtures into an in-memory filesystem and decodes them back
package decode

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

func writeWAV(t *testing.T, fs afero.Fs, name string, rate, bits, chans int, data []int) {
	t.Helper()
	f, err := fs.Create(name)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bits, chans, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: chans, SampleRate: rate},
		SourceBitDepth: bits,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finish wav: %v", err)
	}
}

func ramp(n int) []int {
	data := make([]int, n)
	for i := range data {
		data[i] = i - n/2
	}
	return data
}

func TestWAVDecode(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := ramp(2000) // 1000 stereo frames
	writeWAV(t, fs, "sfx/ramp.wav", 44100, 16, 2, data)

	dec := NewWAV(fs)
	if err := dec.Open("sfx/ramp.wav"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer dec.Close()

	info, err := dec.Info()
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	want := audio.Format{SampleRate: 44100, Channels: audio.ChannelStereo, Type: audio.SampleInt16}
	if info != want {
		t.Errorf("expected %s, got %s", want, info)
	}

	buf := make([]byte, 400)
	n, err := dec.Read(buf)
	if err != nil || n != 400 {
		t.Fatalf("expected full read, got %d, %v", n, err)
	}
	if got := int16(binary.LittleEndian.Uint16(buf)); int(got) != data[0] {
		t.Errorf("expected first sample %d, got %d", data[0], got)
	}
	if dec.SampleOffset() != 100 {
		t.Errorf("expected offset 100 frames, got %d", dec.SampleOffset())
	}

	rest, err := dec.ReadAll()
	if err != nil {
		t.Fatalf("read all failed: %v", err)
	}
	if len(rest) != 4000-400 {
		t.Errorf("expected %d remaining bytes, got %d", 4000-400, len(rest))
	}
	if dec.SampleOffset() != 1000 {
		t.Errorf("expected offset 1000 frames, got %d", dec.SampleOffset())
	}

	n, err = dec.Read(buf)
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF after end, got %d, %v", n, err)
	}
}

func TestWAVShortRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "short.wav", 22050, 8, 1, []int{0x80, 0x90, 0xa0})

	dec := NewWAV(fs)
	if err := dec.Open("short.wav"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer dec.Close()

	info, _ := dec.Info()
	if info.Type != audio.SampleUInt8 || info.Channels != audio.ChannelMono {
		t.Fatalf("unexpected format %s", info)
	}

	buf := make([]byte, 16)
	n, err := dec.Read(buf)
	if n != 3 {
		t.Errorf("expected 3 bytes, got %d", n)
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF on short read, got %v", err)
	}
}

func TestFileNotOpen(t *testing.T) {
	dec := NewWAV(afero.NewMemMapFs())
	if _, err := dec.Info(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if _, err := dec.Read(make([]byte, 4)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Errorf("close of unopened decoder should succeed, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	dec := NewWAV(afero.NewMemMapFs())
	if err := dec.Open("nope.wav"); err == nil {
		t.Error("expected error opening missing file")
	}
}

func TestOpenInvalidWAV(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "junk.wav", []byte("definitely not riff"), 0o644)

	dec := NewWAV(fs)
	if err := dec.Open("junk.wav"); err == nil {
		t.Error("expected error for invalid wav")
	}
}

func TestManagerDecoderByExtension(t *testing.T) {
	m := NewManager(afero.NewMemMapFs())

	tests := []struct {
		name  string
		codec string
	}{
		{"a.wav", "wav"},
		{"b.MP3", "mp3"},
		{"c.flac", "flac"},
		{"d.ogg", "vorbis"},
		{"e.opus", "opus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := m.Decoder(tt.name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			f, ok := dec.(*File)
			if !ok {
				t.Fatalf("expected *File, got %T", dec)
			}
			if f.Codec() != tt.codec {
				t.Errorf("expected codec %s, got %s", tt.codec, f.Codec())
			}
		})
	}

	if _, ok := mustDecoder(t, m, "ws://localhost:1/pcm").(*WebSocket); !ok {
		t.Error("expected WebSocket decoder for ws:// URL")
	}
	if _, err := m.Decoder("readme.txt"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func mustDecoder(t *testing.T, m *Manager, name string) Decoder {
	t.Helper()
	dec, err := m.Decoder(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return dec
}

func TestManagerResolveFallsBackToMP3(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "vo/line1.mp3", []byte{0}, 0o644)
	afero.WriteFile(fs, "vo/line2.wav", []byte{0}, 0o644)
	m := NewManager(fs)

	if got := m.Resolve("vo/line1.wav"); got != "vo/line1.mp3" {
		t.Errorf("expected mp3 fallback, got %s", got)
	}
	if got := m.Resolve("vo/line2.wav"); got != "vo/line2.wav" {
		t.Errorf("existing asset should not be replaced, got %s", got)
	}
	if got := m.Resolve("vo/line3.wav"); got != "vo/line3.wav" {
		t.Errorf("missing asset without fallback should keep its name, got %s", got)
	}
}

func TestManagerOpenWAV(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "tone.wav", 48000, 16, 1, ramp(480))
	m := NewManager(fs)

	dec, err := m.Open("tone.wav")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer dec.Close()

	if dec.Name() != "tone.wav" {
		t.Errorf("expected name tone.wav, got %s", dec.Name())
	}
	pcm, err := dec.ReadAll()
	if err != nil {
		t.Fatalf("read all failed: %v", err)
	}
	if len(pcm) != 960 {
		t.Errorf("expected 960 bytes, got %d", len(pcm))
	}
}

func TestChunkReaderStopsOnError(t *testing.T) {
	chunks := [][]byte{{1, 2}, {3}}
	r := &chunkReader{next: func() ([]byte, error) {
		if len(chunks) == 0 {
			return nil, io.EOF
		}
		c := chunks[0]
		chunks = chunks[1:]
		return c, nil
	}}

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("unexpected bytes %v", got)
	}
}

func TestChunkReaderNoProgress(t *testing.T) {
	r := &chunkReader{next: func() ([]byte, error) { return nil, nil }}
	if _, err := r.Read(make([]byte, 4)); !errors.Is(err, io.ErrNoProgress) {
		t.Errorf("expected ErrNoProgress, got %v", err)
	}
}
