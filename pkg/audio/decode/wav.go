// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE PCM files via go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

const wavChunkFrames = 4096

// NewWAV creates a WAV decoder reading from fs
func NewWAV(fs afero.Fs) *File {
	return newFile(fs, "wav", openWAV)
}

func openWAV(r io.ReadSeeker) (source, audio.Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, audio.Format{}, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to seek to PCM data: %w", err)
	}

	chans, err := audio.ChannelConfigFromCount(int(dec.NumChans))
	if err != nil {
		return nil, audio.Format{}, err
	}

	bits := int(dec.BitDepth)
	var typ audio.SampleType
	switch bits {
	case 8:
		typ = audio.SampleUInt8
	case 16:
		typ = audio.SampleInt16
	case 24, 32:
		typ = audio.SampleFloat32
	default:
		return nil, audio.Format{}, fmt.Errorf("unsupported bit depth: %d", bits)
	}

	format := audio.Format{SampleRate: int(dec.SampleRate), Channels: chans, Type: typ}
	buf := &goaudio.IntBuffer{
		Data: make([]int, wavChunkFrames*chans.Count()),
		Format: &goaudio.Format{
			NumChannels: chans.Count(),
			SampleRate:  format.SampleRate,
		},
		SourceBitDepth: bits,
	}
	scale := float32(goaudio.IntMaxSignedValue(bits))

	next := func() ([]byte, error) {
		n, err := dec.PCMBuffer(buf)
		if n == 0 {
			if err == nil {
				err = io.EOF
			}
			return nil, err
		}

		out := make([]byte, 0, n*typ.Size())
		switch typ {
		case audio.SampleUInt8:
			for _, v := range buf.Data[:n] {
				out = append(out, byte(v))
			}
		case audio.SampleInt16:
			for _, v := range buf.Data[:n] {
				s := int16(v)
				out = append(out, byte(s), byte(s>>8))
			}
		case audio.SampleFloat32:
			f := make([]float32, n)
			for i, v := range buf.Data[:n] {
				f[i] = float32(v) / scale
			}
			out = audio.AppendFloat32(out, f)
		}
		return out, nil
	}

	return &chunkReader{next: next}, format, nil
}
