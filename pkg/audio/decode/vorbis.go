// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes Ogg Vorbis files to 32-bit float PCM via oggvorbis
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
	"github.com/spf13/afero"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// NewVorbis creates an Ogg Vorbis decoder reading from fs
func NewVorbis(fs afero.Fs) *File {
	return newFile(fs, "vorbis", openVorbis)
}

func openVorbis(r io.ReadSeeker) (source, audio.Format, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to create vorbis decoder: %w", err)
	}

	chans, err := audio.ChannelConfigFromCount(dec.Channels())
	if err != nil {
		return nil, audio.Format{}, err
	}
	format := audio.Format{SampleRate: dec.SampleRate(), Channels: chans, Type: audio.SampleFloat32}

	// Read returns a value count that is always a multiple of the channel count
	buf := make([]float32, 4096*chans.Count())
	next := func() ([]byte, error) {
		n, err := dec.Read(buf)
		if n == 0 {
			return nil, err
		}
		return audio.AppendFloat32(nil, buf[:n]), err
	}

	return &chunkReader{next: next}, format, nil
}
