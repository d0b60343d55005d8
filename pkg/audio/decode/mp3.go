// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to 16-bit stereo PCM via go-mp3
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/spf13/afero"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// NewMP3 creates an MP3 decoder reading from fs
func NewMP3(fs afero.Fs) *File {
	return newFile(fs, "mp3", openMP3)
}

func openMP3(r io.ReadSeeker) (source, audio.Format, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always outputs interleaved 16-bit stereo
	format := audio.Format{
		SampleRate: dec.SampleRate(),
		Channels:   audio.ChannelStereo,
		Type:       audio.SampleInt16,
	}
	return readerSource{dec}, format, nil
}

// readerSource is a codec whose decoder is already an io.Reader
type readerSource struct {
	io.Reader
}

func (readerSource) Close() error { return nil }
