// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files to 16-bit PCM at 48kHz via libopusfile
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// Opus always decodes at 48kHz
const opusSampleRate = 48000

// Largest Opus frame: 120ms at 48kHz
const opusMaxFrame = 5760

// NewOpus creates an Ogg Opus decoder reading from fs
func NewOpus(fs afero.Fs) *File {
	return newFile(fs, "opus", openOpus)
}

func openOpus(r io.ReadSeeker) (source, audio.Format, error) {
	channels, err := opusChannels(r)
	if err != nil {
		return nil, audio.Format{}, err
	}
	chans, err := audio.ChannelConfigFromCount(channels)
	if err != nil {
		return nil, audio.Format{}, err
	}

	s, err := opus.NewStream(struct{ io.Reader }{r})
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to create opus stream: %w", err)
	}

	format := audio.Format{SampleRate: opusSampleRate, Channels: chans, Type: audio.SampleInt16}
	pcm := make([]int16, opusMaxFrame*channels)
	next := func() ([]byte, error) {
		// n is samples per channel
		n, err := s.Read(pcm)
		if n == 0 {
			if err == nil {
				err = io.EOF
			}
			return nil, err
		}
		return audio.AppendInt16(nil, pcm[:n*channels]), nil
	}

	return &chunkReader{next: next, close: s.Close}, format, nil
}

// opusChannels reads the channel count from the OpusHead packet in the
// first Ogg page, then rewinds r
func opusChannels(r io.ReadSeeker) (int, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("failed to read ogg header: %w", err)
	}
	head = head[:n]

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind: %w", err)
	}

	i := bytes.Index(head, []byte("OpusHead"))
	if i < 0 || i+9 >= len(head) {
		return 0, errors.New("missing OpusHead packet")
	}
	return int(head[i+9]), nil
}
