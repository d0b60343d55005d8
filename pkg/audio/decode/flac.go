// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC files frame by frame via mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/spf13/afero"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// NewFLAC creates a FLAC decoder reading from fs
func NewFLAC(fs afero.Fs) *File {
	return newFile(fs, "flac", openFLAC)
}

func openFLAC(r io.ReadSeeker) (source, audio.Format, error) {
	// Hide Close so the stream does not close the file it was handed
	stream, err := flac.New(struct{ io.Reader }{r})
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to create FLAC decoder: %w", err)
	}

	chans, err := audio.ChannelConfigFromCount(int(stream.Info.NChannels))
	if err != nil {
		stream.Close()
		return nil, audio.Format{}, err
	}

	bps := int(stream.Info.BitsPerSample)
	typ := audio.SampleInt16
	if bps > 16 {
		typ = audio.SampleFloat32
	}
	format := audio.Format{SampleRate: int(stream.Info.SampleRate), Channels: chans, Type: typ}
	scale := float32(int64(1) << (bps - 1))

	next := func() ([]byte, error) {
		frame, err := stream.ParseNext()
		if err != nil {
			return nil, err
		}
		if len(frame.Subframes) == 0 {
			return nil, nil
		}

		n := len(frame.Subframes[0].Samples)
		if typ == audio.SampleInt16 {
			pcm := make([]int16, 0, n*len(frame.Subframes))
			for i := 0; i < n; i++ {
				for _, sub := range frame.Subframes {
					pcm = append(pcm, int16(sub.Samples[i]<<(16-bps)))
				}
			}
			return audio.AppendInt16(nil, pcm), nil
		}

		pcm := make([]float32, 0, n*len(frame.Subframes))
		for i := 0; i < n; i++ {
			for _, sub := range frame.Subframes {
				pcm = append(pcm, float32(sub.Samples[i])/scale)
			}
		}
		return audio.AppendFloat32(nil, pcm), nil
	}

	return &chunkReader{next: next, close: stream.Close}, format, nil
}
