// ABOUTME: Decoder interface definition
// ABOUTME: Common contract for every source of decoded PCM
package decode

import (
	"errors"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

// ErrNotOpen is returned by decoders used before Open
var ErrNotOpen = errors.New("decoder not open")

// Decoder produces interleaved PCM for a named asset
type Decoder interface {
	// Open prepares the named asset for decoding
	Open(name string) error

	// Close releases decoder resources
	Close() error

	// Info returns the format of the PCM produced by Read
	Info() (audio.Format, error)

	// Read fills p with PCM. A read shorter than len(p) means the
	// asset is exhausted; err is then nil or io.EOF.
	Read(p []byte) (int, error)

	// ReadAll decodes everything that is left
	ReadAll() ([]byte, error)

	// SampleOffset returns the number of frames read so far
	SampleOffset() int64

	// Name returns the asset name for diagnostics
	Name() string
}
