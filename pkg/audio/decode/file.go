// ABOUTME: Shared file-backed decoder
// ABOUTME: Opens an asset from a filesystem and reads PCM from a codec source
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

// source is a codec reader producing PCM bytes in its declared format
type source interface {
	io.Reader
	Close() error
}

// openFunc starts decoding r and reports the PCM format it produces
type openFunc func(r io.ReadSeeker) (source, audio.Format, error)

// File decodes an asset stored on an afero filesystem
type File struct {
	fs    afero.Fs
	codec string
	open  openFunc

	name   string
	file   afero.File
	src    source
	format audio.Format
	read   int64
	eof    bool
}

func newFile(fs afero.Fs, codec string, open openFunc) *File {
	return &File{fs: fs, codec: codec, open: open}
}

// Open opens and starts decoding the named file. A File can be reopened
// after Close.
func (f *File) Open(name string) error {
	if f.file != nil {
		f.Close()
	}

	file, err := f.fs.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}

	src, format, err := f.open(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: %s decoder for %s: %w", voice.ErrDecodeFailure, f.codec, name, err)
	}

	f.name = name
	f.file = file
	f.src = src
	f.format = format
	f.read = 0
	f.eof = false
	return nil
}

// Close releases the codec and the underlying file
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}
	var err error
	if f.src != nil {
		err = f.src.Close()
	}
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	f.file = nil
	f.src = nil
	return err
}

// Info returns the PCM format of the open asset
func (f *File) Info() (audio.Format, error) {
	if f.src == nil {
		return audio.Format{}, ErrNotOpen
	}
	return f.format, nil
}

// Read fills p completely unless the asset ends first
func (f *File) Read(p []byte) (int, error) {
	if f.src == nil {
		return 0, ErrNotOpen
	}
	if f.eof {
		return 0, io.EOF
	}

	n, err := io.ReadFull(f.src, p)
	f.read += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			f.eof = true
			return n, io.EOF
		}
		return n, fmt.Errorf("%w: %s: %w", voice.ErrDecodeFailure, f.name, err)
	}
	return n, nil
}

// ReadAll decodes the rest of the asset
func (f *File) ReadAll() ([]byte, error) {
	return readAll(f)
}

// SampleOffset returns the frames handed out so far
func (f *File) SampleOffset() int64 {
	size := f.format.FrameSize()
	if size == 0 {
		return 0
	}
	return f.read / int64(size)
}

// Name returns the opened asset name
func (f *File) Name() string {
	return f.name
}

// Codec returns the codec name
func (f *File) Codec() string {
	return f.codec
}

func readAll(r io.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if n < len(buf) {
			return out, nil
		}
	}
}

// chunkReader adapts a frame-at-a-time codec to io.Reader
type chunkReader struct {
	next    func() ([]byte, error)
	close   func() error
	pending []byte
	err     error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for empty := 0; len(c.pending) == 0; empty++ {
		if c.err != nil {
			return 0, c.err
		}
		if empty > 100 {
			return 0, io.ErrNoProgress
		}
		c.pending, c.err = c.next()
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *chunkReader) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}
