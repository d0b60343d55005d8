// ABOUTME: Raw PCM decoder fed over a WebSocket
// ABOUTME: Reads a JSON format header then binary PCM messages until the peer closes
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

// StreamHeader is the first message sent by a PCM WebSocket source
type StreamHeader struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Format     string `json:"format"` // u8, s16 or f32
}

// ParseSampleType maps a header format name to a sample type
func ParseSampleType(name string) (audio.SampleType, error) {
	switch name {
	case "u8":
		return audio.SampleUInt8, nil
	case "s16", "":
		return audio.SampleInt16, nil
	case "f32":
		return audio.SampleFloat32, nil
	}
	return 0, fmt.Errorf("unknown sample format %q", name)
}

// DefaultReadTimeout bounds how long Read waits for the peer to send data
const DefaultReadTimeout = 500 * time.Millisecond

// WebSocket decodes raw PCM streamed from a ws:// or wss:// URL. Frames
// are received on a separate goroutine, so Read never waits on the
// network for longer than the read timeout.
type WebSocket struct {
	dialer      *websocket.Dialer
	timeout     time.Duration
	readTimeout time.Duration

	mu      sync.Mutex
	msgs    <-chan wsMessage
	name    string
	format  audio.Format
	pending []byte
	read    int64
	eof     bool

	// connMu is never held while waiting for data
	connMu sync.Mutex
	conn   *websocket.Conn
	quit   chan struct{}
}

type wsMessage struct {
	data []byte
	err  error
}

// NewWebSocket creates a WebSocket PCM decoder
func NewWebSocket(dialer *websocket.Dialer) *WebSocket {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocket{dialer: dialer, timeout: 10 * time.Second, readTimeout: DefaultReadTimeout}
}

// SetReadTimeout sets how long Read waits for the next frame before the
// stream is treated as failed
func (w *WebSocket) SetReadTimeout(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d > 0 {
		w.readTimeout = d
	}
}

// Open dials url, reads the stream header and starts receiving frames
func (w *WebSocket) Open(url string) error {
	w.Close()

	conn, _, err := w.dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(w.timeout))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read stream header: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if msgType != websocket.TextMessage {
		conn.Close()
		return fmt.Errorf("%w: expected text header from %s", voice.ErrDecodeFailure, url)
	}

	var hdr StreamHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		conn.Close()
		return fmt.Errorf("%w: bad stream header: %w", voice.ErrDecodeFailure, err)
	}
	format, err := hdr.format()
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", voice.ErrDecodeFailure, err)
	}

	msgs := make(chan wsMessage, 16)
	quit := make(chan struct{})
	go receive(conn, url, msgs, quit)

	w.connMu.Lock()
	w.conn = conn
	w.quit = quit
	w.connMu.Unlock()

	w.mu.Lock()
	w.msgs = msgs
	w.name = url
	w.format = format
	w.pending = nil
	w.read = 0
	w.eof = false
	w.mu.Unlock()
	return nil
}

// receive forwards binary frames until the peer closes, the connection
// fails or quit is closed. msgs is closed on return.
func receive(conn *websocket.Conn, name string, msgs chan<- wsMessage, quit <-chan struct{}) {
	defer close(msgs)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if isNormalEnd(err) {
				return
			}
			select {
			case msgs <- wsMessage{err: fmt.Errorf("%w: %s: %w", voice.ErrDecodeFailure, name, err)}:
			case <-quit:
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		select {
		case msgs <- wsMessage{data: data}:
		case <-quit:
			return
		}
	}
}

func isNormalEnd(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (h StreamHeader) format() (audio.Format, error) {
	if h.SampleRate <= 0 {
		return audio.Format{}, fmt.Errorf("invalid sample rate %d", h.SampleRate)
	}
	chans, err := audio.ChannelConfigFromCount(h.Channels)
	if err != nil {
		return audio.Format{}, err
	}
	typ, err := ParseSampleType(h.Format)
	if err != nil {
		return audio.Format{}, err
	}
	return audio.Format{SampleRate: h.SampleRate, Channels: chans, Type: typ}, nil
}

// Close closes the connection. It does not wait for a pending Read,
// which returns as soon as the receiver stops.
func (w *WebSocket) Close() error {
	w.connMu.Lock()
	conn, quit := w.conn, w.quit
	w.conn, w.quit = nil, nil
	w.connMu.Unlock()
	if conn == nil {
		return nil
	}

	close(quit)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := conn.Close()

	// A Read blocked on msgs wakes once the receiver exits
	w.mu.Lock()
	w.msgs = nil
	w.pending = nil
	w.mu.Unlock()
	return err
}

// Info returns the format announced by the header
func (w *WebSocket) Info() (audio.Format, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.msgs == nil {
		return audio.Format{}, ErrNotOpen
	}
	return w.format, nil
}

// Read fills p from received frames. It returns short with io.EOF once
// the peer ends the stream, and fails with ErrDecodeFailure when no data
// arrives within the read timeout.
func (w *WebSocket) Read(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.msgs == nil {
		return 0, ErrNotOpen
	}

	timer := time.NewTimer(w.readTimeout)
	defer timer.Stop()

	n := 0
	for n < len(p) {
		if len(w.pending) == 0 {
			if w.eof {
				break
			}
			select {
			case msg, ok := <-w.msgs:
				if !ok {
					w.eof = true
					continue
				}
				if msg.err != nil {
					w.eof = true
					w.read += int64(n)
					return n, msg.err
				}
				w.pending = msg.data
			case <-timer.C:
				w.read += int64(n)
				return n, fmt.Errorf("%w: %s: no data for %v", voice.ErrDecodeFailure, w.name, w.readTimeout)
			}
			continue
		}
		c := copy(p[n:], w.pending)
		w.pending = w.pending[c:]
		n += c
	}

	w.read += int64(n)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadAll reads until the peer closes the stream
func (w *WebSocket) ReadAll() ([]byte, error) {
	return readAll(w)
}

// SampleOffset returns the frames handed out so far
func (w *WebSocket) SampleOffset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	size := w.format.FrameSize()
	if size == 0 {
		return 0
	}
	return w.read / int64(size)
}

// Name returns the stream URL
func (w *WebSocket) Name() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.name
}
