// ABOUTME: Asset manager resolving names to decoders
// ABOUTME: Picks a codec by extension and falls back to mp3 for missing assets
package decode

import (
	"fmt"
	"path"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Manager creates decoders for assets stored on a filesystem
type Manager struct {
	fs     afero.Fs
	dialer *websocket.Dialer
}

// NewManager creates a manager reading assets from fs
func NewManager(fs afero.Fs) *Manager {
	return &Manager{fs: fs, dialer: websocket.DefaultDialer}
}

// NewDirManager creates a manager rooted at dir on the OS filesystem
func NewDirManager(dir string) *Manager {
	if dir == "" {
		return NewManager(afero.NewOsFs())
	}
	return NewManager(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Fs returns the asset filesystem
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// IsStream reports whether name is a network stream rather than a file
func IsStream(name string) bool {
	return strings.HasPrefix(name, "ws://") || strings.HasPrefix(name, "wss://")
}

// Decoder returns an unopened decoder suited to name
func (m *Manager) Decoder(name string) (Decoder, error) {
	if IsStream(name) {
		return NewWebSocket(m.dialer), nil
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".wav":
		return NewWAV(m.fs), nil
	case ".mp3":
		return NewMP3(m.fs), nil
	case ".flac":
		return NewFLAC(m.fs), nil
	case ".ogg", ".oga":
		return NewVorbis(m.fs), nil
	case ".opus":
		return NewOpus(m.fs), nil
	}
	return nil, fmt.Errorf("unsupported audio format: %s (supported: .wav, .mp3, .flac, .ogg, .opus, ws://)", name)
}

// Resolve returns the asset name to open. A missing asset is replaced by
// the mp3 with the same stem when that exists.
func (m *Manager) Resolve(name string) string {
	if IsStream(name) {
		return name
	}
	if ok, _ := afero.Exists(m.fs, name); ok {
		return name
	}

	ext := path.Ext(name)
	if strings.EqualFold(ext, ".mp3") {
		return name
	}
	alt := strings.TrimSuffix(name, ext) + ".mp3"
	if ok, _ := afero.Exists(m.fs, alt); ok {
		log.Debug().Str("asset", name).Str("fallback", alt).Msg("Asset missing, using mp3")
		return alt
	}
	return name
}

// Open resolves name and returns an opened decoder
func (m *Manager) Open(name string) (Decoder, error) {
	resolved := m.Resolve(name)
	dec, err := m.Decoder(resolved)
	if err != nil {
		return nil, err
	}
	if err := dec.Open(resolved); err != nil {
		return nil, err
	}
	return dec, nil
}
