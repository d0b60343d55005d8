// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides Decoder interface, codec implementations and the asset Manager
// Package decode turns audio assets into interleaved PCM.
//
// Supports: WAV, MP3, FLAC, Ogg Vorbis, Ogg Opus and raw PCM over WebSocket.
//
// File decoders read through an afero filesystem so assets can live on disk,
// under a base path or in memory. The Manager picks a decoder by extension.
//
// Example:
//
//	m := decode.NewManager(afero.NewOsFs())
//	dec, err := m.Open("music/theme.ogg")
//	info, err := dec.Info()
//	n, err := dec.Read(buf)
package decode
