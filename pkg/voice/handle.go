// ABOUTME: Tagged handles for native playback objects
// ABOUTME: Distinguishes buffer, voice and stream identifiers sharing one ID space
package voice

import "fmt"

// Kind tags what a Handle refers to
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBuffer
	KindVoice
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindVoice:
		return "voice"
	case KindStream:
		return "stream"
	}
	return "invalid"
}

// Handle identifies a device object. The zero Handle is invalid.
type Handle struct {
	kind Kind
	id   uint32
}

// NewHandle creates a handle of the given kind
func NewHandle(kind Kind, id uint32) Handle {
	return Handle{kind: kind, id: id}
}

// Kind returns what the handle refers to
func (h Handle) Kind() Kind { return h.kind }

// ID returns the raw identifier
func (h Handle) ID() uint32 { return h.id }

// IsValid reports whether the handle refers to an object at all
func (h Handle) IsValid() bool { return h.kind != KindInvalid && h.id != 0 }

// Is reports whether h is a valid handle of kind k
func (h Handle) Is(k Kind) bool { return h.IsValid() && h.kind == k }

func (h Handle) String() string {
	if !h.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%s#%d", h.kind, h.id)
}
