// ABOUTME: Tests for tagged handles
// ABOUTME: Ensures buffer and voice handles with the same ID never compare equal
package voice

import "testing"

func TestHandleKinds(t *testing.T) {
	b := NewHandle(KindBuffer, 7)
	v := NewHandle(KindVoice, 7)

	if b == v {
		t.Error("handles of different kinds must differ")
	}
	if !b.Is(KindBuffer) || b.Is(KindVoice) {
		t.Error("buffer handle kind mismatch")
	}
	if v.String() != "voice#7" {
		t.Errorf("unexpected string %q", v.String())
	}
}

func TestHandleZeroInvalid(t *testing.T) {
	var h Handle
	if h.IsValid() {
		t.Error("zero handle must be invalid")
	}
	if NewHandle(KindVoice, 0).IsValid() {
		t.Error("id 0 must be invalid")
	}
	if h.Is(KindInvalid) {
		t.Error("invalid handle should not match any kind")
	}
	if h.String() != "invalid" {
		t.Errorf("unexpected string %q", h.String())
	}
}

func TestStateActive(t *testing.T) {
	for s, want := range map[State]bool{
		StateInitial: false,
		StatePlaying: true,
		StatePaused:  true,
		StateStopped: false,
	} {
		if s.Active() != want {
			t.Errorf("%s: expected active=%v", s, want)
		}
	}
}
