// ABOUTME: Unit tests for PCM encoder
// ABOUTME: Tests 16-bit, 24-bit and 32-bit PCM encoding
package encode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		wantErr  bool
		bytes    int
	}{
		{"16-bit", 16, false, 2},
		{"24-bit", 24, false, 3},
		{"32-bit", 32, false, 4},
		{"8-bit", 8, true, 0},
		{"zero", 0, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewPCM(tt.bitDepth)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "unsupported bit depth") {
					t.Errorf("NewPCM() error = %v, want unsupported bit depth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPCM() unexpected error = %v", err)
			}
			if got := encoder.BytesPerSample(); got != tt.bytes {
				t.Errorf("BytesPerSample() = %d, want %d", got, tt.bytes)
			}
		})
	}
}

func TestPCMEncoder_Encode16Bit(t *testing.T) {
	encoder, err := NewPCM(16)
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	samples := []int32{
		0,         // silence
		0x7FFF00,  // max positive 16-bit (left-justified in 24-bit)
		-0x800000, // max negative 16-bit (left-justified in 24-bit)
		0x123400,
		-0x567800,
	}

	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) != len(samples)*2 {
		t.Fatalf("Encode() output size = %d, want %d", len(output), len(samples)*2)
	}

	for i, sample := range samples {
		expected := audio.SampleToInt16(sample)
		actual := int16(binary.LittleEndian.Uint16(output[i*2:]))
		if actual != expected {
			t.Errorf("Sample %d: got %d, want %d", i, actual, expected)
		}
	}
}

func TestPCMEncoder_Encode24Bit(t *testing.T) {
	encoder, err := NewPCM(24)
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode([]int32{0x123456, -1})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	want := []byte{0x56, 0x34, 0x12, 0xFF, 0xFF, 0xFF}
	if string(output) != string(want) {
		t.Errorf("Encode() = % x, want % x", output, want)
	}
}

func TestPCMEncoder_Encode32Bit(t *testing.T) {
	encoder, err := NewPCM(32)
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}

	output, err := encoder.Encode([]int32{audio.Max24Bit, audio.Min24Bit})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if got := int32(binary.LittleEndian.Uint32(output[0:])); got != audio.Max24Bit<<8 {
		t.Errorf("max sample = %d, want %d", got, audio.Max24Bit<<8)
	}
	if got := int32(binary.LittleEndian.Uint32(output[4:])); got != audio.Min24Bit<<8 {
		t.Errorf("min sample = %d, want %d", got, audio.Min24Bit<<8)
	}
}
