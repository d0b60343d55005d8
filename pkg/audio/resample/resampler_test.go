// ABOUTME: Tests for the streaming resampler
// ABOUTME: Checks passthrough, up/downsampling and chunk continuity
package resample

import "testing"

func TestResamplePassthroughAcrossChunks(t *testing.T) {
	r := New(48000, 48000, 1)

	out := make([]int32, 4)
	consumed, produced := r.Resample([]int32{1, 2, 3, 4}, out)
	if consumed != 4 {
		t.Errorf("expected all 4 samples consumed, got %d", consumed)
	}
	if produced != 3 {
		t.Fatalf("expected 3 samples produced, got %d", produced)
	}

	out2 := make([]int32, 4)
	_, produced2 := r.Resample([]int32{5, 6}, out2)

	got := append(out[:produced], out2[:produced2]...)
	for i, v := range got {
		if v != int32(i+1) {
			t.Fatalf("expected continuous ramp, got %v", got)
		}
	}
}

func TestResampleUpsample(t *testing.T) {
	r := New(24000, 48000, 1)

	out := make([]int32, 8)
	_, produced := r.Resample([]int32{0, 10, 20}, out)
	want := []int32{0, 5, 10, 15}
	if produced != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), produced)
	}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, out[i])
		}
	}
}

func TestResampleDownsample(t *testing.T) {
	r := New(96000, 48000, 2)

	input := make([]int32, 0, 20)
	for i := 0; i < 10; i++ {
		input = append(input, int32(i), int32(-i))
	}
	out := make([]int32, 20)
	consumed, produced := r.Resample(input, out)
	if consumed != len(input) {
		t.Errorf("expected all input consumed, got %d", consumed)
	}
	if produced != 10 {
		t.Fatalf("expected 5 stereo frames, got %d samples", produced)
	}
	for i := 0; i < produced/2; i++ {
		if out[i*2] != int32(i*2) || out[i*2+1] != -int32(i*2) {
			t.Errorf("frame %d: unexpected %d/%d", i, out[i*2], out[i*2+1])
		}
	}
}

func TestResampleFullOutputLeavesInput(t *testing.T) {
	r := New(48000, 48000, 1)

	out := make([]int32, 2)
	consumed, produced := r.Resample([]int32{1, 2, 3, 4, 5, 6}, out)
	if produced != 2 {
		t.Fatalf("expected 2 produced, got %d", produced)
	}
	if consumed >= 6 {
		t.Errorf("expected input left over, consumed %d", consumed)
	}
}

func TestResampleRatioChange(t *testing.T) {
	r := New(48000, 48000, 1)
	r.SetRatio(2)
	if r.Ratio() != 2 {
		t.Errorf("expected ratio 2, got %v", r.Ratio())
	}
	r.SetRatio(0)
	if r.Ratio() != 2 {
		t.Error("non-positive ratio should be ignored")
	}
}

func TestResampleReset(t *testing.T) {
	r := New(48000, 48000, 1)
	r.Resample([]int32{7, 8}, make([]int32, 4))
	r.Reset()

	out := make([]int32, 1)
	r.Resample([]int32{1, 2}, out)
	if out[0] != 1 {
		t.Errorf("expected fresh start after reset, got %d", out[0])
	}
}

func TestSamplesNeeded(t *testing.T) {
	r := New(24000, 48000, 2)
	if got := r.OutputSamplesNeeded(100 * 2); got != 200*2 {
		t.Errorf("expected %d, got %d", 200*2, got)
	}
	if got := r.InputSamplesNeeded(200 * 2); got != 100*2 {
		t.Errorf("expected %d, got %d", 100*2, got)
	}
}
