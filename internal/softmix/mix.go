// ABOUTME: Mixing loop of the software device
// ABOUTME: Resamples each playing voice by rate and pitch, applies gain and pan, writes to the output
package softmix

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/streamout/pkg/audio"
	"github.com/Resonate-Protocol/streamout/pkg/audio/resample"
	"github.com/Resonate-Protocol/streamout/pkg/voice"
)

func (d *Device) start() {
	d.done = make(chan struct{})
	go d.run()
}

func (d *Device) run() {
	defer close(d.done)

	frames := int(d.cfg.Period * time.Duration(d.cfg.SampleRate) / time.Second)
	if frames < 1 {
		frames = 1
	}
	buf := make([]int32, frames*d.cfg.Channels)

	log.Debug().Str("device", d.name).Int("period_frames", frames).Msg("Mixer started")
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		d.mu.Lock()
		d.render(buf)
		d.mu.Unlock()

		// Blocks for roughly one period on a real output
		if err := d.out.Write(buf); err != nil {
			if d.ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("device", d.name).Msg("Output write failed")
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(d.cfg.Period):
			}
		}
	}
}

// Render mixes the next frames of audio and returns them interleaved
func (d *Device) Render(frames int) []int32 {
	buf := make([]int32, frames*d.cfg.Channels)
	d.mu.Lock()
	d.render(buf)
	d.mu.Unlock()
	return buf
}

// render mixes every playing voice into out (must hold d.mu)
func (d *Device) render(out []int32) {
	oc := d.cfg.Channels
	frames := len(out) / oc
	acc := make([]int64, len(out))

	for _, s := range d.sources {
		if s.state != voice.StatePlaying {
			continue
		}
		d.mixSource(s, acc, frames)
	}

	for i, v := range acc {
		out[i] = audio.Clamp24(v)
	}
	d.mixed += int64(frames)
}

// mixSource resamples frames of s and adds them to acc
func (d *Device) mixSource(s *source, acc []int64, frames int) {
	b := d.current(s)
	if b == nil || b.frames() == 0 {
		d.finish(s)
		return
	}

	sc := b.channels()
	if s.res == nil || s.res.Channels() != sc {
		s.res = resample.New(b.rate, d.cfg.SampleRate, sc)
	}
	pitch := float64(s.params.Pitch)
	if pitch <= 0 {
		pitch = 1
	}
	s.res.SetRatio(float64(b.rate) * pitch / float64(d.cfg.SampleRate))

	tmp := make([]int32, frames*sc)
	filled := 0
	for filled < frames {
		want := int(float64(frames-filled)*s.res.Ratio()) + 2
		in := d.gather(s, want)
		consumed, produced := s.res.Resample(in, tmp[filled*sc:])
		d.advance(s, consumed/sc)
		filled += produced / sc
		if consumed == 0 && produced == 0 {
			break
		}
	}

	gains := d.channelGains(s, sc)
	oc := d.cfg.Channels
	for f := 0; f < filled; f++ {
		frame := tmp[f*sc : (f+1)*sc]
		for c := 0; c < oc; c++ {
			acc[f*oc+c] += int64(float64(downmix(frame, c, oc)) * gains[c])
		}
	}

	if filled < frames && d.exhausted(s) {
		d.finish(s)
	}
}

// downmix returns output channel c of a source frame
func downmix(frame []int32, c, oc int) int32 {
	sc := len(frame)
	switch {
	case sc == oc:
		return frame[c]
	case sc == 1:
		return frame[0]
	case sc < oc:
		return frame[c%sc]
	}
	var sum, n int64
	for i := c; i < sc; i += oc {
		sum += int64(frame[i])
		n++
	}
	return int32(sum / n)
}

// current returns the buffer s is reading from (must hold d.mu)
func (d *Device) current(s *source) *buffer {
	if s.bound.IsValid() {
		return d.buffers[s.bound.ID()]
	}
	if s.processed < len(s.queue) {
		return d.buffers[s.queue[s.processed].ID()]
	}
	return nil
}

// gather collects up to want frames starting at the play position
func (d *Device) gather(s *source, want int) []int32 {
	var in []int32
	if s.bound.IsValid() {
		b := d.buffers[s.bound.ID()]
		ch, total := b.channels(), b.frames()
		pos := s.pos
		for want > 0 && total > 0 {
			n := min(want, total-pos)
			in = append(in, b.samples[pos*ch:(pos+n)*ch]...)
			want -= n
			pos += n
			if pos < total || !s.params.Looping {
				break
			}
			pos = 0
		}
		return in
	}

	pos := s.pos
	for i := s.processed; i < len(s.queue) && want > 0; i++ {
		b := d.buffers[s.queue[i].ID()]
		ch, total := b.channels(), b.frames()
		n := min(want, total-pos)
		if n > 0 {
			in = append(in, b.samples[pos*ch:(pos+n)*ch]...)
			want -= n
		}
		pos = 0
	}
	return in
}

// advance moves the play position by n frames, retiring finished queue buffers
func (d *Device) advance(s *source, n int) {
	s.pos += n
	if s.bound.IsValid() {
		total := d.buffers[s.bound.ID()].frames()
		if s.params.Looping && total > 0 {
			s.pos %= total
		} else if s.pos > total {
			s.pos = total
		}
		return
	}
	for s.processed < len(s.queue) {
		total := d.buffers[s.queue[s.processed].ID()].frames()
		if s.pos < total {
			break
		}
		s.pos -= total
		s.processed++
	}
	if s.processed == len(s.queue) {
		s.pos = 0
	}
}

// exhausted reports whether s has no more frames to read
func (d *Device) exhausted(s *source) bool {
	if s.bound.IsValid() {
		b := d.buffers[s.bound.ID()]
		return b == nil || (!s.params.Looping && s.pos >= b.frames())
	}
	return s.processed >= len(s.queue)
}

// channelGains returns the gain applied to each output channel of s
func (d *Device) channelGains(s *source, sc int) []float64 {
	oc := d.cfg.Channels
	p := s.params

	rel := p.Position
	if !p.Relative {
		rel = p.Position.Sub(d.listener[0])
	}
	gain := float64(p.Gain) * attenuation(p, math.Sqrt(float64(rel.Length2())))

	gains := make([]float64, oc)
	for i := range gains {
		gains[i] = gain
	}

	// Only mono sources are positioned
	if sc != 1 || oc != 2 || rel.Length2() == 0 {
		return gains
	}
	right := cross(d.listener[1], d.listener[2])
	rl := math.Sqrt(float64(right.Length2()))
	if rl == 0 {
		return gains
	}
	pan := float64(dot(rel, right)) / (rl * math.Sqrt(float64(rel.Length2())))
	gains[0] = gain * math.Min(1, 1-pan)
	gains[1] = gain * math.Min(1, 1+pan)
	return gains
}

// attenuation implements the inverse distance clamped model
func attenuation(p voice.Params, dist float64) float64 {
	ref := float64(p.ReferenceDistance)
	if ref <= 0 || p.Rolloff <= 0 {
		return 1
	}
	dist = math.Max(dist, ref)
	if p.MaxDistance > 0 {
		dist = math.Min(dist, float64(p.MaxDistance))
	}
	return ref / (ref + float64(p.Rolloff)*(dist-ref))
}

func dot(a, b voice.Vec3) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func cross(a, b voice.Vec3) voice.Vec3 {
	return voice.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}
