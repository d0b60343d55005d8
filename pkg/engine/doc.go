// ABOUTME: Engine package documentation
// ABOUTME: Output facade over a voice device, the voice pool and the stream scheduler
// Package engine is the playback boundary used by the rest of a program.
//
// An Output opens a device, keeps a fixed pool of voices and a stream
// scheduler, and hands out Sound handles for one-shot and streamed audio.
// Failures to play (no free voice, unsupported format, decode error) are
// returned as errors wrapping the sentinels in package voice; none of them
// leave a voice or buffer behind.
//
// Example:
//
//	out := engine.New(softmix.NewDriver(softmix.DefaultConfig()),
//		engine.WithDecoders(decode.NewDirManager("assets")))
//	defer out.Close()
//	if err := out.Init(""); err != nil {
//		return err
//	}
//	buf, err := out.LoadSound("sfx/door.wav")
//	snd, err := out.PlaySound(buf, 1, 1, 1, 0, engine.TypeSfx, 0)
package engine
