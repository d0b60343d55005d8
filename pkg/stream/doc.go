// ABOUTME: Streaming playback package
// ABOUTME: Buffered streams fed through a buffer ring and the worker that refills them
// Package stream keeps long-form audio flowing into device voices.
//
// A Stream owns a decoder and a small ring of device buffers. Each refill
// reclaims the buffers the device finished playing, decodes fixed-size
// chunks into the free ring slots and queues them on the voice.
//
// A Scheduler runs one worker goroutine that refills every registered
// stream once per wake and, between refills, runs queued loudness jobs one
// at a time. Stream methods are not safe for concurrent use on their own;
// while a stream is registered, query it inside Scheduler.WithLock.
package stream
