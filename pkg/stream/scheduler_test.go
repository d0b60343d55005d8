// ABOUTME: Tests for the stream scheduler
// ABOUTME: Covers wake-ups, stream dropping, loudness job ordering and add/remove churn
package stream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/streamout/internal/voicetest"
	"github.com/Resonate-Protocol/streamout/pkg/audio"
	"github.com/Resonate-Protocol/streamout/pkg/audio/decode"
)

const (
	waitFor = 2 * time.Second
	pollFor = 5 * time.Millisecond
)

func newTestScheduler(t *testing.T, opts ...SchedulerOption) *Scheduler {
	t.Helper()
	s := NewScheduler(opts...)
	t.Cleanup(func() {
		s.RemoveAll()
		s.Close()
	})
	return s
}

func TestSchedulerStartsAddedStream(t *testing.T) {
	// Long poll so only the wake signal can explain a prompt refill
	sched := newTestScheduler(t, WithPollInterval(time.Hour))
	dev := voicetest.NewDevice(1)
	dec := voicetest.NewDecoder("music", format8k, payload(20*buffer8k, 1))
	s, v := newTestStream(t, dev, dec)

	sched.Add(s)

	require.Eventually(t, func() bool {
		vc, _ := dev.Voice(v)
		return vc.Plays == 1
	}, waitFor, pollFor)
	assert.Equal(t, DefaultBufferCount, dev.Uploads())
}

func TestSchedulerPollsWithoutSignal(t *testing.T) {
	sched := newTestScheduler(t, WithPollInterval(10*time.Millisecond))
	dev := voicetest.NewDevice(1)
	dec := voicetest.NewDecoder("music", format8k, payload(20*buffer8k, 1))
	s, v := newTestStream(t, dev, dec)
	sched.Add(s)

	require.Eventually(t, func() bool { return dev.Uploads() == DefaultBufferCount }, waitFor, pollFor)

	// Nobody signals; the poll timeout alone picks up the consumed buffers
	dev.Consume(v, 2)
	require.Eventually(t, func() bool { return dev.Uploads() == DefaultBufferCount+2 }, waitFor, pollFor)
}

func TestSchedulerAddIsIdempotent(t *testing.T) {
	sched := newTestScheduler(t)
	dev := voicetest.NewDevice(1)
	s, _ := newTestStream(t, dev, voicetest.NewDecoder("music", format8k, payload(20*buffer8k, 1)))

	sched.Add(s)
	sched.Add(s)

	assert.Equal(t, 1, sched.Stats().Active)
	assert.True(t, sched.Contains(s))
}

func TestSchedulerDropsFinishedStream(t *testing.T) {
	sched := newTestScheduler(t)
	dev := voicetest.NewDevice(1)
	dec := voicetest.NewDecoder("jingle", format8k, payload(buffer8k/2, 1))
	s, v := newTestStream(t, dev, dec)

	sched.Add(s)

	require.Eventually(t, func() bool { return sched.Stats().Dropped == 1 }, waitFor, pollFor)
	assert.False(t, sched.Contains(s))

	// Dropping only stops scheduling; the stream stays usable
	assert.False(t, dec.Closed())
	var playing bool
	sched.WithLock(func() { playing, _ = s.IsPlaying() })
	assert.True(t, playing)

	dev.Consume(v, 1)
	sched.WithLock(func() { playing, _ = s.IsPlaying() })
	assert.False(t, playing)
	assert.NoError(t, s.Close())
}

func TestSchedulerRemove(t *testing.T) {
	sched := newTestScheduler(t)
	dev := voicetest.NewDevice(1)
	s, _ := newTestStream(t, dev, voicetest.NewDecoder("music", format8k, payload(20*buffer8k, 1)))

	sched.Add(s)
	assert.True(t, sched.Remove(s))
	assert.False(t, sched.Remove(s))
	assert.False(t, sched.Contains(s))
	assert.NoError(t, s.Close())
}

func TestSchedulerLoudnessJobsRunOneAtATime(t *testing.T) {
	sched := newTestScheduler(t)

	gate := make(chan struct{})
	first := voicetest.NewDecoder("first", format8k, payload(800, 1))
	second := voicetest.NewDecoder("second", format8k, payload(1600, 1))

	var mu sync.Mutex
	var order []string
	sink := &voicetest.Sink{}
	sink.Hook = func() {
		time.Sleep(20 * time.Millisecond)
	}
	first.Gate = gate

	sched.AddLoudnessJob(first, recordingSink{sink, &mu, &order, "first"})
	sched.AddLoudnessJob(second, recordingSink{sink, &mu, &order, "second"})

	// The second job waits behind the first one's decode
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, sink.Count())
	assert.False(t, second.Closed())

	close(gate)
	require.Eventually(t, func() bool { return sink.Count() == 2 }, waitFor, pollFor)

	assert.Zero(t, sink.Overlaps)
	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, order)
	mu.Unlock()
	assert.Equal(t, []int{800, 1600}, sink.Bytes)
	require.Eventually(t, func() bool { return first.Closed() && second.Closed() }, waitFor, pollFor)
	assert.EqualValues(t, 2, sched.Stats().Jobs)
}

type recordingSink struct {
	sink  *voicetest.Sink
	mu    *sync.Mutex
	order *[]string
	name  string
}

func (r recordingSink) Analyze(pcm []byte, format audio.Format, fps float64) {
	r.mu.Lock()
	*r.order = append(*r.order, r.name)
	r.mu.Unlock()
	r.sink.Analyze(pcm, format, fps)
}

func TestSchedulerLoudnessDefaultsOnInfoError(t *testing.T) {
	sched := newTestScheduler(t, WithLoudnessRate(10))
	dec := voicetest.NewDecoder("broken", format8k, payload(100, 1))
	dec.InfoErr = voicetest.ErrScripted

	var got audio.Format
	var fps float64
	done := make(chan struct{})
	sched.AddLoudnessJob(dec, sinkFunc(func(pcm []byte, f audio.Format, v float64) {
		got, fps = f, v
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("loudness job did not run")
	}
	assert.Equal(t, defaultLoudnessFormat, got)
	assert.Equal(t, 10.0, fps)
	require.Eventually(t, dec.Closed, waitFor, pollFor)
}

func TestSchedulerLoudnessRunsOnReadError(t *testing.T) {
	sched := newTestScheduler(t)
	dec := voicetest.NewDecoder("broken", format8k, payload(100, 1))
	dec.ReadErr = voicetest.ErrScripted
	sink := &voicetest.Sink{}

	sched.AddLoudnessJob(dec, sink)

	require.Eventually(t, func() bool { return sink.Count() == 1 }, waitFor, pollFor)
	assert.Equal(t, []int{0}, sink.Bytes)
}

type sinkFunc func(pcm []byte, format audio.Format, valuesPerSecond float64)

func (f sinkFunc) Analyze(pcm []byte, format audio.Format, valuesPerSecond float64) {
	f(pcm, format, valuesPerSecond)
}

func TestSchedulerRemoveAllDropsPendingJobs(t *testing.T) {
	sched := newTestScheduler(t)
	sink := &voicetest.Sink{}

	gate := make(chan struct{})
	busy := voicetest.NewDecoder("busy", format8k, payload(10, 1))
	busy.Gate = gate
	pending := voicetest.NewDecoder("pending", format8k, payload(10, 1))

	sched.AddLoudnessJob(busy, sink)
	require.Eventually(t, func() bool { return sched.Stats().Pending == 0 }, waitFor, pollFor)

	sched.AddLoudnessJob(pending, sink)
	sched.RemoveAll()

	assert.True(t, pending.Closed())
	close(gate)
	require.Eventually(t, func() bool { return sink.Count() == 1 }, waitFor, pollFor)
	assert.Equal(t, []int{10}, sink.Bytes)
}

func TestSchedulerCloseDropsPendingJobs(t *testing.T) {
	sched := NewScheduler()
	sink := &voicetest.Sink{}

	gate := make(chan struct{})
	busy := voicetest.NewDecoder("busy", format8k, payload(10, 1))
	busy.Gate = gate
	pending := voicetest.NewDecoder("pending", format8k, payload(10, 1))

	sched.AddLoudnessJob(busy, sink)
	require.Eventually(t, func() bool { return sched.Stats().Pending == 0 }, waitFor, pollFor)
	sched.AddLoudnessJob(pending, sink)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		sched.Close()
	}()
	require.Eventually(t, func() bool { return sched.ctx.Err() != nil }, waitFor, pollFor)
	close(gate)
	<-closed

	assert.True(t, busy.Closed())
	assert.True(t, pending.Closed())
	assert.Equal(t, 1, sink.Count(), "only the running job is analyzed")

	late := voicetest.NewDecoder("late", format8k, payload(10, 1))
	sched.AddLoudnessJob(late, sink)
	assert.True(t, late.Closed())
	assert.Zero(t, sched.Stats().Pending)
}

func TestSchedulerLockFreeDuringAnalysis(t *testing.T) {
	sched := newTestScheduler(t)
	gate := make(chan struct{})
	defer close(gate)

	dec := voicetest.NewDecoder("slow", format8k, payload(10, 1))
	dec.Gate = gate
	sched.AddLoudnessJob(dec, &voicetest.Sink{})
	require.Eventually(t, func() bool { return sched.Stats().Pending == 0 }, waitFor, pollFor)

	locked := make(chan struct{})
	go sched.WithLock(func() { close(locked) })
	select {
	case <-locked:
	case <-time.After(waitFor):
		t.Fatal("lock held during analysis")
	}
}

func TestSchedulerStalledSourceReleasesLock(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"sample_rate":8000,"channels":1,"format":"s16"}`))
		conn.WriteMessage(websocket.BinaryMessage, make([]byte, 100))
		// Silent until the client hangs up
		conn.ReadMessage()
	}))
	defer srv.Close()

	dec := decode.NewWebSocket(nil)
	dec.SetReadTimeout(50 * time.Millisecond)
	require.NoError(t, dec.Open("ws"+strings.TrimPrefix(srv.URL, "http")))

	dev := voicetest.NewDevice(1)
	v, err := dev.GenVoice()
	require.NoError(t, err)
	st, err := New(dev, v, dec)
	require.NoError(t, err)
	defer st.Close()

	sched := newTestScheduler(t)
	sched.Add(st)
	time.Sleep(20 * time.Millisecond)

	removed := make(chan struct{})
	go func() {
		defer close(removed)
		sched.Remove(st)
	}()
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("Remove blocked behind a silent source")
	}
}

func TestSchedulerCloseIsIdempotent(t *testing.T) {
	sched := NewScheduler(WithPollInterval(time.Millisecond))
	sched.Close()
	sched.Close()

	ticks := sched.Stats().Ticks
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, ticks, sched.Stats().Ticks)
}

func TestSchedulerChurn(t *testing.T) {
	sched := newTestScheduler(t, WithPollInterval(time.Millisecond))
	dev := voicetest.NewDevice(64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			v, err := dev.GenVoice()
			if !assert.NoError(t, err) {
				return
			}
			for i := 0; i < 50; i++ {
				dec := voicetest.NewDecoder(fmt.Sprintf("s%d-%d", g, i), format8k, payload((i%8)*buffer8k/2, 1))
				s, err := New(dev, v, dec)
				if !assert.NoError(t, err) {
					return
				}

				sched.Add(s)
				if i%3 == 0 {
					time.Sleep(time.Millisecond)
				}
				if i%5 == 0 {
					sched.WithLock(func() {
						s.Offset()
						s.IsPlaying()
					})
				}
				dev.Consume(v, 1)

				sched.Remove(s)
				assert.NoError(t, s.Close())
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 0, sched.Stats().Active)
	assert.Equal(t, 0, dev.LiveBuffers())
}
