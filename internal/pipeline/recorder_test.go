package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/events"
)

// scriptSource replays a fixed sequence of frames/errors, then signals the
// stop flag so the loop terminates like a real control source would.
type scriptStep struct {
	frame []byte
	err   error
}

type scriptSource struct {
	w, h  int
	steps []scriptStep
	stop  *Stop
}

func (s *scriptSource) Width() int   { return s.w }
func (s *scriptSource) Height() int  { return s.h }
func (s *scriptSource) Close() error { return nil }

func (s *scriptSource) NextFrame() ([]byte, error) {
	if len(s.steps) == 0 {
		if s.stop != nil {
			s.stop.Signal()
		}
		return nil, capture.ErrWouldBlock
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.frame, st.err
}

func frames(n, w, h int) []scriptStep {
	steps := make([]scriptStep, 0, n)
	for i := 0; i < n; i++ {
		buf := make([]byte, w*h*4)
		for j := range buf {
			buf[j] = byte(i)
		}
		steps = append(steps, scriptStep{frame: buf})
	}
	return steps
}

// fakeEncoder buffers `lookahead` frames before yielding packets, mimicking
// encoder latency. Finish drains whatever is left.
type fakeEncoder struct {
	lookahead   int
	queue       []Packet
	encodeCalls int
	encodeErrAt int // 1-based call index that fails; 0 = never
	finishErr   error
	finished    bool
}

func (e *fakeEncoder) Encode(ptsMs int64, yuv []byte) ([]Packet, error) {
	e.encodeCalls++
	if e.encodeErrAt != 0 && e.encodeCalls == e.encodeErrAt {
		return nil, errors.New("bitstream error")
	}
	if len(yuv) == 0 {
		return nil, errors.New("empty yuv buffer")
	}
	e.queue = append(e.queue, Packet{
		Data:     []byte{byte(e.encodeCalls)},
		PtsMs:    ptsMs,
		Keyframe: e.encodeCalls == 1,
	})
	if len(e.queue) > e.lookahead {
		p := e.queue[0]
		e.queue = e.queue[1:]
		return []Packet{p}, nil
	}
	return nil, nil
}

func (e *fakeEncoder) Finish() ([]Packet, error) {
	e.finished = true
	if e.finishErr != nil {
		return nil, e.finishErr
	}
	out := e.queue
	e.queue = nil
	return out, nil
}

type muxedFrame struct {
	ptsMs    int64
	keyframe bool
}

type fakeMuxer struct {
	frames    []muxedFrame
	finalized bool
	addErr    error
}

func (m *fakeMuxer) AddFrame(data []byte, ptsMs int64, keyframe bool) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.frames = append(m.frames, muxedFrame{ptsMs: ptsMs, keyframe: keyframe})
	return nil
}

func (m *fakeMuxer) Finalize() error {
	m.finalized = true
	return nil
}

func testConfig(src capture.Source, enc Encoder, mux Muxer, stop *Stop) Config {
	return Config{
		Source:  src,
		Encoder: enc,
		Muxer:   mux,
		Mode:    convert.ChromaNearest,
		Stop:    stop,
		Sleep:   func(time.Duration) {},
	}
}

func TestRecorder_EncodesAllFramesAndDrains(t *testing.T) {
	stop := NewStop()
	src := &scriptSource{w: 2, h: 2, steps: frames(5, 2, 2), stop: stop}
	enc := &fakeEncoder{lookahead: 2}
	mux := &fakeMuxer{}

	r, err := New(testConfig(src, enc, mux, stop))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := r.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if r.State() != StateFinished {
		t.Errorf("State = %v, want finished", r.State())
	}
	if r.Frames() != 5 {
		t.Errorf("Frames = %d, want 5", r.Frames())
	}
	// Lookahead packets must arrive during the drain, none lost.
	if len(mux.frames) != 5 {
		t.Errorf("Muxed %d packets, want 5", len(mux.frames))
	}
	if !enc.finished {
		t.Error("Encoder was not drained")
	}
	if !mux.finalized {
		t.Error("Muxer was not finalized")
	}
	if len(mux.frames) > 0 && !mux.frames[0].keyframe {
		t.Error("First muxed packet should be the keyframe")
	}
}

func TestRecorder_PacketsArriveInYieldOrder(t *testing.T) {
	stop := NewStop()
	src := &scriptSource{w: 2, h: 2, steps: frames(8, 2, 2), stop: stop}
	enc := &fakeEncoder{lookahead: 3}
	mux := &fakeMuxer{}

	r, err := New(testConfig(src, enc, mux, stop))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := 1; i < len(mux.frames); i++ {
		if mux.frames[i].ptsMs < mux.frames[i-1].ptsMs {
			t.Fatalf("Timestamps out of order: %d after %d",
				mux.frames[i].ptsMs, mux.frames[i-1].ptsMs)
		}
	}
}

func TestRecorder_WouldBlockIsSilentNoop(t *testing.T) {
	stop := NewStop()
	steps := []scriptStep{
		{err: capture.ErrWouldBlock},
		frames(1, 2, 2)[0],
		{err: capture.ErrWouldBlock},
		{err: capture.ErrWouldBlock},
		frames(1, 2, 2)[0],
	}
	src := &scriptSource{w: 2, h: 2, steps: steps, stop: stop}
	enc := &fakeEncoder{}
	mux := &fakeMuxer{}

	r, err := New(testConfig(src, enc, mux, stop))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if r.Frames() != 2 {
		t.Errorf("Frames = %d, want 2 (would-block must not count)", r.Frames())
	}
}

func TestRecorder_FatalSourceErrorDrainsBestEffort(t *testing.T) {
	stop := NewStop()
	steps := append(frames(2, 2, 2), scriptStep{err: errors.New("display disconnected")})
	src := &scriptSource{w: 2, h: 2, steps: steps, stop: stop}
	enc := &fakeEncoder{lookahead: 4} // everything still buffered
	mux := &fakeMuxer{}

	r, err := New(testConfig(src, enc, mux, stop))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = r.Run()
	if err == nil {
		t.Fatal("Run should fail on a fatal source error")
	}
	if !strings.Contains(err.Error(), "display disconnected") {
		t.Errorf("Error should carry the cause, got %v", err)
	}

	// Best-effort flush: buffered packets reach the container anyway.
	if !enc.finished {
		t.Error("Encoder was not drained after fatal error")
	}
	if len(mux.frames) != 2 {
		t.Errorf("Muxed %d packets, want 2 from drain", len(mux.frames))
	}
	if !mux.finalized {
		t.Error("Muxer was not finalized after fatal error")
	}
}

func TestRecorder_EncoderErrorIsFatal(t *testing.T) {
	stop := NewStop()
	src := &scriptSource{w: 2, h: 2, steps: frames(5, 2, 2), stop: stop}
	enc := &fakeEncoder{encodeErrAt: 3}
	mux := &fakeMuxer{}

	r, err := New(testConfig(src, enc, mux, stop))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := r.Run(); err == nil {
		t.Fatal("Run should fail on an encoder error")
	}
	if !mux.finalized {
		t.Error("Muxer was not finalized after encoder error")
	}
}

func TestRecorder_MaxDurationStopsLoop(t *testing.T) {
	stop := NewStop()
	// Endless source; only the duration bound can stop the loop.
	src := capture.NewSyntheticSource(2, 2)
	enc := &fakeEncoder{}
	mux := &fakeMuxer{}

	cfg := testConfig(src, enc, mux, stop)
	cfg.MaxDuration = 50 * time.Millisecond
	cfg.Now = steppedNow(10 * time.Millisecond)

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if r.State() != StateFinished {
		t.Errorf("State = %v, want finished", r.State())
	}
	if !mux.finalized {
		t.Error("Muxer was not finalized")
	}
}

func TestRecorder_PacingSleepsResidual(t *testing.T) {
	stop := NewStop()
	src := &scriptSource{w: 2, h: 2, steps: frames(3, 2, 2), stop: stop}
	enc := &fakeEncoder{}
	mux := &fakeMuxer{}

	var slept []time.Duration
	now := time.Unix(0, 0)
	cfg := testConfig(src, enc, mux, stop)
	cfg.FPS = 10 // 100ms interval
	cfg.Now = func() time.Time { return now }
	cfg.Sleep = func(d time.Duration) { slept = append(slept, d) }

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Iterations take zero fake time, so every sleep is the full interval.
	if len(slept) == 0 {
		t.Fatal("Pacing never slept")
	}
	for _, d := range slept {
		if d != 100*time.Millisecond {
			t.Errorf("Slept %v, want 100ms", d)
		}
	}
}

func TestRecorder_StateEventsPublished(t *testing.T) {
	stop := NewStop()
	src := &scriptSource{w: 2, h: 2, steps: frames(1, 2, 2), stop: stop}
	enc := &fakeEncoder{}
	mux := &fakeMuxer{}

	bus := events.New()
	states := make(chan string, 8)
	unsub := bus.Subscribe(func(e events.RecorderStateEvent) {
		states <- e.State
	})
	defer unsub()

	cfg := testConfig(src, enc, mux, stop)
	cfg.Bus = bus

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"running", "draining", "finished"}
	for _, w := range want {
		select {
		case got := <-states:
			if got != w {
				t.Fatalf("State event = %q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for %q state event", w)
		}
	}
}

func TestRecorder_ConfigValidation(t *testing.T) {
	stop := NewStop()
	src := &scriptSource{w: 2, h: 2}
	enc := &fakeEncoder{}
	mux := &fakeMuxer{}

	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"missing source", func(c *Config) { c.Source = nil }},
		{"missing encoder", func(c *Config) { c.Encoder = nil }},
		{"missing muxer", func(c *Config) { c.Muxer = nil }},
		{"missing stop flag", func(c *Config) { c.Stop = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(src, enc, mux, stop)
			tt.mut(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New should reject the config")
			}
		})
	}
}

func TestRecorder_OddDimensionsRejectedFor420(t *testing.T) {
	stop := NewStop()
	src := &scriptSource{w: 3, h: 2}
	enc := &fakeEncoder{}
	mux := &fakeMuxer{}

	if _, err := New(testConfig(src, enc, mux, stop)); err == nil {
		t.Error("New should reject odd dimensions in a 4:2:0 mode")
	}

	cfg := testConfig(src, enc, mux, stop)
	cfg.Mode = convert.ChromaFull
	if _, err := New(cfg); err != nil {
		t.Errorf("Full chroma mode should accept odd dimensions, got %v", err)
	}
}
