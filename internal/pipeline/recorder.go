package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/events"
	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/metrics"
)

// State is the recorder lifecycle phase.
type State int

const (
	// StateStarting covers resource allocation and control-source wiring.
	StateStarting State = iota
	// StateRunning is the capture loop.
	StateRunning
	// StateDraining flushes encoder lookahead after the loop exits.
	StateDraining
	// StateFinished is terminal; the container is finalized.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Packet is one encoded video frame ready for the container.
type Packet struct {
	Data     []byte
	PtsMs    int64
	Keyframe bool
}

// Encoder is the video encoder boundary. Encode may buffer frames
// internally (lookahead) and return zero or more finished packets per call;
// Finish drains whatever is still buffered. The pixel format was fixed when
// the encoder was configured.
type Encoder interface {
	Encode(ptsMs int64, yuv []byte) ([]Packet, error)
	Finish() ([]Packet, error)
}

// Muxer is the container boundary. AddFrame calls must carry
// non-decreasing timestamps; Finalize closes the container.
type Muxer interface {
	AddFrame(data []byte, ptsMs int64, keyframe bool) error
	Finalize() error
}

// Config assembles a Recorder. Source, Encoder, Muxer and Stop are
// required.
type Config struct {
	Source  capture.Source
	Encoder Encoder
	Muxer   Muxer

	Mode convert.Mode

	// FPS caps the capture rate; zero records as fast as the source allows.
	FPS int
	// MaxDuration bounds the recording; zero means until stopped.
	MaxDuration time.Duration

	Stop   *Stop
	Logger logging.Logger
	Bus    *events.Bus

	// Now and Sleep default to the time package; tests inject fakes.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Recorder runs the capture loop. All methods are driven from one
// goroutine; only the Stop flag is shared.
type Recorder struct {
	cfg      Config
	state    State
	clock    *Clock
	interval time.Duration

	width, height int
	frames        uint64
}

// New validates the configuration and returns a Recorder in StateStarting.
func New(cfg Config) (*Recorder, error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: Source is required")
	}
	if cfg.Encoder == nil {
		return nil, errors.New("pipeline: Encoder is required")
	}
	if cfg.Muxer == nil {
		return nil, errors.New("pipeline: Muxer is required")
	}
	if cfg.Stop == nil {
		return nil, errors.New("pipeline: Stop flag is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger("pipeline")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}

	r := &Recorder{
		cfg:    cfg,
		state:  StateStarting,
		width:  cfg.Source.Width(),
		height: cfg.Source.Height(),
	}
	if cfg.FPS > 0 {
		r.interval = time.Second / time.Duration(cfg.FPS)
	}

	if cfg.Mode.Subsampled() && (r.width%2 != 0 || r.height%2 != 0) {
		return nil, fmt.Errorf("pipeline: %dx%d source needs even dimensions for 4:2:0 output (use full chroma mode)", r.width, r.height)
	}

	return r, nil
}

// State returns the current lifecycle phase.
func (r *Recorder) State() State {
	return r.state
}

// Frames returns how many frames were encoded so far.
func (r *Recorder) Frames() uint64 {
	return r.frames
}

func (r *Recorder) setState(s State) {
	r.state = s
	metrics.SetRecorderState(int(s))

	var elapsed time.Duration
	if r.clock != nil {
		elapsed = r.clock.Elapsed()
	}
	r.cfg.Logger.Debug("State transition", "state", s.String(), "elapsed", elapsed)
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(events.RecorderStateEvent{
			State:     s.String(),
			ElapsedMs: elapsed.Milliseconds(),
		})
	}
}

// Run executes the recording until a control source signals stop, the
// maximum duration elapses, or a fatal error occurs. It always attempts to
// drain the encoder and finalize the container before returning; on the
// fatal path the original error is returned and drain problems are only
// logged.
func (r *Recorder) Run() error {
	r.clock = NewClockFunc(r.cfg.Now)
	r.setState(StateRunning)

	r.cfg.Logger.Info("Recording started",
		"width", r.width, "height", r.height,
		"fps", r.cfg.FPS, "max_duration", r.cfg.MaxDuration,
		"chroma", r.cfg.Mode.String())

	if err := r.loop(); err != nil {
		if drainErr := r.shutdown(); drainErr != nil {
			r.cfg.Logger.Warn("Best-effort drain after failure also failed", "error", drainErr)
		}
		r.publishFinished(err)
		return err
	}

	if err := r.shutdown(); err != nil {
		r.publishFinished(err)
		return err
	}
	r.publishFinished(nil)
	return nil
}

func (r *Recorder) loop() error {
	for {
		elapsed := r.clock.Elapsed()
		if r.cfg.Stop.Stopped() {
			r.cfg.Logger.Info("Stop requested", "elapsed", elapsed)
			return nil
		}
		if ShouldStop(elapsed, r.cfg.MaxDuration) {
			r.cfg.Logger.Info("Maximum duration reached", "elapsed", elapsed)
			return nil
		}

		iterStart := r.cfg.Now()

		frame, err := r.cfg.Source.NextFrame()
		switch {
		case errors.Is(err, capture.ErrWouldBlock):
			// Transient: retry next iteration.
			metrics.IncWouldBlock()
		case err != nil:
			// Capture failures are assumed non-transient (display gone).
			return fmt.Errorf("pipeline: frame source failed: %w", err)
		default:
			metrics.IncFrameCaptured()
			if err := r.processFrame(frame, elapsed); err != nil {
				return err
			}
		}

		if d := Pace(r.cfg.Now().Sub(iterStart), r.interval); d > 0 {
			r.cfg.Sleep(d)
		}
	}
}

func (r *Recorder) processFrame(frame []byte, elapsed time.Duration) error {
	convertStart := r.cfg.Now()
	yuv := convert.Convert(r.cfg.Mode, r.width, r.height, frame)
	metrics.ObserveConvert(r.cfg.Now().Sub(convertStart))

	ptsMs := elapsed.Milliseconds()

	encodeStart := r.cfg.Now()
	packets, err := r.cfg.Encoder.Encode(ptsMs, yuv)
	metrics.ObserveEncode(r.cfg.Now().Sub(encodeStart))
	if err != nil {
		return fmt.Errorf("pipeline: encode frame at %dms: %w", ptsMs, err)
	}
	r.frames++

	return r.forward(packets)
}

// forward hands packets to the muxer in the order the encoder yielded them.
func (r *Recorder) forward(packets []Packet) error {
	for _, p := range packets {
		if err := r.cfg.Muxer.AddFrame(p.Data, p.PtsMs, p.Keyframe); err != nil {
			return fmt.Errorf("pipeline: mux packet at %dms: %w", p.PtsMs, err)
		}
	}
	metrics.AddPacketsMuxed(len(packets))
	return nil
}

// shutdown drains encoder lookahead and finalizes the container.
func (r *Recorder) shutdown() error {
	r.setState(StateDraining)

	packets, err := r.cfg.Encoder.Finish()
	if err != nil {
		// Still try to finalize what was already muxed.
		if finErr := r.cfg.Muxer.Finalize(); finErr != nil {
			r.cfg.Logger.Warn("Finalize after drain failure also failed", "error", finErr)
		}
		r.setState(StateFinished)
		return fmt.Errorf("pipeline: drain encoder: %w", err)
	}
	if err := r.forward(packets); err != nil {
		if finErr := r.cfg.Muxer.Finalize(); finErr != nil {
			r.cfg.Logger.Warn("Finalize after mux failure also failed", "error", finErr)
		}
		r.setState(StateFinished)
		return err
	}

	if err := r.cfg.Muxer.Finalize(); err != nil {
		r.setState(StateFinished)
		return fmt.Errorf("pipeline: finalize container: %w", err)
	}

	r.setState(StateFinished)
	r.cfg.Logger.Info("Recording finished", "frames", r.frames, "duration", r.clock.Elapsed())
	return nil
}

func (r *Recorder) publishFinished(err error) {
	if r.cfg.Bus == nil {
		return
	}
	ev := events.RecordingFinishedEvent{
		Frames:     r.frames,
		DurationMs: r.clock.Elapsed().Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.cfg.Bus.Publish(ev)
}
