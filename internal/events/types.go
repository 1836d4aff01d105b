package events

// Event type constants for kelindar/event.
const (
	TypeRecorderState uint32 = iota + 1
	TypeRecordingFinished
	TypeStopRequested
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RecorderStateEvent is published on every pipeline state transition.
type RecorderStateEvent struct {
	State     string `json:"state"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Type returns the event type identifier for RecorderStateEvent.
func (e RecorderStateEvent) Type() uint32 { return TypeRecorderState }

// StopRequestedEvent records which control source asked the pipeline to
// stop (hotkey, prompt, signal, timer).
type StopRequestedEvent struct {
	Source string `json:"source"`
}

// Type returns the event type identifier for StopRequestedEvent.
func (e StopRequestedEvent) Type() uint32 { return TypeStopRequested }

// RecordingFinishedEvent is published once when the pipeline reaches its
// terminal state, whether cleanly or after a fatal error.
type RecordingFinishedEvent struct {
	Frames     uint64 `json:"frames"`
	DurationMs int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Type returns the event type identifier for RecordingFinishedEvent.
func (e RecordingFinishedEvent) Type() uint32 { return TypeRecordingFinished }
