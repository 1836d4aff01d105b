package pipeline

import "sync/atomic"

// Stop is the process-wide cancellation flag. It is created once by the
// record command and handed to every control source explicitly; there is no
// package-level instance. Signal is idempotent and safe to call from any
// number of goroutines, Stopped is a non-blocking read.
//
// The atomic store/load pair gives release/acquire ordering: a goroutine
// that observes Stopped() == true also observes everything the signalling
// goroutine did first. Nothing else crosses goroutine boundaries here, so
// no further synchronization is needed.
type Stop struct {
	flag atomic.Bool
}

// NewStop returns a fresh, unsignalled flag.
func NewStop() *Stop {
	return &Stop{}
}

// Signal marks the pipeline for shutdown. Repeat calls are no-ops.
func (s *Stop) Signal() {
	s.flag.Store(true)
}

// Stopped reports whether any control source has requested shutdown.
func (s *Stop) Stopped() bool {
	return s.flag.Load()
}
