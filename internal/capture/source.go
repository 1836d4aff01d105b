// Package capture provides the frame sources the recording pipeline pulls
// from. All sources hand out packed BGRA buffers, the unified pixel format
// across backends; anything a backend delivers natively in another layout is
// normalized at this boundary.
package capture

import "errors"

var (
	// ErrWouldBlock signals that no frame is ready yet. The pipeline treats
	// it as a silent no-op iteration, never as a failure.
	ErrWouldBlock = errors.New("capture: frame not ready")

	// ErrNoDisplays is returned when display enumeration finds nothing to
	// record.
	ErrNoDisplays = errors.New("capture: no active displays found")
)

// Source is a real-time frame producer. NextFrame returns a packed BGRA
// buffer of exactly Width*Height*4 bytes, ErrWouldBlock when transiently
// not ready, or a fatal error. The buffer is only borrowed by the caller
// for the duration of one conversion; sources may not recycle it while the
// call is in flight, and callers may not retain it afterwards.
//
// A Source is polled from a single goroutine.
type Source interface {
	NextFrame() ([]byte, error)
	Width() int
	Height() int
	Close() error
}
