package pipeline

import (
	"sync"
	"testing"
)

func TestStop_InitiallyUnsignalled(t *testing.T) {
	if NewStop().Stopped() {
		t.Error("Fresh flag reports stopped")
	}
}

func TestStop_SignalIsIdempotent(t *testing.T) {
	s := NewStop()
	s.Signal()
	s.Signal()
	if !s.Stopped() {
		t.Error("Flag not stopped after Signal")
	}
}

func TestStop_ConcurrentSignals(t *testing.T) {
	s := NewStop()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Signal()
		}()
	}
	wg.Wait()

	if !s.Stopped() {
		t.Error("Flag not stopped after concurrent signals")
	}
}
