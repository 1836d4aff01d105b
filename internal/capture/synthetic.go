package capture

// SyntheticSource generates deterministic BGRA frames without touching any
// display API. Used by tests and by `record --synthetic` dry runs where no
// capture backend is available.
type SyntheticSource struct {
	width, height int

	// WouldBlockEvery makes every Nth call report ErrWouldBlock to exercise
	// the pipeline's transient-stall handling. Zero disables it.
	WouldBlockEvery int

	calls  int
	frames int
}

// NewSyntheticSource creates a generator of the given dimensions.
func NewSyntheticSource(width, height int) *SyntheticSource {
	return &SyntheticSource{width: width, height: height}
}

// Width returns the frame width in pixels.
func (s *SyntheticSource) Width() int { return s.width }

// Height returns the frame height in pixels.
func (s *SyntheticSource) Height() int { return s.height }

// NextFrame returns a moving-gradient BGRA frame. The pattern depends only
// on frame ordinal and pixel position, so runs are reproducible.
func (s *SyntheticSource) NextFrame() ([]byte, error) {
	s.calls++
	if s.WouldBlockEvery > 0 && s.calls%s.WouldBlockEvery == 0 {
		return nil, ErrWouldBlock
	}

	frame := make([]byte, s.width*s.height*4)
	shift := s.frames
	s.frames++

	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			off := (y*s.width + x) * 4
			frame[off] = byte(x + shift)   // B
			frame[off+1] = byte(y + shift) // G
			frame[off+2] = byte(x ^ y)     // R
			frame[off+3] = 0xff
		}
	}
	return frame, nil
}

// Close resets the generator.
func (s *SyntheticSource) Close() error {
	s.calls = 0
	s.frames = 0
	return nil
}
