package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// DisplayInfo describes one attached display.
type DisplayInfo struct {
	Index  int
	Bounds image.Rectangle
}

func (d DisplayInfo) String() string {
	return fmt.Sprintf("Display %d [%dx%d]", d.Index, d.Bounds.Dx(), d.Bounds.Dy())
}

// Displays enumerates the active displays.
func Displays() ([]DisplayInfo, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplays
	}

	infos := make([]DisplayInfo, 0, n)
	for i := 0; i < n; i++ {
		infos = append(infos, DisplayInfo{Index: i, Bounds: screenshot.GetDisplayBounds(i)})
	}
	return infos, nil
}

// DisplaySource grabs frames from one display. Grabs are synchronous, so
// NextFrame never reports ErrWouldBlock; pacing is the pipeline's job.
type DisplaySource struct {
	bounds image.Rectangle
}

// NewDisplaySource opens a source for the display at the given index.
func NewDisplaySource(index int) (*DisplaySource, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplays
	}
	if index < 0 || index >= n {
		return nil, fmt.Errorf("capture: display index %d out of range (have %d)", index, n)
	}

	return &DisplaySource{bounds: screenshot.GetDisplayBounds(index)}, nil
}

// Width returns the display width in pixels.
func (s *DisplaySource) Width() int { return s.bounds.Dx() }

// Height returns the display height in pixels.
func (s *DisplaySource) Height() int { return s.bounds.Dy() }

// NextFrame grabs the display's current contents as packed BGRA.
func (s *DisplaySource) NextFrame() ([]byte, error) {
	img, err := screenshot.CaptureRect(s.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture: grab display: %w", err)
	}
	return rgbaToBGRA(img), nil
}

// Close releases the source. The screenshot backend holds no persistent
// handles, so this is a no-op kept for Source symmetry.
func (s *DisplaySource) Close() error { return nil }

// rgbaToBGRA repacks an *image.RGBA into a tightly packed BGRA buffer,
// honoring the image stride.
func rgbaToBGRA(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, w*h*4)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := out[y*w*4:]
		for x := 0; x < w*4; x += 4 {
			dst[x] = row[x+2]
			dst[x+1] = row[x+1]
			dst[x+2] = row[x]
			dst[x+3] = row[x+3]
		}
	}
	return out
}
