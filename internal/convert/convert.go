// Package convert turns packed BGRA framebuffers into planar YUV for the
// video encoder.
//
// The color matrix is the fixed-point BT.601 full-range-to-studio-range
// transform; it is a hard invariant of the recorder's output and is not
// configurable. All intermediate math is signed; divisions truncate toward
// zero (Go's native integer division), which can differ by one unit from a
// flooring implementation near negative intermediates.
package convert

import "fmt"

// Mode selects the chroma subsampling strategy. Exactly one mode is active
// for the lifetime of a recording; it is chosen at configuration time, never
// per frame.
type Mode int

const (
	// ChromaNearest is 4:2:0 with the top-left pixel of each 2x2 block as
	// the block's chroma sample. Cheapest, slightly more chroma aliasing.
	ChromaNearest Mode = iota
	// ChromaAveraged is 4:2:0 with per-block averaged chroma.
	ChromaAveraged
	// ChromaFull is 4:4:4, one chroma sample per pixel.
	ChromaFull
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "nearest", "":
		return ChromaNearest, nil
	case "averaged":
		return ChromaAveraged, nil
	case "full", "444":
		return ChromaFull, nil
	default:
		return 0, fmt.Errorf("unknown chroma mode %q (expected nearest, averaged or full)", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ChromaNearest:
		return "nearest"
	case ChromaAveraged:
		return "averaged"
	case ChromaFull:
		return "full"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Subsampled reports whether the mode produces 4:2:0 output.
func (m Mode) Subsampled() bool { return m != ChromaFull }

// Convert dispatches to the converter for the given mode.
func Convert(mode Mode, width, height int, src []byte) []byte {
	switch mode {
	case ChromaAveraged:
		return BGRAToI420Averaged(width, height, src)
	case ChromaFull:
		return BGRAToI444(width, height, src)
	default:
		return BGRAToI420(width, height, src)
	}
}

// pixelAt reads the pixel at index idx (row-major) from a packed BGRA buffer
// and returns its channels as signed ints ready for the matrix math.
func pixelAt(src []byte, idx int) (r, g, b int32) {
	off := idx * 4
	b = int32(src[off])
	g = int32(src[off+1])
	r = int32(src[off+2])
	return r, g, b
}

func lumaOf(r, g, b int32) byte {
	return clamp((66*r+129*g+25*b+128)/256 + 16)
}

// chromaU and chromaV return unclamped values so the averaged strategy can
// sum them before clamping.
func chromaU(r, g, b int32) int32 {
	return (-38*r-74*g+112*b+128)/256 + 128
}

func chromaV(r, g, b int32) int32 {
	return (112*r-94*g-18*b+128)/256 + 128
}

func clamp(x int32) byte {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return byte(x)
}

func checkFrame(width, height int, src []byte, subsampled bool) {
	if len(src) != width*height*4 {
		panic(fmt.Sprintf("convert: frame buffer is %d bytes, want %d for %dx%d BGRA", len(src), width*height*4, width, height))
	}
	if subsampled && (width%2 != 0 || height%2 != 0) {
		panic(fmt.Sprintf("convert: 4:2:0 output requires even dimensions, got %dx%d", width, height))
	}
}

// BGRAToI420 converts a packed BGRA frame to planar I420 (4:2:0). The chroma
// sample for each 2x2 block is taken from the block's top-left pixel with no
// averaging. The returned buffer is freshly allocated: Y plane (w*h bytes)
// followed by U and V planes (w*h/4 bytes each).
//
// width and height must be even and len(src) must equal width*height*4;
// violations panic.
func BGRAToI420(width, height int, src []byte) []byte {
	checkFrame(width, height, src, true)

	frameSize := width * height
	yuv := make([]byte, frameSize*3/2)

	uIndex := frameSize
	vIndex := frameSize + frameSize/4

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			r, g, b := pixelAt(src, row*width+col)
			yuv[row*width+col] = lumaOf(r, g, b)

			if col%2 == 0 && row%2 == 0 {
				yuv[uIndex] = clamp(chromaU(r, g, b))
				yuv[vIndex] = clamp(chromaV(r, g, b))
				uIndex++
				vIndex++
			}
		}
	}

	return yuv
}

// BGRAToI420Averaged converts to planar I420 like BGRAToI420, but each 2x2
// block's chroma is the truncating integer mean of the four per-pixel chroma
// values. Reduces chroma aliasing at the same output size.
func BGRAToI420Averaged(width, height int, src []byte) []byte {
	checkFrame(width, height, src, true)

	frameSize := width * height
	yuv := make([]byte, frameSize*3/2)

	uIndex := frameSize
	vIndex := frameSize + frameSize/4

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			idx := row*width + col
			r, g, b := pixelAt(src, idx)
			yuv[idx] = lumaOf(r, g, b)

			if col%2 != 0 || row%2 != 0 {
				continue
			}

			// Even dimensions guarantee the right and bottom neighbors
			// exist for every anchor pixel.
			var uSum, vSum int32
			for _, n := range [4]int{idx, idx + 1, idx + width, idx + width + 1} {
				nr, ng, nb := pixelAt(src, n)
				uSum += chromaU(nr, ng, nb)
				vSum += chromaV(nr, ng, nb)
			}

			yuv[uIndex] = clamp(uSum / 4)
			yuv[vIndex] = clamp(vSum / 4)
			uIndex++
			vIndex++
		}
	}

	return yuv
}

// BGRAToI444 converts a packed BGRA frame to planar I444: full-resolution Y,
// U and V planes of width*height bytes each. No chroma loss, larger encoder
// input. len(src) must equal width*height*4; violations panic.
func BGRAToI444(width, height int, src []byte) []byte {
	checkFrame(width, height, src, false)

	frameSize := width * height
	yuv := make([]byte, frameSize*3)

	for i := 0; i < frameSize; i++ {
		r, g, b := pixelAt(src, i)
		yuv[i] = lumaOf(r, g, b)
		yuv[i+frameSize] = clamp(chromaU(r, g, b))
		yuv[i+frameSize*2] = clamp(chromaV(r, g, b))
	}

	return yuv
}
