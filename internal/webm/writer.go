// Package webm writes encoded VP8/VP9 packets into a WebM container using
// the ebml-go block writer. The container carries a single video track;
// timestamps are milliseconds, matching the encoder timebase.
package webm

import (
	"errors"
	"fmt"
	"io"

	ebml "github.com/at-wat/ebml-go/webm"
)

// Matroska codec IDs for the video track.
const (
	CodecVP8 = "V_VP8"
	CodecVP9 = "V_VP9"
)

const videoTrackUID = 0x5245434f // arbitrary nonzero track UID

// TrackConfig describes the single video track.
type TrackConfig struct {
	Width, Height int
	CodecID       string
	// FrameRate sets the track's default frame duration; zero leaves it
	// unset for variable-rate recordings.
	FrameRate int
}

// Writer muxes encoded packets into a WebM segment. It is driven by the
// pipeline goroutine only.
type Writer struct {
	block ebml.BlockWriteCloser

	lastPtsMs int64
	havePts   bool
	finalized bool
}

// NewWriter starts a WebM segment on w. Finalize closes w through the
// block writer.
func NewWriter(w io.WriteCloser, cfg TrackConfig) (*Writer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("webm: invalid track dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.CodecID != CodecVP8 && cfg.CodecID != CodecVP9 {
		return nil, fmt.Errorf("webm: unsupported codec id %q", cfg.CodecID)
	}

	track := ebml.TrackEntry{
		Name:        "Video",
		TrackNumber: 1,
		TrackUID:    videoTrackUID,
		CodecID:     cfg.CodecID,
		TrackType:   1,
		Video: &ebml.Video{
			PixelWidth:  uint64(cfg.Width),
			PixelHeight: uint64(cfg.Height),
		},
	}
	if cfg.FrameRate > 0 {
		track.DefaultDuration = uint64(1000000000 / cfg.FrameRate)
	}

	blocks, err := ebml.NewSimpleBlockWriter(w, []ebml.TrackEntry{track})
	if err != nil {
		return nil, fmt.Errorf("webm: start segment: %w", err)
	}

	return &Writer{block: blocks[0]}, nil
}

// AddFrame appends one encoded packet. Timestamps must be non-decreasing;
// a violation is an error, not a silent reorder.
func (w *Writer) AddFrame(data []byte, ptsMs int64, keyframe bool) error {
	if w.finalized {
		return errors.New("webm: writer is finalized")
	}
	if w.havePts && ptsMs < w.lastPtsMs {
		return fmt.Errorf("webm: timestamp %dms precedes previous %dms", ptsMs, w.lastPtsMs)
	}

	if _, err := w.block.Write(keyframe, ptsMs, data); err != nil {
		return fmt.Errorf("webm: write block: %w", err)
	}
	w.lastPtsMs = ptsMs
	w.havePts = true
	return nil
}

// Finalize patches up the segment and closes the underlying writer.
// Further calls are no-ops.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	if err := w.block.Close(); err != nil {
		return fmt.Errorf("webm: finalize segment: %w", err)
	}
	return nil
}
