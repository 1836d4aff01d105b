// Package vpx wraps libvpx for VP8/VP9 encoding of planar YUV frames.
//
// The encoder runs with a fixed 1/1000 timebase so presentation timestamps
// are plain milliseconds, matching what the pipeline produces and what the
// WebM writer expects.
package vpx

/*
#cgo pkg-config: vpx

#include <string.h>

#include "vpx/vpx_encoder.h"
#include "vpx/vp8cx.h"

static int enc_init(vpx_codec_ctx_t *ctx, int use_vp9, int width, int height,
                    unsigned int bitrate_kbps, unsigned int profile) {
	vpx_codec_iface_t *iface = use_vp9 ? vpx_codec_vp9_cx() : vpx_codec_vp8_cx();
	vpx_codec_enc_cfg_t cfg;
	vpx_codec_err_t res = vpx_codec_enc_config_default(iface, &cfg, 0);
	if (res != VPX_CODEC_OK) {
		return res;
	}
	cfg.g_w = width;
	cfg.g_h = height;
	cfg.g_timebase.num = 1;
	cfg.g_timebase.den = 1000;
	cfg.g_profile = profile;
	cfg.rc_target_bitrate = bitrate_kbps;
	return vpx_codec_enc_init(ctx, iface, &cfg, 0);
}

static int enc_encode(vpx_codec_ctx_t *ctx, vpx_image_t *img, long long pts) {
	return vpx_codec_encode(ctx, img, pts, 1, 0, VPX_DL_REALTIME);
}

static int enc_flush(vpx_codec_ctx_t *ctx) {
	return vpx_codec_encode(ctx, NULL, -1, 1, 0, VPX_DL_REALTIME);
}

static const vpx_codec_cx_pkt_t *enc_next_packet(vpx_codec_ctx_t *ctx, vpx_codec_iter_t *iter) {
	const vpx_codec_cx_pkt_t *pkt;
	while ((pkt = vpx_codec_get_cx_data(ctx, iter)) != NULL) {
		if (pkt->kind == VPX_CODEC_CX_FRAME_PKT) {
			return pkt;
		}
	}
	return NULL;
}

static void pkt_info(const vpx_codec_cx_pkt_t *pkt, const void **buf, int *sz,
                     long long *pts, int *key) {
	*buf = pkt->data.frame.buf;
	*sz = (int)pkt->data.frame.sz;
	*pts = (long long)pkt->data.frame.pts;
	*key = (pkt->data.frame.flags & VPX_FRAME_IS_KEY) != 0;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// Codec selects the bitstream.
type Codec int

const (
	// VP8 is the default codec.
	VP8 Codec = iota
	// VP9 compresses better at higher CPU cost and is required for 4:4:4.
	VP9
)

// ParseCodec maps a config string to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "vp8", "":
		return VP8, nil
	case "vp9":
		return VP9, nil
	default:
		return 0, fmt.Errorf("vpx: unknown codec %q (expected vp8 or vp9)", s)
	}
}

func (c Codec) String() string {
	if c == VP9 {
		return "vp9"
	}
	return "vp8"
}

// ImageFormat is the planar layout of submitted frames.
type ImageFormat int

const (
	// FormatI420 is 4:2:0 planar YUV.
	FormatI420 ImageFormat = iota
	// FormatI444 is 4:4:4 planar YUV; VP9 only (profile 1).
	FormatI444
)

// Packet is one encoded frame produced by the codec.
type Packet struct {
	Data     []byte
	PtsMs    int64
	Keyframe bool
}

// Config describes an encoding session. The format is fixed for the whole
// session; the pipeline selects it from the chroma mode at startup.
type Config struct {
	Width, Height int
	BitrateKbps   uint
	Codec         Codec
	Format        ImageFormat
}

// Encoder is a libvpx encoding session. Methods are not safe for
// concurrent use except through the internal mutex; the pipeline drives it
// from a single goroutine anyway.
type Encoder struct {
	mu sync.Mutex

	ctx    C.vpx_codec_ctx_t
	img    *C.vpx_image_t
	cfg    Config
	closed bool
}

// New initializes a libvpx session.
func New(cfg Config) (*Encoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("vpx: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.BitrateKbps == 0 {
		cfg.BitrateKbps = 5000
	}
	if cfg.Format == FormatI444 && cfg.Codec != VP9 {
		return nil, errors.New("vpx: 4:4:4 input requires the vp9 codec")
	}

	imgFmt := C.vpx_img_fmt_t(C.VPX_IMG_FMT_I420)
	profile := C.uint(0)
	if cfg.Format == FormatI444 {
		imgFmt = C.VPX_IMG_FMT_I444
		profile = 1
	}

	e := &Encoder{cfg: cfg}

	e.img = C.vpx_img_alloc(nil, imgFmt, C.uint(cfg.Width), C.uint(cfg.Height), 1)
	if e.img == nil {
		return nil, codecMemError
	}

	useVP9 := C.int(0)
	if cfg.Codec == VP9 {
		useVP9 = 1
	}
	if ret := C.enc_init(&e.ctx, useVP9, C.int(cfg.Width), C.int(cfg.Height), C.uint(cfg.BitrateKbps), profile); ret != 0 {
		C.vpx_img_free(e.img)
		return nil, CodecError(ret)
	}

	return e, nil
}

// yuvLen returns the expected input buffer length for the session format.
func (e *Encoder) yuvLen() int {
	n := e.cfg.Width * e.cfg.Height
	if e.cfg.Format == FormatI444 {
		return n * 3
	}
	return n * 3 / 2
}

// Encode submits one frame at the given millisecond timestamp and returns
// whatever packets the codec finished. Lookahead means packets may lag
// frames; Finish retrieves the remainder.
func (e *Encoder) Encode(ptsMs int64, yuv []byte) ([]Packet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New("vpx: encoder is closed")
	}
	if len(yuv) != e.yuvLen() {
		return nil, fmt.Errorf("vpx: yuv buffer is %d bytes, want %d", len(yuv), e.yuvLen())
	}

	e.loadImage(yuv)

	if ret := C.enc_encode(&e.ctx, e.img, C.longlong(ptsMs)); ret != 0 {
		return nil, CodecError(ret)
	}
	return e.collect(), nil
}

// Finish signals end-of-stream and drains all buffered packets. The
// encoder accepts no frames afterwards.
func (e *Encoder) Finish() ([]Packet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New("vpx: encoder is closed")
	}

	var out []Packet
	for {
		if ret := C.enc_flush(&e.ctx); ret != 0 {
			return out, CodecError(ret)
		}
		packets := e.collect()
		if len(packets) == 0 {
			break
		}
		out = append(out, packets...)
	}
	return out, nil
}

// Close releases the codec context and frame image.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	C.vpx_img_free(e.img)
	if ret := C.vpx_codec_destroy(&e.ctx); ret != 0 {
		return CodecError(ret)
	}
	return nil
}

// loadImage copies the planar input into the libvpx image, row by row to
// honor plane strides.
func (e *Encoder) loadImage(yuv []byte) {
	w, h := e.cfg.Width, e.cfg.Height

	chromaW, chromaH := w, h
	if e.cfg.Format == FormatI420 {
		chromaW, chromaH = w/2, h/2
	}

	offset := 0
	for plane := 0; plane < 3; plane++ {
		pw, ph := w, h
		if plane > 0 {
			pw, ph = chromaW, chromaH
		}

		stride := int(e.img.stride[plane])
		dst := unsafe.Slice((*byte)(e.img.planes[plane]), stride*ph)
		for row := 0; row < ph; row++ {
			copy(dst[row*stride:row*stride+pw], yuv[offset:offset+pw])
			offset += pw
		}
	}
}

// collect pulls all finished frame packets from the codec, copying payloads
// out of libvpx-owned memory.
func (e *Encoder) collect() []Packet {
	var packets []Packet
	var iter C.vpx_codec_iter_t

	for {
		pkt := C.enc_next_packet(&e.ctx, &iter)
		if pkt == nil {
			return packets
		}

		var (
			buf unsafe.Pointer
			sz  C.int
			pts C.longlong
			key C.int
		)
		C.pkt_info(pkt, &buf, &sz, &pts, &key)

		packets = append(packets, Packet{
			Data:     C.GoBytes(buf, sz),
			PtsMs:    int64(pts),
			Keyframe: key != 0,
		})
	}
}
