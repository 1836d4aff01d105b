package vpx

import "fmt"

// CodecError mirrors vpx_codec_err_t.
type CodecError int

// libvpx error codes.
const (
	codecOK CodecError = iota
	codecError
	codecMemError
	codecABIMismatch
	codecIncapable
	codecUnsupBitstream
	codecUnsupFeature
	codecCorruptFrame
	codecInvalidParam
)

func (e CodecError) Error() string {
	switch e {
	case codecOK:
		return "vpx: success"
	case codecError:
		return "vpx: unspecified internal error"
	case codecMemError:
		return "vpx: memory allocation error"
	case codecABIMismatch:
		return "vpx: ABI version mismatch"
	case codecIncapable:
		return "vpx: codec does not implement requested capability"
	case codecUnsupBitstream:
		return "vpx: bitstream not supported"
	case codecUnsupFeature:
		return "vpx: required feature not supported"
	case codecCorruptFrame:
		return "vpx: corrupt frame detected"
	case codecInvalidParam:
		return "vpx: invalid parameter"
	default:
		return fmt.Sprintf("vpx: codec error %d", int(e))
	}
}
