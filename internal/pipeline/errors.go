package pipeline

import (
	"context"
	"errors"
)

var (
	ErrDecode            = errors.New("decode source image")
	ErrInvalidCrop       = errors.New("invalid crop rectangle")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrEncode            = errors.New("encode output image")
	ErrInvalidParams     = errors.New("invalid edit parameters")
)

const (
	KindDecode            = "decode"
	KindInvalidCrop       = "invalid_crop"
	KindUnsupportedFormat = "unsupported_format"
	KindEncode            = "encode"
	KindInvalidParams     = "invalid_params"
	KindSourceTooLarge    = "source_too_large"
	KindCanceled          = "canceled"
	KindInternal          = "internal"
)

// ErrorKind returns a stable label for err, suitable for metrics and
// response bodies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrInvalidCrop):
		return KindInvalidCrop
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrEncode):
		return KindEncode
	case errors.Is(err, ErrInvalidParams):
		return KindInvalidParams
	case errors.Is(err, ErrSourceTooLarge):
		return KindSourceTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// IsInputError reports whether err was caused by the request itself.
// Such errors fail the same way on every retry.
func IsInputError(err error) bool {
	switch ErrorKind(err) {
	case KindDecode, KindInvalidCrop, KindUnsupportedFormat, KindInvalidParams, KindSourceTooLarge:
		return true
	default:
		return false
	}
}
