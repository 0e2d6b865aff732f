package pipeline

import (
	"errors"
	"fmt"
)

var ErrSourceTooLarge = errors.New("source image exceeds size limits")

// Limits is the ceiling callers enforce before handing bytes to Run.
// Zero fields disable the corresponding check.
type Limits struct {
	MaxBytes  int64
	MaxPixels int64
}

// Check rejects oversized sources from their byte length and header alone.
func (l Limits) Check(data []byte) (Info, error) {
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return Info{}, fmt.Errorf("%w: %d bytes > %d", ErrSourceTooLarge, len(data), l.MaxBytes)
	}

	info, err := Probe(data)
	if err != nil {
		return Info{}, err
	}
	if l.MaxPixels > 0 && info.Pixels() > l.MaxPixels {
		return Info{}, fmt.Errorf("%w: %dx%d > %d pixels", ErrSourceTooLarge, info.Width, info.Height, l.MaxPixels)
	}
	return info, nil
}
