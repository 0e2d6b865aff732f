package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err   error
		kind  string
		input bool
	}{
		{nil, "", false},
		{fmt.Errorf("fetch: %w", ErrDecode), KindDecode, true},
		{fmt.Errorf("%w: 5x5", ErrInvalidCrop), KindInvalidCrop, true},
		{ErrUnsupportedFormat, KindUnsupportedFormat, true},
		{ErrInvalidParams, KindInvalidParams, true},
		{ErrSourceTooLarge, KindSourceTooLarge, true},
		{fmt.Errorf("%w: webp", ErrEncode), KindEncode, false},
		{context.Canceled, KindCanceled, false},
		{context.DeadlineExceeded, KindCanceled, false},
		{errors.New("disk full"), KindInternal, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, ErrorKind(tc.err), "%v", tc.err)
		assert.Equal(t, tc.input, IsInputError(tc.err), "%v", tc.err)
	}
}
