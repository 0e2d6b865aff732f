package pipeline

import (
	"errors"
	"fmt"
)

var errGIFStructure = errors.New("malformed gif stream")

const (
	gifExtensionIntroducer = 0x21
	gifImageSeparator      = 0x2C
	gifTrailer             = 0x3B
	gifColorTableFlag      = 0x80
)

// checkGIFStructure walks the block layout up to the end of the first
// frame without running LZW, so a GIF signature followed by junk is
// rejected before its header dimensions are trusted.
func checkGIFStructure(data []byte) error {
	// signature and logical screen descriptor
	pos := 13
	if len(data) < pos {
		return fmt.Errorf("%w: truncated screen descriptor", errGIFStructure)
	}
	if flags := data[10]; flags&gifColorTableFlag != 0 {
		pos += 3 << ((flags & 0x07) + 1)
	}

	for {
		if pos >= len(data) {
			return fmt.Errorf("%w: no image data", errGIFStructure)
		}
		block := data[pos]
		pos++

		switch block {
		case gifExtensionIntroducer:
			if pos >= len(data) {
				return fmt.Errorf("%w: truncated extension", errGIFStructure)
			}
			next, err := skipGIFSubBlocks(data, pos+1)
			if err != nil {
				return err
			}
			pos = next
		case gifImageSeparator:
			if pos+9 > len(data) {
				return fmt.Errorf("%w: truncated image descriptor", errGIFStructure)
			}
			flags := data[pos+8]
			pos += 9
			if flags&gifColorTableFlag != 0 {
				pos += 3 << ((flags & 0x07) + 1)
			}
			// LZW minimum code size
			if pos >= len(data) {
				return fmt.Errorf("%w: truncated image data", errGIFStructure)
			}
			if size := data[pos]; size < 2 || size > 8 {
				return fmt.Errorf("%w: lzw code size %d", errGIFStructure, size)
			}
			_, err := skipGIFSubBlocks(data, pos+1)
			return err
		case gifTrailer:
			return fmt.Errorf("%w: no image data", errGIFStructure)
		default:
			return fmt.Errorf("%w: unknown block 0x%02x", errGIFStructure, block)
		}
	}
}

func skipGIFSubBlocks(data []byte, pos int) (int, error) {
	for {
		if pos >= len(data) {
			return 0, fmt.Errorf("%w: truncated data sub-block", errGIFStructure)
		}
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos, nil
		}
		pos += n
	}
}
