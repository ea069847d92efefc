package stdio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxLineBytes bounds a single inbound line.
const DefaultMaxLineBytes = 10 << 20

// ErrLineTooLong is reported for a line that exceeded the configured maximum.
// The offending line has been consumed; the next call continues with the
// following line.
var ErrLineTooLong = errors.New("stdio: line exceeds maximum length")

// lineReader splits a byte stream into newline-terminated frames.
type lineReader struct {
	br  *bufio.Reader
	max int
}

func newLineReader(r io.Reader, max int) *lineReader {
	if max <= 0 {
		max = DefaultMaxLineBytes
	}
	return &lineReader{br: bufio.NewReaderSize(r, 64<<10), max: max}
}

// next returns the next line without its terminator. A final line without a
// trailing newline is returned before io.EOF.
func (lr *lineReader) next() ([]byte, error) {
	var (
		line     []byte
		overflow bool
	)
	for {
		chunk, err := lr.br.ReadSlice('\n')
		if !overflow {
			n := len(line) + len(chunk)
			if len(chunk) > 0 && chunk[len(chunk)-1] == '\n' {
				n--
			}
			if n > lr.max {
				overflow = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
			if overflow {
				return nil, ErrLineTooLong
			}
			return bytes.TrimRight(line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if overflow {
				return nil, ErrLineTooLong
			}
			if len(line) > 0 {
				return bytes.TrimRight(line, "\r"), nil
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}
