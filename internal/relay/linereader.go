package relay

import (
	"bufio"
	"errors"
	"io"
)

// DefaultMaxLineLength bounds the content of a single line. The '\n'
// terminator does not count towards it.
const DefaultMaxLineLength = 64 * 1024

// ErrLineTooLong is returned when a line exceeds the configured maximum
// before its terminator arrives.
var ErrLineTooLong = errors.New("relay: line exceeds maximum length")

const readBufferSize = 4096

// lineReader reads newline-terminated lines of bounded length.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{
		r:   bufio.NewReaderSize(r, readBufferSize),
		max: max,
	}
}

// ReadLine returns the next line including its '\n'. At end of stream a
// trailing unterminated fragment is returned together with io.EOF.
// A max of zero or less disables the length bound.
func (lr *lineReader) ReadLine() (string, error) {
	var line []byte
	for {
		frag, err := lr.r.ReadSlice('\n')
		line = append(line, frag...)

		n := len(line)
		if err == nil {
			n--
		}
		if lr.max > 0 && n > lr.max {
			return "", ErrLineTooLong
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(line), err
	}
}
