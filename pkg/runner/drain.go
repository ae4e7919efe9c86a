package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// readBufferSize is the initial read buffer per stream. Lines longer than
// this are still read whole.
const readBufferSize = 64 * 1024

type stream int

const (
	streamStdout stream = iota
	streamStderr
)

func (s stream) String() string {
	if s == streamStderr {
		return "stderr"
	}
	return "stdout"
}

// outputLine is one line read from the child, stamped with the run-relative
// time it was read at.
type outputLine struct {
	stream  stream
	text    string
	elapsed float64
}

// drainLines reads r line by line until end-of-stream and forwards every line
// to out. Each stream gets its own drainLines so a quiet stream never holds
// up a busy one. A final line without a terminator is still forwarded. It
// stops quietly once ctx is done.
func drainLines(ctx context.Context, r io.Reader, s stream, elapsed func() float64, out chan<- outputLine) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	for {
		text, err := br.ReadString('\n')
		if text != "" {
			ln := outputLine{
				stream:  s,
				text:    strings.TrimRight(text, "\r\n"),
				elapsed: elapsed(),
			}
			select {
			case out <- ln:
			case <-ctx.Done():
				return nil
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return &StreamReadError{Stream: s.String(), Err: err}
		}
	}
}
