package runner

import "fmt"

// SpawnError reports a child process that could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// StreamReadError reports a reader that faulted before end-of-stream.
type StreamReadError struct {
	Stream string // "stdout" or "stderr"
	Err    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Stream, e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}
