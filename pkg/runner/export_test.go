package runner

import "io"

// SetReaderWrapper interposes wrap on the child's output streams. stream is
// "stdout" or "stderr".
func SetReaderWrapper(r *Runner, wrap func(stream string, rd io.Reader) io.Reader) {
	r.wrapReader = func(s stream, rd io.Reader) io.Reader {
		return wrap(s.String(), rd)
	}
}
