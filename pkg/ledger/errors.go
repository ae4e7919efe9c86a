package ledger

import "fmt"

// PersistenceError represents a failure to read or write the ledger file.
// Callers treat it as fatal to the run; no retry happens at this layer.
type PersistenceError struct {
	Op   string // "initialize", "read", "write"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
