package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"
)

// fileMode is the permission of a newly created ledger file.
const fileMode os.FileMode = 0o644

// Ledger is a single-writer handle on one ledger file. Every Append rewrites
// the whole file through a temp file and rename, so readers always see a
// complete table.
type Ledger struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New returns a Ledger for the file at path. The file is not touched until
// Initialize or Append is called.
func New(path string) *Ledger {
	return &Ledger{path: path, now: time.Now}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// SetClock overrides the clock used to stamp appended rows (for testing).
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Initialize creates a header-only ledger if none exists. An existing file is
// left untouched.
func (l *Ledger) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return &PersistenceError{Op: "initialize", Path: l.path, Err: err}
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &PersistenceError{Op: "initialize", Path: l.path, Err: err}
		}
	}
	if err := l.writeRecords(nil); err != nil {
		return &PersistenceError{Op: "initialize", Path: l.path, Err: err}
	}
	return nil
}

// Append stamps e with the current time and adds it as the last row.
// Existing rows are copied through verbatim.
func (l *Ledger) Append(e Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readRecords()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &PersistenceError{Op: "read", Path: l.path, Err: err}
	}

	e.Timestamp = l.now()
	records = append(records, encode(&e))

	if err := l.writeRecords(records); err != nil {
		return &PersistenceError{Op: "write", Path: l.path, Err: err}
	}
	return nil
}

// ReadAll returns every row of the ledger in file order.
func (l *Ledger) ReadAll() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readRecords()
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: l.path, Err: err}
	}
	return decodeAll(records)
}

// Read parses the ledger file at path without taking a writer handle.
func Read(path string) ([]Event, error) {
	return New(path).ReadAll()
}

// readRecords returns the data rows (header excluded) of the ledger file.
func (l *Ledger) readRecords() ([][]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Columns) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return records, nil
}

// writeRecords replaces the ledger with header plus records. A new file gets
// fileMode; an existing file keeps its permissions.
func (l *Ledger) writeRecords(records [][]string) error {
	mode := fileMode
	if st, err := os.Stat(l.path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(Columns); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.WriteAll(records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), l.path)
}

func encode(e *Event) []string {
	var elapsed string
	if e.ElapsedSeconds != nil {
		elapsed = strconv.FormatFloat(*e.ElapsedSeconds, 'f', -1, 64)
	}
	return []string{
		e.Timestamp.Format(TimeLayout),
		e.SubjectID,
		string(e.Kind),
		e.Content,
		e.CorrelationID,
		string(e.Status),
		e.ErrorDetail,
		elapsed,
		e.ParticipantKind,
	}
}

func decodeAll(records [][]string) ([]Event, error) {
	events := make([]Event, 0, len(records))
	for i, rec := range records {
		e, err := decode(rec)
		if err != nil {
			// +2: one-based, after the header
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func decode(rec []string) (Event, error) {
	ts, err := time.ParseInLocation(TimeLayout, rec[0], time.Local)
	if err != nil {
		return Event{}, fmt.Errorf("parse timestamp: %w", err)
	}

	e := Event{
		Timestamp:       ts,
		SubjectID:       rec[1],
		Kind:            Kind(rec[2]),
		Content:         rec[3],
		CorrelationID:   rec[4],
		Status:          Status(rec[5]),
		ErrorDetail:     rec[6],
		ParticipantKind: rec[8],
	}
	if rec[7] != "" {
		v, err := strconv.ParseFloat(rec[7], 64)
		if err != nil {
			return Event{}, fmt.Errorf("parse elapsed_seconds: %w", err)
		}
		e.ElapsedSeconds = &v
	}
	return e, nil
}
