// Package ledger owns the append-only CSV table of classified run events.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the classification outcome of an event.
type Kind string

const (
	KindInsight  Kind = "insight"
	KindResponse Kind = "response"
	KindError    Kind = "error"
)

// Status is the lifecycle status asserted when an event is emitted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSent       Status = "sent"
	StatusGenerating Status = "generating"
	StatusError      Status = "error"
)

const (
	// SystemSubject attributes an event to the tracker itself.
	SystemSubject = "system"
	// ProfileSubject attributes an event to the first publishing profile.
	ProfileSubject = "profile1"
)

// TimeLayout is the second-precision layout of the timestamp column.
const TimeLayout = "2006-01-02 15:04:05"

// Columns is the ledger header, in on-disk order.
var Columns = []string{ //nolint:gochecknoglobals // fixed file header
	"timestamp",
	"subject_id",
	"kind",
	"content",
	"correlation_id",
	"status",
	"error_detail",
	"elapsed_seconds",
	"participant_kind",
}

// Event is one ledger row. Empty ErrorDetail and ParticipantKind and a nil
// ElapsedSeconds are stored as empty cells.
type Event struct {
	Timestamp       time.Time
	SubjectID       string
	Kind            Kind
	Content         string
	CorrelationID   string
	Status          Status
	ErrorDetail     string
	ElapsedSeconds  *float64
	ParticipantKind string
}

// Seconds returns a pointer to v for Event.ElapsedSeconds.
func Seconds(v float64) *float64 {
	return &v
}

// SystemError builds an error-kind event attributed to the system subject.
func SystemError(correlationID, content, detail string, elapsed *float64) Event {
	return Event{
		SubjectID:      SystemSubject,
		Kind:           KindError,
		Content:        content,
		CorrelationID:  correlationID,
		Status:         StatusError,
		ErrorDetail:    detail,
		ElapsedSeconds: elapsed,
	}
}

// Validate reports the first violated row invariant, ignoring the timestamp,
// which is assigned by the ledger at write time.
func (e *Event) Validate() error {
	switch {
	case e.SubjectID == "":
		return errors.New("missing subject_id")
	case e.Content == "":
		return errors.New("missing content")
	case e.CorrelationID == "":
		return errors.New("missing correlation_id")
	}

	switch e.Kind {
	case KindInsight, KindResponse, KindError:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}

	switch e.Status {
	case StatusPending, StatusSent, StatusGenerating, StatusError:
	default:
		return fmt.Errorf("unknown status %q", e.Status)
	}

	if (e.Status == StatusError) != (e.ErrorDetail != "") {
		return errors.New("error_detail must be set exactly when status is error")
	}
	if e.ParticipantKind != "" && e.Kind != KindResponse {
		return errors.New("participant_kind is only allowed on response events")
	}
	return nil
}
