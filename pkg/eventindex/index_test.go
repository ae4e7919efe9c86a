package eventindex_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"msgtrack/pkg/eventindex"
	"msgtrack/pkg/ledger"
)

// setupTestIndex opens an index in a temp dir and loads sample events.
func setupTestIndex(t *testing.T) *eventindex.Index {
	t.Helper()

	idx, err := eventindex.Open(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	ts := time.Date(2024, 11, 3, 14, 5, 9, 0, time.Local)
	events := []ledger.Event{
		{Timestamp: ts, SubjectID: ledger.ProfileSubject, Kind: ledger.KindInsight, Content: "publishing insight...",
			CorrelationID: "run-a", Status: ledger.StatusSent, ElapsedSeconds: ledger.Seconds(1.2)},
		{Timestamp: ts, SubjectID: "Alice", Kind: ledger.KindResponse, Content: "generating response from Alice (skeptic)",
			CorrelationID: "run-a", Status: ledger.StatusGenerating, ElapsedSeconds: ledger.Seconds(2.5), ParticipantKind: "skeptic"},
		ledger.SystemError("run-a", "connection refused", "connection refused", nil),
		{Timestamp: ts.Add(time.Minute), SubjectID: ledger.ProfileSubject, Kind: ledger.KindInsight, Content: "publishing insight...",
			CorrelationID: "run-b", Status: ledger.StatusSent, ElapsedSeconds: ledger.Seconds(0.8)},
	}
	events[2].Timestamp = ts

	n, err := idx.Materialize(context.Background(), events)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if n != len(events) {
		t.Fatalf("expected %d rows, got %d", len(events), n)
	}
	return idx
}

func TestQuery(t *testing.T) {
	t.Parallel()

	idx := setupTestIndex(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		opts     eventindex.QueryOpts
		contents []string
	}{
		{
			name: "all rows in ledger order",
			opts: eventindex.QueryOpts{},
			contents: []string{
				"publishing insight...",
				"generating response from Alice (skeptic)",
				"connection refused",
				"publishing insight...",
			},
		},
		{
			name:     "filter by correlation id",
			opts:     eventindex.QueryOpts{CorrelationID: "run-b"},
			contents: []string{"publishing insight..."},
		},
		{
			name:     "filter by kind",
			opts:     eventindex.QueryOpts{Kind: ledger.KindError},
			contents: []string{"connection refused"},
		},
		{
			name:     "limit keeps the tail",
			opts:     eventindex.QueryOpts{CorrelationID: "run-a", Limit: 2},
			contents: []string{"generating response from Alice (skeptic)", "connection refused"},
		},
		{
			name:     "no match",
			opts:     eventindex.QueryOpts{CorrelationID: "run-z"},
			contents: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			events, err := idx.Query(ctx, tt.opts)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if events == nil {
				t.Fatal("expected empty slice, got nil")
			}
			got := make([]string, 0, len(events))
			for _, e := range events {
				got = append(got, e.Content)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.contents) {
				t.Fatalf("got %q, want %q", got, tt.contents)
			}
		})
	}
}

func TestQuery_PreservesNullableFields(t *testing.T) {
	t.Parallel()

	idx := setupTestIndex(t)

	events, err := idx.Query(context.Background(), eventindex.QueryOpts{CorrelationID: "run-a"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	response := events[1]
	if response.ParticipantKind != "skeptic" || response.ElapsedSeconds == nil || *response.ElapsedSeconds != 2.5 {
		t.Fatalf("unexpected response row %+v", response)
	}

	failure := events[2]
	if failure.ElapsedSeconds != nil {
		t.Fatalf("expected null elapsed, got %v", *failure.ElapsedSeconds)
	}
	if failure.ErrorDetail != "connection refused" || failure.Status != ledger.StatusError {
		t.Fatalf("unexpected error row %+v", failure)
	}
}

func TestMaterialize_ReplacesPreviousContents(t *testing.T) {
	t.Parallel()

	idx := setupTestIndex(t)
	ctx := context.Background()

	only := []ledger.Event{ledger.SystemError("run-c", "boom", "boom", ledger.Seconds(0))}
	only[0].Timestamp = time.Now()
	if _, err := idx.Materialize(ctx, only); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	events, err := idx.Query(ctx, eventindex.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].CorrelationID != "run-c" {
		t.Fatalf("expected only the new row, got %+v", events)
	}
}

func TestClose_Twice(t *testing.T) {
	t.Parallel()

	idx, err := eventindex.Open(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
