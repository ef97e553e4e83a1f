package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wuwenbin0122/assistant-relay/internal/journal"
	"github.com/wuwenbin0122/assistant-relay/internal/models"
)

type memoryRecorder struct {
	records []models.RunRecord
	err     error
}

func (m *memoryRecorder) Record(_ context.Context, record models.RunRecord) error {
	m.records = append(m.records, record)
	return m.err
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	first := &memoryRecorder{}
	second := &memoryRecorder{err: errors.New("disk full")}
	third := &memoryRecorder{}

	record := models.RunRecord{
		ID:        "rec-1",
		ThreadID:  "thread_1",
		Outcome:   models.RunOutcomeCompleted,
		StartedAt: time.Unix(100, 0).UTC(),
	}

	err := journal.Multi{first, nil, second, third}.Record(context.Background(), record)
	if !errors.Is(err, second.err) {
		t.Fatalf("expected joined error to wrap second recorder's error, got %v", err)
	}

	for i, r := range []*memoryRecorder{first, second, third} {
		if diff := cmp.Diff([]models.RunRecord{record}, r.records); diff != "" {
			t.Fatalf("recorder %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestNopRecorder(t *testing.T) {
	if err := (journal.Nop{}).Record(context.Background(), models.RunRecord{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRunRecordDuration(t *testing.T) {
	start := time.Unix(100, 0)
	record := models.RunRecord{StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)}
	if got := record.Duration(); got != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %s", got)
	}

	record.FinishedAt = start.Add(-time.Second)
	if got := record.Duration(); got != 0 {
		t.Fatalf("expected zero duration for inverted timestamps, got %s", got)
	}
}
