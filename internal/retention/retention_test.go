package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/vcdelay/internal/repository"
)

type mockLogRepository struct {
	mu       sync.Mutex
	calls    []int
	deleted  int64
	pruneErr error
}

func (m *mockLogRepository) RecordScheduled(_ context.Context, _ repository.RecordScheduledInput) (string, error) {
	return "", nil
}
func (m *mockLogRepository) UpdateStatus(_ context.Context, _ repository.UpdateStatusInput) error {
	return nil
}
func (m *mockLogRepository) PruneOlderThan(_ context.Context, days int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, days)
	return m.deleted, m.pruneErr
}
func (m *mockLogRepository) ListRecent(_ context.Context, _ string, _ int) ([]repository.NotificationLogEntry, error) {
	return nil, nil
}

func (m *mockLogRepository) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestRunOnce(t *testing.T) {
	repo := &mockLogRepository{deleted: 7}
	job := NewJob(repo, 30, time.Hour)

	deleted, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected 7 deleted rows, got %d", deleted)
	}
	if len(repo.calls) != 1 || repo.calls[0] != 30 {
		t.Fatalf("unexpected prune calls: %v", repo.calls)
	}
}

func TestRunOnce_WrapsError(t *testing.T) {
	cause := errors.New("disk I/O error")
	job := NewJob(&mockLogRepository{pruneErr: cause}, 30, time.Hour)

	if _, err := job.RunOnce(context.Background()); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestStart_RunsImmediatelyAndOnEachTick(t *testing.T) {
	repo := &mockLogRepository{pruneErr: errors.New("transient")}
	job := NewJob(repo, 30, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		job.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for repo.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.callCount() < 3 {
		t.Fatalf("expected at least 3 cleanups despite errors, got %d", repo.callCount())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected job to stop after cancellation")
	}
}
