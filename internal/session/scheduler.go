package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/vcdelay/internal/repository"
	"github.com/foxseedlab/vcdelay/internal/telemetry"
)

const logWriteTimeout = 5 * time.Second

var (
	// ErrAbandoned is returned by Work that lost a membership race.
	// The scheduler leaves the log row untouched for it.
	ErrAbandoned = errors.New("delayed notification abandoned")
	// ErrSuppressed is returned by Work when guild settings no longer allow the notice.
	// The log row is recorded as cancelled.
	ErrSuppressed = errors.New("delayed notification suppressed by guild settings")
)

// LogKey identifies the notification log row a task owns.
// The remaining fields only describe the row in logs.
type LogKey struct {
	EntryID   string
	GuildID   string
	UserID    string
	ChannelID string
}

type Work func(ctx context.Context) error

type pendingTask struct {
	channelID string
	key       LogKey
	ctx       context.Context
	cancel    context.CancelFunc
}

// Scheduler keeps at most one pending delayed task per voice channel.
// Firing and cancelling are decided under the same lock, so a cancelled task never runs its Work.
type Scheduler struct {
	logs repository.NotificationLogRepository

	mu     sync.Mutex
	tasks  map[string]*pendingTask
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(logs repository.NotificationLogRepository) *Scheduler {
	return &Scheduler{
		logs:  logs,
		tasks: make(map[string]*pendingTask),
	}
}

// Schedule runs work after delay unless cancelled first. A task already pending
// for channelID is cancelled and replaced. After CancelAll it refuses new work,
// records the row as cancelled and returns false.
func (s *Scheduler) Schedule(channelID string, key LogKey, work Work, delay time.Duration) bool {
	ctx, cancel := context.WithCancel(context.Background())
	task := &pendingTask{channelID: channelID, key: key, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		slog.Warn("scheduler closed; delayed task refused", "channel_id", channelID, "user_id", key.UserID)
		s.markCancelled(key)
		return false
	}
	replaced := s.tasks[channelID]
	if replaced != nil {
		replaced.cancel()
	}
	s.tasks[channelID] = task
	pending := len(s.tasks)
	s.wg.Add(1)
	s.mu.Unlock()

	telemetry.SetPendingTasks(pending)
	if replaced != nil {
		slog.Warn("replaced pending delayed task", "channel_id", channelID, "replaced_user_id", replaced.key.UserID)
		s.markCancelled(replaced.key)
	}
	slog.Info("delayed task scheduled", "channel_id", channelID, "guild_id", key.GuildID, "user_id", key.UserID, "delay", delay.String())

	go s.run(task, work, delay)
	return true
}

func (s *Scheduler) run(task *pendingTask, work Work, delay time.Duration) {
	defer s.wg.Done()
	defer s.release(task)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-task.ctx.Done():
		return
	case <-timer.C:
	}

	if !s.claim(task) {
		return
	}

	err := invoke(task.ctx, work)
	switch {
	case err == nil:
	case errors.Is(err, ErrAbandoned):
		telemetry.RecordNotificationDropped("abandoned")
		slog.Info("delayed task abandoned", "channel_id", task.channelID, "user_id", task.key.UserID)
	case errors.Is(err, ErrSuppressed):
		slog.Info("delayed task suppressed", "channel_id", task.channelID, "guild_id", task.key.GuildID)
		s.markCancelled(task.key)
	default:
		telemetry.RecordNotificationDropped("failed")
		slog.Error("delayed task failed", "error", err, "channel_id", task.channelID, "guild_id", task.key.GuildID, "user_id", task.key.UserID)
		s.updateStatus(task.key, repository.NotificationStatusFailed)
	}
}

// claim removes task from the pending set if it is still the registered task for its channel.
// Once claimed, Cancel can no longer reach it.
func (s *Scheduler) claim(task *pendingTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[task.channelID] != task || task.ctx.Err() != nil {
		return false
	}
	delete(s.tasks, task.channelID)
	telemetry.SetPendingTasks(len(s.tasks))
	return true
}

func (s *Scheduler) release(task *pendingTask) {
	s.mu.Lock()
	if s.tasks[task.channelID] == task {
		delete(s.tasks, task.channelID)
	}
	pending := len(s.tasks)
	s.mu.Unlock()
	task.cancel()
	telemetry.SetPendingTasks(pending)
}

func invoke(ctx context.Context, work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delayed task panicked: %v", r)
		}
	}()
	return work(ctx)
}

// Cancel stops the pending task of channelID and records it as cancelled.
// It reports false when nothing was pending, including when the task already fired.
func (s *Scheduler) Cancel(channelID string) bool {
	s.mu.Lock()
	task, ok := s.tasks[channelID]
	if ok {
		delete(s.tasks, channelID)
		task.cancel()
	}
	pending := len(s.tasks)
	s.mu.Unlock()

	if !ok {
		return false
	}
	telemetry.SetPendingTasks(pending)
	slog.Info("delayed task cancelled", "channel_id", channelID, "user_id", task.key.UserID)
	s.markCancelled(task.key)
	return true
}

// CancelAll cancels every pending task, closes the scheduler to new work
// and returns how many were cancelled.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	s.closed = true
	tasks := make([]*pendingTask, 0, len(s.tasks))
	for channelID, task := range s.tasks {
		task.cancel()
		tasks = append(tasks, task)
		delete(s.tasks, channelID)
	}
	s.mu.Unlock()

	telemetry.SetPendingTasks(0)
	for _, task := range tasks {
		s.markCancelled(task.key)
	}
	return len(tasks)
}

func (s *Scheduler) Pending(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[channelID]
	return ok
}

// Wait blocks until every started task goroutine has returned.
// Schedule must not race with it; CancelAll closes the scheduler first for that.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) markCancelled(key LogKey) {
	telemetry.RecordNotificationDropped("cancelled")
	s.updateStatus(key, repository.NotificationStatusCancelled)
}

func (s *Scheduler) updateStatus(key LogKey, status repository.NotificationStatus) {
	if key.EntryID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()
	err := s.logs.UpdateStatus(ctx, repository.UpdateStatusInput{
		EntryID: key.EntryID,
		Status:  status,
	})
	if err != nil {
		telemetry.RecordLogWriteFailure()
		slog.Warn("failed to update notification log", "error", err, "status", string(status), "entry_id", key.EntryID, "guild_id", key.GuildID, "user_id", key.UserID, "channel_id", key.ChannelID)
	}
}
