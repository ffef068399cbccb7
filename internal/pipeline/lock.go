package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"labelflow/internal/services"
)

// Locker serializes pipeline runs on one task. The returned release function
// is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, taskID int64) (func(), error)
}

// lockStripes bounds the number of lock files. Tasks sharing a stripe
// serialize across processes; in-process slots stay per task.
const lockStripes = 256

// LockFileName is the lock file that guards taskID inside the lock directory.
// Files are never removed: a process may still hold an open handle on a
// file another process would unlink, so ids share a fixed set of stripes.
func LockFileName(taskID int64) string {
	stripe := taskID % lockStripes
	if stripe < 0 {
		stripe = -stripe
	}
	return fmt.Sprintf("stripe-%03d.lock", stripe)
}

// TaskLocker is an in-process keyed lock with an optional striped lock file
// for serialization across processes sharing the database.
type TaskLocker struct {
	dir     string
	timeout time.Duration
	retry   time.Duration

	mu    sync.Mutex
	slots map[int64]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewTaskLocker builds a locker. An empty dir disables lock files; a
// non-positive timeout waits until ctx is done.
func NewTaskLocker(dir string, timeout, retry time.Duration) *TaskLocker {
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &TaskLocker{
		dir:     dir,
		timeout: timeout,
		retry:   retry,
		slots:   make(map[int64]*lockSlot),
	}
}

func (l *TaskLocker) Lock(ctx context.Context, taskID int64) (func(), error) {
	lockCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	slot := l.acquire(taskID)
	select {
	case slot.ch <- struct{}{}:
	case <-lockCtx.Done():
		l.release(taskID, false)
		return nil, lockBusy(taskID, lockCtx.Err())
	}

	if l.dir == "" {
		var once sync.Once
		return func() { once.Do(func() { l.release(taskID, true) }) }, nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		l.release(taskID, true)
		return nil, services.Wrap(services.ErrTransient, component, "lock task", "create lock directory", err)
	}
	fileLock := flock.New(filepath.Join(l.dir, LockFileName(taskID)))
	locked, err := fileLock.TryLockContext(lockCtx, l.retry)
	if err != nil || !locked {
		l.release(taskID, true)
		if err == nil {
			err = errors.New("lock file held by another process")
		}
		return nil, lockBusy(taskID, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fileLock.Unlock()
			l.release(taskID, true)
		})
	}, nil
}

func (l *TaskLocker) acquire(taskID int64) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[taskID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[taskID] = slot
	}
	slot.refs++
	return slot
}

func (l *TaskLocker) release(taskID int64, held bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[taskID]
	if !ok {
		return
	}
	if held {
		<-slot.ch
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, taskID)
	}
}

func lockBusy(taskID int64, err error) error {
	return services.Wrap(services.ErrTransient, component, "lock task",
		fmt.Sprintf("task %d is being processed by another request", taskID), err)
}
