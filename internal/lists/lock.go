package lists

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/baiirun/treelist/internal/model"
)

// DefaultLockTimeout bounds how long a mutation waits for its scope.
const DefaultLockTimeout = 5 * time.Second

const lockRetryInterval = 10 * time.Millisecond

// ScopeLocker serializes mutations per scope. Inside one process a keyed
// mutex is enough; when dir is set, a lock file per scope also serializes
// separate processes sharing the same database.
type ScopeLocker struct {
	dir     string
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

// NewScopeLocker creates a locker. An empty dir disables cross-process locking.
func NewScopeLocker(dir string, timeout time.Duration) *ScopeLocker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &ScopeLocker{
		dir:     dir,
		timeout: timeout,
		slots:   make(map[string]*slot),
	}
}

// Lock blocks until scope is free, ctx is done, or the timeout passes.
// The returned func releases the lock and must be called exactly once.
func (l *ScopeLocker) Lock(ctx context.Context, scope model.Scope) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := scope.Key()
	s := l.acquireSlot(key)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key)
		return nil, l.waitErr(ctx, scope)
	}

	release := func() {
		<-s.sem
		l.releaseSlot(key)
	}

	if l.dir == "" {
		return release, nil
	}

	fl, err := l.lockFile(ctx, key)
	if err != nil {
		release()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, l.waitErr(ctx, scope)
		}
		return nil, err
	}

	return func() {
		_ = fl.Unlock()
		release()
	}, nil
}

func (l *ScopeLocker) lockFile(ctx context.Context, key string) (*flock.Flock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	sum := sha256.Sum256([]byte(key))
	fl := flock.New(filepath.Join(l.dir, hex.EncodeToString(sum[:16])+".lock"))

	ok, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return fl, nil
}

func (l *ScopeLocker) waitErr(ctx context.Context, scope model.Scope) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrLockTimeout, scope)
	}
	return ctx.Err()
}

func (l *ScopeLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *ScopeLocker) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
