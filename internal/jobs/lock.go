package jobs

import (
	"sync"

	"github.com/google/uuid"
)

// KeyedLock is a per-job exclusive execution lock. Acquire is a try-lock:
// a second trigger for the same job is rejected instead of queued, so a
// manual re-run can never race a retry on the same job. Distinct jobs stay
// fully parallel.
type KeyedLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{held: make(map[uuid.UUID]struct{})}
}

// Acquire takes the lock for id, reporting false when it is already held.
func (l *KeyedLock) Acquire(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[id]; busy {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

// Release frees the lock for id. Releasing an unheld lock is a no-op.
func (l *KeyedLock) Release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

// Held reports whether id is currently locked.
func (l *KeyedLock) Held(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[id]
	return busy
}
