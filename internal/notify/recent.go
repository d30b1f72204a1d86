// ABOUTME: Size-limited TTL set of recently shown toasts
// ABOUTME: Lets the notifier drop a toast identical to one shown moments ago

package notify

import (
	"container/list"
	"sync"
	"time"
)

type recentEntry struct {
	shownAt time.Time
	element *list.Element
}

// recent remembers toast keys for ttl. When full, the oldest key is evicted.
// Expired keys are swept lazily on insert.
type recent struct {
	mu      sync.Mutex
	entries map[string]*recentEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newRecent(ttl time.Duration, maxSize int) *recent {
	return &recent{
		entries: make(map[string]*recentEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// seenOrMark reports whether key was shown within ttl. If not, it is recorded
// as shown now.
func (r *recent) seenOrMark(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[key]; ok {
		if now.Sub(e.shownAt) < r.ttl {
			return true
		}
		e.shownAt = now
		r.order.MoveToBack(e.element)
		return false
	}

	r.sweepLocked(now)
	if len(r.entries) >= r.maxSize {
		r.evictOldestLocked()
	}
	r.entries[key] = &recentEntry{shownAt: now, element: r.order.PushBack(key)}
	return false
}

// sweepLocked drops expired keys from the front of the order list.
func (r *recent) sweepLocked(now time.Time) {
	for front := r.order.Front(); front != nil; front = r.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(r.entries[key].shownAt) < r.ttl {
			return
		}
		r.order.Remove(front)
		delete(r.entries, key)
	}
}

func (r *recent) evictOldestLocked() {
	front := r.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	r.order.Remove(front)
	delete(r.entries, key)
}

func (r *recent) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
