// Package locking serializes concurrent mutations of the same product's lots.
package locking

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotAcquired is returned when a lock could not be taken before the context ended
var ErrNotAcquired = errors.New("lock not acquired")

// ProductKey is the lock key guarding the lots of one product
func ProductKey(tenantID, productID string) string {
	return tenantID + ":" + productID
}

// normalizeKeys sorts and deduplicates keys so every caller locks in the same order
func normalizeKeys(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[i-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}

// MemoryLocker is an in-process keyed lock
// Each key maps to a one-slot channel so waiting can be abandoned on ctx.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire locks every key in sorted order. The returned function releases them.
func (l *MemoryLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range keys {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		}
	}
	return release, nil
}
