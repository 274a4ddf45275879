package repository

import (
	"context"
	"sync"
)

// MemorySlotRepo is a process-local slot store. Slots do not survive a restart.
type MemorySlotRepo struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemorySlotRepo() *MemorySlotRepo {
	return &MemorySlotRepo{slots: make(map[string]string)}
}

func (r *MemorySlotRepo) Read(ctx context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.slots[key]
	return val, ok, nil
}

func (r *MemorySlotRepo) Write(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[key] = value
	return nil
}

func (r *MemorySlotRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, key)
	return nil
}
