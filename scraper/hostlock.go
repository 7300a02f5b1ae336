package scraper

import "sync"

// HostLocks serializes page fetches from concurrent sessions that target the
// same host. Sessions against different hosts never contend. One registry is
// created per run and handed to each session; there is no package-level
// state.
type HostLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewHostLocks builds an empty registry.
func NewHostLocks() *HostLocks {
	return &HostLocks{locks: make(map[string]*sync.Mutex)}
}

func (h *HostLocks) get(host string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	lock, ok := h.locks[host]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[host] = lock
	}
	return lock
}

// Lock acquires the per-host lock, creating it on first use.
func (h *HostLocks) Lock(host string) {
	h.get(host).Lock()
}

// Unlock releases the per-host lock.
func (h *HostLocks) Unlock(host string) {
	h.get(host).Unlock()
}
