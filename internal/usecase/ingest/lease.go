package ingest

import "sync"

// leaseRegistry serializes processing runs per document id. Leases are held
// in process memory only; a crashed run releases implicitly on restart.
type leaseRegistry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLeaseRegistry() *leaseRegistry {
	return &leaseRegistry{held: make(map[string]struct{})}
}

// acquire takes the lease for id, reporting false when already held.
func (l *leaseRegistry) acquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *leaseRegistry) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}
