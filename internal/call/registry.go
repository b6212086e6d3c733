package call

import (
	"sync"
	"time"
)

// Registry is the process-wide lookup table mapping call identifiers to live
// Call sessions. Calls are reachable under both their internal ID and the
// carrier-assigned SID, because webhooks arrive keyed by the latter while API
// clients only ever see the former.
//
// Finished calls stay queryable for a retention window so late status polls
// and straggling webhooks still resolve, then are dropped.
type Registry struct {
	mu         sync.RWMutex
	byInternal map[string]*Call
	byCarrier  map[string]*Call
	waiters    map[string][]chan struct{}
	retain     time.Duration
}

// NewRegistry creates a registry with the given post-end retention window.
func NewRegistry(retain time.Duration) *Registry {
	return &Registry{
		byInternal: make(map[string]*Call),
		byCarrier:  make(map[string]*Call),
		waiters:    make(map[string][]chan struct{}),
		retain:     retain,
	}
}

// Register indexes a call under its internal ID and, when already assigned,
// its carrier SID.
func (r *Registry) Register(c *Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byInternal[c.ID()] = c
	r.notifyLocked(c.ID())
	if sid := c.CarrierSID(); sid != "" {
		r.byCarrier[sid] = c
		r.notifyLocked(sid)
	}
}

// LinkCarrier adds the carrier SID index entry once the SID is known.
func (r *Registry) LinkCarrier(sid string, c *Call) {
	if sid == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCarrier[sid] = c
	r.notifyLocked(sid)
}

// Wait returns a channel that is closed once a call is registered under id.
// An already-registered id returns an immediately closed channel. Waiters for
// ids that never register are only released by their own timeout; the channel
// itself is never closed.
func (r *Registry) Wait(id string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	_, inInternal := r.byInternal[id]
	_, inCarrier := r.byCarrier[id]
	if inInternal || inCarrier {
		close(ch)
		return ch
	}
	r.waiters[id] = append(r.waiters[id], ch)
	return ch
}

// notifyLocked releases everyone blocked in Wait on id. Caller holds mu.
func (r *Registry) notifyLocked(id string) {
	for _, ch := range r.waiters[id] {
		close(ch)
	}
	delete(r.waiters, id)
}

// Lookup resolves an identifier of either kind.
func (r *Registry) Lookup(id string) (*Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byInternal[id]; ok {
		return c, true
	}
	c, ok := r.byCarrier[id]
	return c, ok
}

// MarkEnded schedules the call's removal after the retention window.
func (r *Registry) MarkEnded(c *Call) {
	time.AfterFunc(r.retain, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byInternal, c.ID())
		if sid := c.CarrierSID(); sid != "" {
			delete(r.byCarrier, sid)
		}
	})
}

// Len reports how many calls are currently indexed by internal ID.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byInternal)
}
