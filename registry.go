package apimanager

import (
	"context"
	"sort"
	"sync"
)

// Entry is the registry's record of the call currently owning an identity.
type Entry struct {
	id         Identity
	callID     string
	cancel     context.CancelCauseFunc
	vacated    chan struct{}
	delivering bool
}

// Identity returns the API identity the entry owns.
func (e *Entry) Identity() Identity { return e.id }

// CallID returns the id of the owning call.
func (e *Entry) CallID() string { return e.callID }

// Vacated is closed once the entry no longer owns its identity, either because
// it was removed or because a newer call replaced it.
func (e *Entry) Vacated() <-chan struct{} { return e.vacated }

// Registry maps each API identity to the single call allowed in flight for it.
// Every mutation happens under one mutex.
type Registry struct {
	mu       sync.Mutex
	entries  map[Identity]*Entry
	onChange func(size int)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Identity]*Entry),
	}
}

// Register makes a new entry the owner of id. If another entry owned id, its
// call is canceled with ErrSuperseded before the mapping is replaced, unless
// that call has already started delivering its outcome. It reports whether a
// cancel signal was sent. The signal does not wait for the previous call to
// stop.
func (r *Registry) Register(id Identity, callID string, cancel context.CancelCauseFunc) (*Entry, bool) {
	e := &Entry{
		id:      id,
		callID:  callID,
		cancel:  cancel,
		vacated: make(chan struct{}),
	}

	r.mu.Lock()
	canceled := false
	if prev, exists := r.entries[id]; exists {
		if !prev.delivering && prev.cancel != nil {
			prev.cancel(ErrSuperseded)
			canceled = true
		}
		close(prev.vacated)
	}
	r.entries[id] = e
	size := len(r.entries)
	r.mu.Unlock()

	r.changed(size)
	return e, canceled
}

// Unregister removes e only if it still owns its identity. It reports whether
// e was removed; false means a newer call owns the slot and must be left alone.
func (r *Registry) Unregister(e *Entry) bool {
	if e == nil {
		return false
	}

	r.mu.Lock()
	current, exists := r.entries[e.id]
	if !exists || current != e {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, e.id)
	close(e.vacated)
	size := len(r.entries)
	r.mu.Unlock()

	r.changed(size)
	return true
}

// claim marks e as delivering if it still owns its identity and ctx is live.
// Once claimed, a newer registration no longer cancels e.
func (r *Registry) claim(ctx context.Context, e *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[e.id] != e || ctx.Err() != nil {
		return false
	}
	e.delivering = true
	return true
}

// Contains reports whether any call currently owns id.
func (r *Registry) Contains(id Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.entries[id]
	return exists
}

// Owner returns the entry owning id, if any.
func (r *Registry) Owner(id Identity) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.entries[id]
	return e, exists
}

// Len returns the number of identities with a call in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Identities returns the identities with a call in flight, sorted.
func (r *Registry) Identities() []Identity {
	r.mu.Lock()
	ids := make([]Identity, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WaitVacant blocks until no call owns id or ctx is done. Each wake-up comes
// from an entry leaving the map; there is no polling.
func (r *Registry) WaitVacant(ctx context.Context, id Identity) error {
	for {
		e, exists := r.Owner(id)
		if !exists {
			return nil
		}

		select {
		case <-e.vacated:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Registry) changed(size int) {
	if r.onChange != nil {
		r.onChange(size)
	}
}
