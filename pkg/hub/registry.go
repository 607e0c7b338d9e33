package hub

import (
	"sort"
	"sync"
)

// Registry is the authoritative mapping from user id to live connection.
// At most one connection per user: a new bind for an existing user id
// replaces the prior entry (last connection wins), and the superseded
// transport is closed independently by its own lifecycle.
//
// Critical sections are short and never span a transport write; fan-out
// callers take a snapshot of the matching connections and write outside
// the lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Conn),
	}
}

// Bind inserts or replaces the entry for userID.
func (r *Registry) Bind(userID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = c
}

// Unbind removes the entry for userID only if it still points at this exact
// connection. This guards against a stale close event from a superseded
// session evicting a newer connection for the same user. Returns whether an
// entry was removed.
func (r *Registry) Unbind(userID string, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[userID]
	if !ok || current != c {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Lookup returns the connection bound to userID, if any.
func (r *Registry) Lookup(userID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[userID]
	return c, ok
}

// ForEachInTenant calls fn for every entry whose tenant matches tenantID.
// The matching set is snapshotted under the read lock and fn runs outside
// it, so fn may perform transport writes.
func (r *Registry) ForEachInTenant(tenantID string, fn func(userID string, c *Conn)) {
	type entry struct {
		userID string
		conn   *Conn
	}

	r.mu.RLock()
	matched := make([]entry, 0, len(r.entries))
	for userID, c := range r.entries {
		if _, connTenant, ok := c.Identity(); ok && connTenant == tenantID {
			matched = append(matched, entry{userID, c})
		}
	}
	r.mu.RUnlock()

	for _, e := range matched {
		fn(e.userID, e.conn)
	}
}

// ForEachAll calls fn for every entry. Same snapshot discipline as
// ForEachInTenant.
func (r *Registry) ForEachAll(fn func(userID string, c *Conn)) {
	type entry struct {
		userID string
		conn   *Conn
	}

	r.mu.RLock()
	all := make([]entry, 0, len(r.entries))
	for userID, c := range r.entries {
		all = append(all, entry{userID, c})
	}
	r.mu.RUnlock()

	for _, e := range all {
		fn(e.userID, e.conn)
	}
}

// Snapshot is a point-in-time view of the registry for observability.
type Snapshot struct {
	Total    int            `json:"total"`
	ByTenant map[string]int `json:"byTenant"`
	UserIDs  []string       `json:"users"`
}

// Snapshot returns the current registry contents in a single pass.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	snap := Snapshot{
		Total:    len(r.entries),
		ByTenant: make(map[string]int),
		UserIDs:  make([]string, 0, len(r.entries)),
	}
	for userID, c := range r.entries {
		snap.UserIDs = append(snap.UserIDs, userID)
		if _, tenantID, ok := c.Identity(); ok {
			snap.ByTenant[tenantID]++
		}
	}
	r.mu.RUnlock()

	sort.Strings(snap.UserIDs)
	return snap
}

// Len returns the number of bound users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every entry and returns the connections that were bound.
func (r *Registry) Clear() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Conn, 0, len(r.entries))
	for _, c := range r.entries {
		conns = append(conns, c)
	}
	r.entries = make(map[string]*Conn)
	return conns
}
