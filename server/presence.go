package server

import "sync"

// registry is the live username-to-session mapping. Registration churn
// drives the status and online-user broadcasts, which the server layers
// on top of these plain operations.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

// register stores the mapping, overwriting any stale prior entry for
// the username.
func (r *registry) register(username string, sess *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[username] = sess
}

// unregister removes the mapping, but only if it still points at the
// given session. A stale session that was overwritten by a newer login
// must not tear down its replacement.
func (r *registry) unregister(username string, sess *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[username]; ok && current == sess {
		delete(r.sessions, username)
		return true
	}
	return false
}

func (r *registry) lookup(username string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[username]
	return sess, ok
}

// snapshot returns the set of currently registered usernames.
func (r *registry) snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sessions))
	for username := range r.sessions {
		names = append(names, username)
	}
	return names
}

// all returns every registered session, for best-effort broadcasts.
func (r *registry) all() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
