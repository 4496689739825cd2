// Package friends keeps the in-memory friendship relation. Friendship
// is an undirected edge between two usernames and is always stored
// symmetrically: both sides are added together or not at all.
package friends

import (
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"chatd/storage"
)

type Graph struct {
	mu    sync.RWMutex
	edges map[string]map[string]struct{}
	store *storage.Store
}

func New(store *storage.Store) *Graph {
	return &Graph{
		edges: make(map[string]map[string]struct{}),
		store: store,
	}
}

// AddFriendship inserts the edge on both sides under one lock, so a
// half-added friendship is never observable. It reports true if either
// side was newly inserted; a one-sided edge left behind by an earlier
// partial write is repaired and counts as a successful add. Repeating
// the call for an existing edge is a no-op returning false.
func (g *Graph) AddFriendship(u1, u2 string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	added := g.insert(u1, u2)
	if g.insert(u2, u1) {
		added = true
	}
	return added
}

func (g *Graph) insert(owner, friend string) bool {
	set, ok := g.edges[owner]
	if !ok {
		set = make(map[string]struct{})
		g.edges[owner] = set
	}
	if _, exists := set[friend]; exists {
		return false
	}
	set[friend] = struct{}{}
	return true
}

// Friends returns the user's friend set, sorted for stable wire output.
// Unknown users get an empty slice, never nil semantics or an error.
func (g *Graph) Friends(username string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.edges[username]
	out := make([]string, 0, len(set))
	for friend := range set {
		out = append(out, friend)
	}
	sort.Strings(out)
	return out
}

// Load hydrates the user's friend set from the persisted record.
// Absence of stored data leaves an empty set without error; read
// failures are logged and treated the same way.
func (g *Graph) Load(username string) {
	rec, err := g.store.LoadUserRecord(username)
	if err != nil {
		jww.ERROR.Printf("failed to load friends for %s: %v", username, err)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	set := make(map[string]struct{}, len(rec.Friends))
	for _, friend := range rec.Friends {
		set[friend] = struct{}{}
	}
	g.edges[username] = set
}
