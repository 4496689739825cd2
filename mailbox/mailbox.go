// Package mailbox queues messages for users who were offline when the
// router tried to deliver to them. The queue is drained as a whole, in
// FIFO order, when the recipient next authenticates.
package mailbox

import (
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"chatd/friends"
	"chatd/message"
	"chatd/storage"
)

type Mailbox struct {
	mu     sync.Mutex
	queues map[string][]*message.Message
	graph  *friends.Graph
	store  *storage.Store
}

func New(store *storage.Store, graph *friends.Graph) *Mailbox {
	return &Mailbox{
		queues: make(map[string][]*message.Message),
		graph:  graph,
		store:  store,
	}
}

// Enqueue appends the message to the recipient's queue and persists the
// owning user's record (friend snapshot plus full queue) in one write.
// The lock is held across mutate-and-persist so concurrent writers never
// interleave a record rewrite.
func (mb *Mailbox) Enqueue(username string, m *message.Message) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.queues[username] = append(mb.queues[username], m)
	mb.persist(username)
}

// DrainAll atomically removes and returns every queued message for the
// user, oldest first. An absent user yields an empty sequence. The
// emptied record is persisted so a restart does not resurrect delivered
// messages.
func (mb *Mailbox) DrainAll(username string) []*message.Message {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	queued := mb.queues[username]
	if len(queued) == 0 {
		return nil
	}
	delete(mb.queues, username)
	mb.persist(username)
	return queued
}

// Hydrate seeds the user's in-memory queue from a previously persisted
// record. Used at login for users without live state; a queue that
// already has entries wins over the disk copy.
func (mb *Mailbox) Hydrate(username string) {
	rec, err := mb.store.LoadUserRecord(username)
	if err != nil {
		jww.ERROR.Printf("failed to load mailbox for %s: %v", username, err)
		return
	}
	if len(rec.Offline) == 0 {
		return
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.queues[username]) == 0 {
		mb.queues[username] = rec.Offline
	}
}

// SaveRecord persists the user's current record. Exposed for callers
// that changed the friend half of the record (friend requests).
func (mb *Mailbox) SaveRecord(username string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.persist(username)
}

// persist is called with mb.mu held. Persistence failures are logged
// and do not roll back the in-memory change.
func (mb *Mailbox) persist(username string) {
	rec := &storage.UserRecord{
		Friends: mb.graph.Friends(username),
		Offline: mb.queues[username],
	}
	if err := mb.store.SaveUserRecord(username, rec); err != nil {
		jww.ERROR.Printf("failed to persist record for %s: %v", username, err)
	}
}
