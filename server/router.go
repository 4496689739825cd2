package server

import (
	"sync"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"

	"chatd/friends"
	"chatd/history"
	"chatd/mailbox"
	"chatd/message"
	"chatd/storage"
)

// offlineMarker is the one permitted in-flight content mutation: it is
// prefixed to a message flagged for offline handling before final
// delivery.
const offlineMarker = "[offline] "

// router is the central dispatch for every successfully decoded inbound
// message. It owns the forwarded-id dedup set, which guarantees
// at-most-once routing per message id even when the same id arrives
// from multiple workers at once.
type router struct {
	presence *registry
	graph    *friends.Graph
	mailbox  *mailbox.Mailbox
	history  *history.History
	store    *storage.Store

	mu        sync.Mutex
	forwarded *set.Set
}

func newRouter(presence *registry, graph *friends.Graph, mb *mailbox.Mailbox, hist *history.History, store *storage.Store) *router {
	return &router{
		presence:  presence,
		graph:     graph,
		mailbox:   mb,
		history:   hist,
		store:     store,
		forwarded: set.New(),
	}
}

func (rt *router) route(m *message.Message) {
	rt.history.Append(m)
	if m.From != "" {
		if err := rt.store.SaveChatHistorySnapshot(m.From, rt.history.ByUser(m.From)); err != nil {
			jww.ERROR.Printf("failed to snapshot history for %s: %v", m.From, err)
		}
	}

	switch m.Type {
	case message.FriendRequest:
		rt.handleFriendRequest(m)
	case message.OfflineMessage:
		m.Content = offlineMarker + m.Content
		rt.deliver(m)
	default:
		rt.deliver(m)
	}
}

// handleFriendRequest adds the symmetric edge; on a new edge both users'
// records are persisted and both are notified with a FRIEND_LIST_UPDATE.
func (rt *router) handleFriendRequest(m *message.Message) {
	if m.From == "" || m.To == "" {
		jww.WARN.Printf("friend request with missing endpoint dropped (id %s)", m.ID)
		return
	}
	if !rt.graph.AddFriendship(m.From, m.To) {
		return
	}
	rt.mailbox.SaveRecord(m.From)
	rt.mailbox.SaveRecord(m.To)
	rt.deliver(message.New(m.From, m.To, "added", message.FriendListUpdate))
	rt.deliver(message.New(m.To, m.From, "added", message.FriendListUpdate))
}

// deliver hands the message to the recipient's live session, or queues
// it in the offline mailbox when no session is present. The check-and-
// insert on the forwarded set is atomic, so a repeated id is a no-op.
func (rt *router) deliver(m *message.Message) {
	if m.To == "" {
		jww.WARN.Printf("%s message %s has no recipient, dropped", m.Type, m.ID)
		return
	}

	rt.mu.Lock()
	if rt.forwarded.Has(m.ID) {
		rt.mu.Unlock()
		return
	}
	rt.forwarded.Insert(m.ID)
	rt.mu.Unlock()

	if sess, ok := rt.presence.lookup(m.To); ok {
		if err := sess.send(m); err != nil {
			jww.WARN.Printf("live delivery to %s failed: %v", m.To, err)
		}
	} else {
		rt.mailbox.Enqueue(m.To, m)
	}

	rt.store.RemoveMessageScratch(m.ID)
}
