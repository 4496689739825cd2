package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatd/message"
)

func TestRouterDedupUnderConcurrentRouting(t *testing.T) {
	srv, _ := newTestServer(t)
	m := message.New("alice", "carol", "hi", message.Chat)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.router.route(m)
		}()
	}
	wg.Wait()

	assert.Len(t, srv.mailbox.DrainAll("carol"), 1,
		"concurrent routing of one id must enqueue exactly once")
}

func TestRouterSkipsRepeatedFriendRequest(t *testing.T) {
	srv, store := newTestServer(t)

	srv.router.route(message.New("alice", "bob", "", message.FriendRequest))
	first := srv.mailbox.DrainAll("bob")
	require.Len(t, first, 1)
	assert.Equal(t, message.FriendListUpdate, first[0].Type)

	// The edge exists on both sides now; a repeat request must not
	// notify again.
	srv.router.route(message.New("alice", "bob", "", message.FriendRequest))
	assert.Empty(t, srv.mailbox.DrainAll("bob"))

	rec, err := store.LoadUserRecord("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, rec.Friends)
}

func TestRouterHistorizesRoutedChat(t *testing.T) {
	srv, _ := newTestServer(t)

	srv.router.route(message.New("alice", "bob", "hi", message.Chat))
	log := srv.history.ByPair("alice", "bob")
	require.Len(t, log, 1)
	assert.Equal(t, "hi", log[0].Content)
}

func TestRouterDropsRecipientlessTraffic(t *testing.T) {
	srv, _ := newTestServer(t)

	srv.router.route(message.New("alice", "", "", message.Logout))
	assert.Empty(t, srv.mailbox.DrainAll(""))
	assert.Empty(t, srv.history.ByUser("alice"), "system traffic is not historized")
}
