package mailbox

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatd/friends"
	"chatd/message"
	"chatd/storage"
)

func newTestMailbox(t *testing.T) (*Mailbox, *storage.Store) {
	store := storage.New(t.TempDir())
	require.NoError(t, store.EnsureRoot())
	graph := friends.New(store)
	return New(store, graph), store
}

func TestDrainAllReturnsFIFO(t *testing.T) {
	mb, _ := newTestMailbox(t)

	for i := 0; i < 5; i++ {
		mb.Enqueue("carol", message.New("alice", "carol", fmt.Sprintf("msg-%d", i), message.Chat))
	}

	got := mb.DrainAll("carol")
	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Content)
	}
}

func TestDrainAllIsExhaustive(t *testing.T) {
	mb, _ := newTestMailbox(t)

	mb.Enqueue("carol", message.New("alice", "carol", "hi", message.Chat))
	require.Len(t, mb.DrainAll("carol"), 1)
	assert.Empty(t, mb.DrainAll("carol"), "second drain finds nothing")
}

func TestDrainAllAbsentUser(t *testing.T) {
	mb, _ := newTestMailbox(t)
	assert.Empty(t, mb.DrainAll("nobody"))
}

func TestEnqueuePersistsRecord(t *testing.T) {
	mb, store := newTestMailbox(t)

	mb.Enqueue("carol", message.New("alice", "carol", "hi", message.Chat))

	rec, err := store.LoadUserRecord("carol")
	require.NoError(t, err)
	require.Len(t, rec.Offline, 1)
	assert.Equal(t, "hi", rec.Offline[0].Content)
}

func TestDrainPersistsEmptiedRecord(t *testing.T) {
	mb, store := newTestMailbox(t)

	mb.Enqueue("carol", message.New("alice", "carol", "hi", message.Chat))
	mb.DrainAll("carol")

	rec, err := store.LoadUserRecord("carol")
	require.NoError(t, err)
	assert.Empty(t, rec.Offline, "delivered messages are not resurrected by a restart")
}

func TestHydrateSeedsFromDisk(t *testing.T) {
	mb, store := newTestMailbox(t)

	rec := &storage.UserRecord{
		Offline: []*message.Message{message.New("alice", "carol", "from disk", message.Chat)},
	}
	require.NoError(t, store.SaveUserRecord("carol", rec))

	mb.Hydrate("carol")
	got := mb.DrainAll("carol")
	require.Len(t, got, 1)
	assert.Equal(t, "from disk", got[0].Content)
}

func TestHydrateDoesNotClobberLiveQueue(t *testing.T) {
	mb, store := newTestMailbox(t)

	require.NoError(t, store.SaveUserRecord("carol", &storage.UserRecord{
		Offline: []*message.Message{message.New("alice", "carol", "stale", message.Chat)},
	}))
	mb.Enqueue("carol", message.New("bob", "carol", "live", message.Chat))

	mb.Hydrate("carol")
	got := mb.DrainAll("carol")
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].Content)
}
