package friends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatd/storage"
)

func newTestGraph(t *testing.T) (*Graph, *storage.Store) {
	store := storage.New(t.TempDir())
	require.NoError(t, store.EnsureRoot())
	return New(store), store
}

func TestAddFriendshipIsSymmetric(t *testing.T) {
	g, _ := newTestGraph(t)

	assert.True(t, g.AddFriendship("alice", "bob"))
	assert.Contains(t, g.Friends("alice"), "bob")
	assert.Contains(t, g.Friends("bob"), "alice")
}

func TestAddFriendshipIdempotent(t *testing.T) {
	g, _ := newTestGraph(t)

	require.True(t, g.AddFriendship("alice", "bob"))
	assert.False(t, g.AddFriendship("alice", "bob"), "repeat add reports no new edge")
	assert.False(t, g.AddFriendship("bob", "alice"), "direction does not matter")
	assert.Len(t, g.Friends("alice"), 1)
	assert.Len(t, g.Friends("bob"), 1)
}

func TestAddFriendshipRepairsOneSidedEdge(t *testing.T) {
	g, store := newTestGraph(t)

	// A legacy record where only alice's side of the edge was written.
	require.NoError(t, store.SaveUserRecord("alice", &storage.UserRecord{Friends: []string{"bob"}}))
	g.Load("alice")
	require.Contains(t, g.Friends("alice"), "bob")
	require.Empty(t, g.Friends("bob"))

	assert.True(t, g.AddFriendship("alice", "bob"), "repairing an asymmetric edge counts as an add")
	assert.Contains(t, g.Friends("bob"), "alice")
}

func TestFriendsForUnknownUser(t *testing.T) {
	g, _ := newTestGraph(t)
	got := g.Friends("nobody")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFriendsSorted(t *testing.T) {
	g, _ := newTestGraph(t)
	g.AddFriendship("alice", "zoe")
	g.AddFriendship("alice", "bob")
	g.AddFriendship("alice", "mel")
	assert.Equal(t, []string{"bob", "mel", "zoe"}, g.Friends("alice"))
}

func TestLoadAbsentUser(t *testing.T) {
	g, _ := newTestGraph(t)
	g.Load("ghost")
	assert.Empty(t, g.Friends("ghost"))
}

func TestLoadHydratesFromStore(t *testing.T) {
	g, store := newTestGraph(t)
	require.NoError(t, store.SaveUserRecord("alice", &storage.UserRecord{Friends: []string{"bob", "carol"}}))

	g.Load("alice")
	assert.Equal(t, []string{"bob", "carol"}, g.Friends("alice"))
}
