package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	a := New("alice", "bob", "hi", Chat)
	b := New("alice", "bob", "hi", Chat)

	require.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotZero(t, a.Timestamp)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := New("alice", "bob", "hello there", FriendRequest)

	line, err := Encode(orig)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), line[len(line)-1], "wire format is one message per line")

	got, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.From, got.From)
	assert.Equal(t, orig.To, got.To)
	assert.Equal(t, orig.Content, got.Content)
	assert.Equal(t, orig.Type, got.Type)
	assert.Equal(t, orig.Timestamp, got.Timestamp)
}

func TestTypeMarshalsBySymbolicName(t *testing.T) {
	line, err := Encode(New("", "", "a,b", OnlineUsers))
	require.NoError(t, err)
	assert.Contains(t, string(line), `"type":"ONLINE_USERS"`)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"   \n",
		"not json",
		`{"type":"NO_SUCH_TYPE","content":"x"}`,
	}
	for _, line := range cases {
		_, err := Decode([]byte(line))
		assert.Error(t, err, "line %q should not decode", line)
	}
}

func TestBroadcastOmitsEndpoints(t *testing.T) {
	line, err := Encode(New("", "", "alice,bob", OnlineUsers))
	require.NoError(t, err)
	assert.NotContains(t, string(line), `"from"`)
	assert.NotContains(t, string(line), `"to"`)
}
