package message

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Type classifies a message on the wire. It marshals by its symbolic
// name so both ends stay readable in logs and captures.
type Type int

const (
	Login Type = iota
	Logout
	Chat
	FriendRequest
	FriendList
	StatusUpdate
	OnlineUsers
	RemoveFriend
	FriendListUpdate
	OfflineMessage
	File
)

var typeNames = map[Type]string{
	Login:            "LOGIN",
	Logout:           "LOGOUT",
	Chat:             "CHAT",
	FriendRequest:    "FRIEND_REQUEST",
	FriendList:       "FRIEND_LIST",
	StatusUpdate:     "STATUS_UPDATE",
	OnlineUsers:      "ONLINE_USERS",
	RemoveFriend:     "REMOVE_FRIEND",
	FriendListUpdate: "FRIEND_LIST_UPDATE",
	OfflineMessage:   "OFFLINE_MESSAGE",
	File:             "FILE",
}

var typeValues = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

func (t Type) MarshalText() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, errors.Errorf("unknown message type %d", int(t))
	}
	return []byte(name), nil
}

func (t *Type) UnmarshalText(data []byte) error {
	v, ok := typeValues[string(data)]
	if !ok {
		return errors.Errorf("unknown message type %q", string(data))
	}
	*t = v
	return nil
}

// Message is one unit of traffic between a client and the server. From
// and To are empty only on server-originated broadcasts (online-user
// lists, status updates). A message is immutable once sent, except that
// the router may prefix Content with the offline marker before final
// delivery.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Content   string `json:"content"`
	Type      Type   `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// New builds a message with a fresh unique id and the current time in
// milliseconds since epoch.
func New(from, to, content string, t Type) *Message {
	return &Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Content:   content,
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Time converts the epoch-millis timestamp back into a time.Time.
func (m *Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}
