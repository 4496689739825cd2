package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"chatd/message"
)

// UserRecord is the per-username blob kept on disk: the user's friend
// set and whatever is pending in the offline mailbox. It is rewritten
// wholesale on every mutation.
type UserRecord struct {
	Friends []string           `json:"friends"`
	Offline []*message.Message `json:"offline"`
}

// Store owns the on-disk storage root. All paths are derived from
// usernames; callers are trusted to hand in names that are safe as file
// name components.
type Store struct {
	root string

	mu        sync.Mutex
	snapshots map[string]struct{}
}

func New(root string) *Store {
	return &Store{
		root:      root,
		snapshots: make(map[string]struct{}),
	}
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// EnsureRoot creates the storage root if it does not exist yet.
// Idempotent; called once at process start.
func (s *Store) EnsureRoot() error {
	return errors.Wrapf(os.MkdirAll(s.root, 0o755), "create storage root %s", s.root)
}

// CreateUserRecord creates an empty record file for the user if none
// exists. Idempotent.
func (s *Store) CreateUserRecord(username string) error {
	path := s.userPath(username)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.Wrapf(err, "create user record %s", path)
	}
	return f.Close()
}

// SaveUserRecord rewrites the user's record file in one write.
func (s *Store) SaveUserRecord(username string, rec *UserRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "marshal user record %s", username)
	}
	path := s.userPath(username)
	jww.DEBUG.Printf("writing user record %s", path)
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write user record %s", path)
}

// LoadUserRecord reads the user's record file. A missing or empty file
// yields an empty record, not an error.
func (s *Store) LoadUserRecord(username string) (*UserRecord, error) {
	data, err := os.ReadFile(s.userPath(username))
	if err != nil {
		if os.IsNotExist(err) {
			return &UserRecord{}, nil
		}
		return nil, errors.Wrapf(err, "read user record %s", username)
	}
	if len(data) == 0 {
		return &UserRecord{}, nil
	}
	var rec UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "parse user record %s", username)
	}
	return &rec, nil
}

// SaveHistoryStore rewrites the shared conversation-history store.
func (s *Store) SaveHistoryStore(pairs map[string][]*message.Message) error {
	data, err := json.Marshal(pairs)
	if err != nil {
		return errors.Wrap(err, "marshal history store")
	}
	path := filepath.Join(s.root, "message_history.json")
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write history store %s", path)
}

// LoadHistoryStore reads the shared conversation-history store; absent
// or empty yields an empty map.
func (s *Store) LoadHistoryStore() (map[string][]*message.Message, error) {
	path := filepath.Join(s.root, "message_history.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]*message.Message), nil
		}
		return nil, errors.Wrapf(err, "read history store %s", path)
	}
	if len(data) == 0 {
		return make(map[string][]*message.Message), nil
	}
	var pairs map[string][]*message.Message
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, errors.Wrapf(err, "parse history store %s", path)
	}
	return pairs, nil
}

// AppendAuditLine appends one formatted line to the plaintext audit log.
func (s *Store) AppendAuditLine(line string) error {
	path := filepath.Join(s.root, "latest.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open audit log %s", path)
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return errors.Wrapf(err, "append audit log %s", path)
}

// SaveChatHistorySnapshot serializes the user's history and appends it
// to the user's derived history file. The per-file dedup cache ensures
// the same file name is never appended twice within one process
// lifetime.
func (s *Store) SaveChatHistorySnapshot(username string, msgs []*message.Message) error {
	name := username + "_history.json"

	s.mu.Lock()
	if _, done := s.snapshots[name]; done {
		s.mu.Unlock()
		return nil
	}
	s.snapshots[name] = struct{}{}
	s.mu.Unlock()

	data, err := json.Marshal(msgs)
	if err != nil {
		return errors.Wrapf(err, "marshal history snapshot %s", username)
	}
	path := filepath.Join(s.root, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open history snapshot %s", path)
	}
	defer f.Close()
	_, err = f.Write(data)
	return errors.Wrapf(err, "append history snapshot %s", path)
}

// RemoveMessageScratch deletes the scratch file for a delivered message
// id, if one exists. Best-effort.
func (s *Store) RemoveMessageScratch(id string) {
	path := filepath.Join(s.root, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		jww.WARN.Printf("failed to remove scratch file %s: %v", path, err)
	}
}

func (s *Store) userPath(username string) string {
	return filepath.Join(s.root, username+".json")
}
