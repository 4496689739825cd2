// Package history keeps the bounded per-conversation message log. A
// conversation is keyed by the unordered pair of participants, so the
// log for (A,B) and (B,A) is the same log.
package history

import (
	"fmt"
	"sync"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"

	"chatd/message"
	"chatd/storage"
)

// MaxPerPair caps each conversation's log; the oldest entry is evicted
// first once the cap is reached.
const MaxPerPair = 100

type History struct {
	mu     sync.Mutex
	pairs  map[string][]*message.Message
	logged *set.Set
	store  *storage.Store
}

// New loads the persisted history store so conversations survive a
// restart. A load failure starts with an empty map; the failure is
// logged, not fatal.
func New(store *storage.Store) *History {
	pairs, err := store.LoadHistoryStore()
	if err != nil {
		jww.ERROR.Printf("failed to load history store: %v", err)
		pairs = make(map[string][]*message.Message)
	}
	return &History{
		pairs:  pairs,
		logged: set.New(),
		store:  store,
	}
}

// Append records the message under its canonical pair key, evicting the
// oldest entry past the cap, then persists the whole store and writes
// the audit line. Messages with a missing endpoint are system traffic
// and are not historized.
func (h *History) Append(m *message.Message) {
	if m.From == "" || m.To == "" {
		return
	}
	key := pairKey(m.From, m.To)

	h.mu.Lock()
	log := append(h.pairs[key], m)
	for len(log) > MaxPerPair {
		log = log[1:]
	}
	h.pairs[key] = log

	line := auditLine(m)
	first := !h.logged.Has(line)
	if first {
		h.logged.Insert(line)
	}

	if err := h.store.SaveHistoryStore(h.pairs); err != nil {
		jww.ERROR.Printf("failed to persist history: %v", err)
	}
	h.mu.Unlock()

	if first {
		if err := h.store.AppendAuditLine(line); err != nil {
			jww.ERROR.Printf("failed to append audit line: %v", err)
		}
	}
}

// ByPair returns the bounded log for one conversation, oldest first.
func (h *History) ByPair(u1, u2 string) []*message.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	log := h.pairs[pairKey(u1, u2)]
	out := make([]*message.Message, len(log))
	copy(out, log)
	return out
}

// ByUser returns every record touching the user across all pairs. Order
// across pairs is unspecified.
func (h *History) ByUser(username string) []*message.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*message.Message
	for _, log := range h.pairs {
		for _, m := range log {
			if m.From == username || m.To == username {
				out = append(out, m)
			}
		}
	}
	return out
}

func pairKey(u1, u2 string) string {
	if u1 < u2 {
		return u1 + ":" + u2
	}
	return u2 + ":" + u1
}

// auditLine formats the message at minute granularity; the formatted
// line doubles as the dedup key, so an identical line is logged once.
func auditLine(m *message.Message) string {
	ts := m.Time().UTC().Format("2006/01/02 15:04")
	return fmt.Sprintf("[%s] %s >> %s : %s", ts, m.From, m.To, m.Content)
}
