package notification

import (
	"sort"
	"strings"
	"sync"
)

// defaultCacheSize bounds the per-recipient replay history when no explicit
// size is configured
const defaultCacheSize = 128

// Entry is one replay-cache record: the identifier an event was delivered
// under and the payload that went out with it. Fan-out records one entry per
// live connection, so entries may share an event identifier.
type Entry struct {
	EventID string
	Payload interface{}
}

// EventCache keeps a bounded per-recipient history of recently delivered
// events so a client that reconnects with a Last-Event-ID can be resent what
// it missed. Entries are append-only; once the per-recipient cap is reached
// the oldest entries are dropped first, which is exactly the data a
// reconnecting client is least entitled to.
type EventCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[int64][]Entry
}

// NewEventCache creates a replay cache holding at most maxSize entries per
// recipient
func NewEventCache(maxSize int) *EventCache {
	if maxSize < 1 {
		maxSize = defaultCacheSize
	}
	return &EventCache{
		maxSize: maxSize,
		entries: make(map[int64][]Entry),
	}
}

// Record appends an entry to the recipient's history. Existing entries are
// never overwritten, even when the event identifier repeats.
func (c *EventCache) Record(recipientID int64, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := append(c.entries[recipientID], e)
	if len(entries) > c.maxSize {
		entries = entries[len(entries)-c.maxSize:]
	}
	c.entries[recipientID] = entries
}

// EntriesSince returns every entry for the recipient whose identifier
// compares greater than lastEventID, ascending. Identifiers are compared as
// plain strings, matching how clients echo them back. An empty lastEventID
// means no replay was requested and yields nothing.
func (c *EventCache) EntriesSince(recipientID int64, lastEventID string) []Entry {
	if lastEventID == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var missed []Entry
	for _, e := range c.entries[recipientID] {
		if strings.Compare(lastEventID, e.EventID) < 0 {
			missed = append(missed, e)
		}
	}

	sort.SliceStable(missed, func(i, j int) bool {
		return missed[i].EventID < missed[j].EventID
	})
	return missed
}
