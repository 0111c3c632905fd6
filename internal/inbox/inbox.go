// Package inbox keeps the recent notification history shown by the tray.
package inbox

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/barshell/internal/notify"
)

// DefaultHistoryLimit is the number of entries kept before the oldest is
// evicted.
const DefaultHistoryLimit = 25

// Change describes what Add did with an event.
type Change int

const (
	ChangeAdded Change = iota + 1
	ChangeUpdated
)

func (c Change) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Entry is one notification as shown in the history.
type Entry struct {
	ID       string
	Key      string
	AppName  string
	Summary  string
	Body     string
	Icon     string
	Pixbuf   *image.NRGBA
	Actions  []string
	Received time.Time
	Updated  time.Time
	Updates  int
}

// Inbox is an ordered, bounded notification list, newest first.
type Inbox struct {
	limit int

	mu      sync.RWMutex
	entries []*Entry
	byKey   map[string]*Entry
	unread  int
}

// New creates an inbox holding at most limit entries.
func New(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Inbox{limit: limit, byKey: make(map[string]*Entry)}
}

// Add inserts ev or, when its key matches a live entry, updates that entry
// in place and moves it to the front.
func (b *Inbox) Add(ev notify.Event) (Entry, Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Key != "" {
		if existing, ok := b.byKey[ev.Key]; ok {
			existing.Summary = ev.Summary
			existing.Body = ev.Body
			existing.Icon = ev.Icon
			existing.Pixbuf = ev.Pixbuf
			existing.Actions = ev.Actions
			existing.Updated = ev.Timestamp
			existing.Updates++
			b.moveToFront(existing)
			return *existing, ChangeUpdated
		}
	}

	entry := &Entry{
		ID:       uuid.NewString(),
		Key:      ev.Key,
		AppName:  ev.AppName,
		Summary:  ev.Summary,
		Body:     ev.Body,
		Icon:     ev.Icon,
		Pixbuf:   ev.Pixbuf,
		Actions:  ev.Actions,
		Received: ev.Timestamp,
		Updated:  ev.Timestamp,
	}
	b.entries = append([]*Entry{entry}, b.entries...)
	if entry.Key != "" {
		b.byKey[entry.Key] = entry
	}
	b.unread++

	for len(b.entries) > b.limit {
		oldest := b.entries[len(b.entries)-1]
		b.entries = b.entries[:len(b.entries)-1]
		b.forget(oldest)
	}
	return *entry, ChangeAdded
}

// Dismiss removes the entry with id. It reports whether one was found.
func (b *Inbox) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.entries {
		if e.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			b.forget(e)
			if b.unread > len(b.entries) {
				b.unread = len(b.entries)
			}
			return true
		}
	}
	return false
}

// Clear drops every entry.
func (b *Inbox) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.byKey = make(map[string]*Entry)
	b.unread = 0
}

// MarkRead resets the unread counter.
func (b *Inbox) MarkRead() {
	b.mu.Lock()
	b.unread = 0
	b.mu.Unlock()
}

// Unread returns the number of entries added since the last MarkRead.
func (b *Inbox) Unread() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unread
}

// Len returns the number of entries.
func (b *Inbox) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Snapshot returns copies of the entries, newest first.
func (b *Inbox) Snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	for i, e := range b.entries {
		out[i] = *e
	}
	return out
}

func (b *Inbox) moveToFront(e *Entry) {
	for i, cur := range b.entries {
		if cur == e {
			copy(b.entries[1:i+1], b.entries[:i])
			b.entries[0] = e
			return
		}
	}
}

func (b *Inbox) forget(e *Entry) {
	if e.Key == "" {
		return
	}
	if cur, ok := b.byKey[e.Key]; ok && cur == e {
		delete(b.byKey, e.Key)
	}
}
