package planner

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
	"github.com/teris-io/shortid"
)

const pendingPrefix = "pending-"

// ChatEntry is a message in the rendered log. Pending entries have been sent
// but not yet confirmed by storage.
type ChatEntry struct {
	types.Message
	Pending bool `json:"pending"`
}

// ChatSync maintains one room's message log. Snapshots and pushed inserts are
// merged by id, so the same message never appears twice.
type ChatSync struct {
	log      *log.Logger
	roomCode string
	store    MessageStore
	mu       sync.Mutex
	entries  []ChatEntry
	ids      map[string]bool
	draft    string
	onChange func([]ChatEntry)
}

func NewChatSync(logger *log.Logger, roomCode string, store MessageStore, onChange func([]ChatEntry)) *ChatSync {
	return &ChatSync{
		log:      logger,
		roomCode: roomCode,
		store:    store,
		ids:      make(map[string]bool),
		onChange: onChange,
	}
}

// ApplySnapshot unions msgs into the log.
func (c *ChatSync) ApplySnapshot(msgs []types.Message) {
	c.mu.Lock()
	added := 0
	for _, m := range msgs {
		if c.addLocked(m) {
			added++
		}
	}
	c.finish(added > 0)
}

// ApplyChange merges a pushed insert. Other events are ignored since the log
// is append-only.
func (c *ChatSync) ApplyChange(change types.RowChange) {
	if change.EventType != types.EventInsert {
		return
	}

	msg, ok := decodeMessage(change.New)
	if !ok {
		c.log.Printf("ignoring malformed message change for room %q", change.RoomCode)
		return
	}

	c.mu.Lock()
	c.finish(c.addLocked(msg))
}

// Send validates text, appends it as a pending entry and writes it. On
// success the pending entry is replaced by the stored row. On failure the
// pending entry is removed and the draft restored.
func (c *ChatSync) Send(ctx context.Context, userId, text string) (types.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Message{}, ErrEmptyMessage
	}

	pendingId := pendingPrefix + newLocalId()

	c.mu.Lock()
	c.draft = ""
	c.entries = append(c.entries, ChatEntry{
		Message: types.Message{
			Id:        pendingId,
			RoomCode:  c.roomCode,
			UserId:    userId,
			Message:   text,
			CreatedAt: time.Now().UTC(),
		},
		Pending: true,
	})
	c.ids[pendingId] = true
	c.finish(true)

	msg, err := c.store.SendMessage(ctx, c.roomCode, text)

	c.mu.Lock()
	c.removeLocked(pendingId)
	if err != nil {
		c.draft = text
		c.finish(true)
		return types.Message{}, err
	}
	c.addLocked(msg)
	c.finish(true)

	return msg, nil
}

func (c *ChatSync) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *ChatSync) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Entries returns a copy of the ordered log.
func (c *ChatSync) Entries() []ChatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *ChatSync) addLocked(m types.Message) bool {
	if m.Id == "" || c.ids[m.Id] {
		return false
	}
	c.ids[m.Id] = true
	c.entries = append(c.entries, ChatEntry{Message: m})
	return true
}

func (c *ChatSync) removeLocked(id string) {
	if !c.ids[id] {
		return
	}
	delete(c.ids, id)
	for i, e := range c.entries {
		if e.Id == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// finish sorts the log, releases the lock and notifies when changed is set.
func (c *ChatSync) finish(changed bool) {
	if !changed {
		c.mu.Unlock()
		return
	}

	sortEntries(c.entries)
	entries := c.snapshotLocked()
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(entries)
	}
}

func (c *ChatSync) snapshotLocked() []ChatEntry {
	out := make([]ChatEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// sortEntries orders by creation time, then id. Pending entries stay after
// confirmed ones created at the same instant.
func sortEntries(entries []ChatEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Pending != b.Pending {
			return !a.Pending
		}
		return a.Id < b.Id
	})
}

func newLocalId() string {
	id, err := shortid.Generate()
	if err != nil {
		return time.Now().UTC().Format("150405.000000000")
	}
	return id
}
