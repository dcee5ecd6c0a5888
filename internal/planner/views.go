package planner

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

type (
	RoomChannel    = Channel[types.Room, types.Selection]
	MessageChannel = Channel[[]types.Message, string]
)

// RoomChannelOptions configures a channel over a single room row. Snapshots
// and pushed rows are merged last-write-wins by updated_at.
func RoomChannelOptions(backend Backend, logger *log.Logger, interval time.Duration) ChannelOptions[types.Room, types.Selection] {
	return ChannelOptions[types.Room, types.Selection]{
		Table: types.TableRooms,
		Feed:  backend,
		Fetch: backend.GetRoom,
		Send: func(ctx context.Context, sel types.Selection) error {
			_, err := backend.UpdateSelection(ctx, sel)
			return err
		},
		Changed:      roomChanged,
		Fold:         foldRoom,
		PollInterval: interval,
		Logger:       logger,
	}
}

func roomChanged(prev, next types.Room) bool {
	if next.UpdatedAt.Before(prev.UpdatedAt) {
		return false
	}
	return !prev.SameState(next)
}

func foldRoom(prev types.Room, change types.RowChange) types.Room {
	if change.EventType == types.EventDelete || len(change.New) == 0 {
		return prev
	}

	var next types.Room
	if err := json.Unmarshal(change.New, &next); err != nil {
		return prev
	}

	if next.UpdatedAt.Before(prev.UpdatedAt) {
		return prev
	}
	return next
}

// MessageChannelOptions configures a channel over a room's message log.
// Polls report new data when the number of messages differs.
func MessageChannelOptions(backend Backend, logger *log.Logger, interval time.Duration) ChannelOptions[[]types.Message, string] {
	return ChannelOptions[[]types.Message, string]{
		Table:        types.TableMessages,
		Feed:         backend,
		Fetch:        backend.GetMessages,
		Changed:      func(prev, next []types.Message) bool { return len(prev) != len(next) },
		Fold:         foldMessage,
		PollInterval: interval,
		Logger:       logger,
	}
}

func foldMessage(prev []types.Message, change types.RowChange) []types.Message {
	if change.EventType != types.EventInsert {
		return prev
	}

	msg, ok := decodeMessage(change.New)
	if !ok {
		return prev
	}

	for _, m := range prev {
		if m.Id == msg.Id {
			return prev
		}
	}

	next := make([]types.Message, len(prev), len(prev)+1)
	copy(next, prev)
	return append(next, msg)
}

func decodeMessage(raw json.RawMessage) (types.Message, bool) {
	if len(raw) == 0 {
		return types.Message{}, false
	}

	var msg types.Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Id == "" {
		return types.Message{}, false
	}
	return msg, true
}

func decodeRoom(raw json.RawMessage) (types.Room, bool) {
	if len(raw) == 0 {
		return types.Room{}, false
	}

	var room types.Room
	if err := json.Unmarshal(raw, &room); err != nil || room.Code == "" {
		return types.Room{}, false
	}
	return room, true
}
