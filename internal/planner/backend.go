package planner

import (
	"context"
	"errors"
	"io"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNotController     = errors.New("only the room controller can do that")
	ErrIneligibleCountry = errors.New("country cannot be selected")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrClosed            = errors.New("channel closed")
)

// Subscription is a live push subscription.
type Subscription interface {
	Unsubscribe() error
}

// ChangeFeed delivers row changes for one table of one room.
type ChangeFeed interface {
	Subscribe(ctx context.Context, roomCode, table string, fn func(types.RowChange)) (Subscription, error)
}

type RoomStore interface {
	GetRoom(ctx context.Context, code string) (types.Room, error)
	UpdateSelection(ctx context.Context, sel types.Selection) (types.Room, error)
}

type MessageStore interface {
	GetMessages(ctx context.Context, roomCode string) ([]types.Message, error)
	SendMessage(ctx context.Context, roomCode, text string) (types.Message, error)
}

type ProfileSource interface {
	GetProfile(ctx context.Context, userId string) (types.Profile, error)
}

type OpportunitySource interface {
	GetOpportunities(ctx context.Context) (io.ReadCloser, error)
}

// Backend is everything a planning session needs from shared storage.
type Backend interface {
	ChangeFeed
	RoomStore
	MessageStore
	ProfileSource
}
