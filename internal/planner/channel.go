package planner

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

const DefaultPollInterval = 2 * time.Second

type ChannelOptions[S any, C any] struct {
	Table        string
	Feed         ChangeFeed
	Fetch        func(ctx context.Context, roomCode string) (S, error)
	Send         func(ctx context.Context, change C) error
	Changed      func(prev, next S) bool
	Fold         func(prev S, change types.RowChange) S
	PollInterval time.Duration
	Logger       *log.Logger
}

// Channel keeps a local copy of one room-scoped view in step with shared
// storage using an initial fetch, a push subscription and a fallback poll.
// Callbacks run one at a time and never after Close returns. Callbacks must
// not call Close.
type Channel[S any, C any] struct {
	roomCode   string
	opts       ChannelOptions[S, C]
	log        *log.Logger
	mu         sync.Mutex
	last       S
	closed     bool
	sub        Subscription
	onSnapshot func(S)
	onChange   func(types.RowChange)
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
}

// OpenChannel fetches the view once, hands it to onSnapshot, subscribes to
// push changes and starts the poll loop. The returned error comes from the
// initial fetch or the subscription.
func OpenChannel[S any, C any](ctx context.Context, roomCode string, opts ChannelOptions[S, C], onSnapshot func(S), onChange func(types.RowChange)) (*Channel[S, C], error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	initial, err := opts.Fetch(ctx, roomCode)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", opts.Table, err)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	c := &Channel[S, C]{
		roomCode:   roomCode,
		opts:       opts,
		log:        opts.Logger,
		last:       initial,
		onSnapshot: onSnapshot,
		onChange:   onChange,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	if onSnapshot != nil {
		onSnapshot(initial)
	}

	sub, err := opts.Feed.Subscribe(ctx, roomCode, opts.Table, c.deliver)
	if err != nil {
		cancel()
		c.closed = true
		return nil, fmt.Errorf("subscribe %s: %w", opts.Table, err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go c.poll(pollCtx)

	return c, nil
}

func (c *Channel[S, C]) deliver(change types.RowChange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if change.RoomCode != c.roomCode || (c.opts.Table != "" && change.Table != c.opts.Table) {
		c.log.Printf("dropping %s change for room %q on %s channel for room %q",
			change.Table, change.RoomCode, c.opts.Table, c.roomCode)
		return
	}

	if c.opts.Fold != nil {
		c.last = c.opts.Fold(c.last, change)
	}

	if c.onChange != nil {
		c.onChange(change)
	}
}

func (c *Channel[S, C]) poll(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

func (c *Channel[S, C]) pollOnce(ctx context.Context) {
	next, err := c.opts.Fetch(ctx, c.roomCode)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Printf("poll %s for room %q: %v", c.opts.Table, c.roomCode, err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.opts.Changed(c.last, next) {
		return
	}

	c.last = next
	if c.onSnapshot != nil {
		c.onSnapshot(next)
	}
}

// Send writes change to shared storage. The local view is updated by the
// echo through push or poll, not by Send.
func (c *Channel[S, C]) Send(ctx context.Context, change C) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}

	return c.opts.Send(ctx, change)
}

// Last returns the last known state of the view.
func (c *Channel[S, C]) Last() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Close releases the subscription and stops the poll loop. It is safe to
// call more than once.
func (c *Channel[S, C]) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sub := c.sub
		c.mu.Unlock()

		c.cancel()
		if sub != nil {
			if err := sub.Unsubscribe(); err != nil {
				c.log.Printf("unsubscribe %s for room %q: %v", c.opts.Table, c.roomCode, err)
			}
		}
		<-c.done
	})
}
