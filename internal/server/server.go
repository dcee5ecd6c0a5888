package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/npezzotti/go-tripplanner/internal/database"
	"github.com/npezzotti/go-tripplanner/internal/stats"
	"github.com/npezzotti/go-tripplanner/internal/types"
)

const (
	MetricActiveRooms      = "NumActiveRooms"
	MetricConnections      = "NumConnections"
	MetricSubscribers      = "NumSubscribers"
	MetricChangesPublished = "NumChangesPublished"
)

// ChangePublisher carries a row change from a write to every subscriber of
// the affected room.
type ChangePublisher interface {
	Publish(ctx context.Context, change types.RowChange) error
}

type stopReq struct {
	done chan struct{}
}

// Hub owns the loaded rooms and routes subscriptions and row changes to
// them. Each loaded room runs in its own goroutine.
type Hub struct {
	log            *log.Logger
	db             database.TripPlannerRepository
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	requestChan    chan *ClientMessage
	changeChan     chan types.RowChange
	unloadRoomChan chan *Room
	rooms          map[string]*Room
	stop           chan stopReq
}

func NewHub(logger *log.Logger, db database.TripPlannerRepository, su stats.StatsProvider) (*Hub, error) {
	if db == nil {
		return nil, errors.New("hub requires a repository")
	}

	for _, m := range []string{MetricActiveRooms, MetricConnections, MetricSubscribers, MetricChangesPublished} {
		su.RegisterMetric(m)
	}

	return &Hub{
		log:            logger,
		db:             db,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		requestChan:    make(chan *ClientMessage, 256),
		changeChan:     make(chan types.RowChange, 256),
		unloadRoomChan: make(chan *Room),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopReq),
	}, nil
}

func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.requestChan:
			h.handleRequest(msg)
		case change := <-h.changeChan:
			h.handleChange(change)
		case room := <-h.unloadRoomChan:
			if h.rooms[room.code] == room {
				h.unloadRoom(room.code, nil)
			}
		case req := <-h.stop:
			h.log.Println("shutting down rooms")
			for code := range h.rooms {
				h.unloadRoom(code, nil)
			}
			close(req.done)
			return
		}
	}
}

// handleRequest forwards subscribe and unsubscribe requests to their room
// through a single queue, so a room sees them in the order they were sent.
func (h *Hub) handleRequest(msg *ClientMessage) {
	switch {
	case msg.Subscribe != nil:
		h.handleSubscribe(msg)
	case msg.Unsubscribe != nil:
		h.handleUnsubscribe(msg)
	}
}

func (h *Hub) handleUnsubscribe(msg *ClientMessage) {
	code := msg.Unsubscribe.RoomCode
	room, ok := h.rooms[code]
	if !ok {
		if msg.Id > 0 {
			msg.client.queueMessage(ErrRoomNotFound(msg.Id))
		}
		return
	}

	select {
	case room.requestChan <- msg:
	default:
		h.log.Printf("request channel full on room %q", code)
		if msg.Id > 0 {
			msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	}
}

func (h *Hub) handleSubscribe(msg *ClientMessage) {
	code := msg.Subscribe.RoomCode
	if room, ok := h.rooms[code]; ok {
		select {
		case room.requestChan <- msg:
		default:
			h.log.Printf("request channel full on room %q", code)
			msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
		}
		return
	}

	if _, err := h.db.GetRoomByCode(code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			msg.client.queueMessage(ErrRoomNotFound(msg.Id))
			return
		}
		h.log.Println("GetRoomByCode:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	room := newRoom(h, code)
	h.rooms[code] = room
	h.stats.Incr(MetricActiveRooms)
	room.requestChan <- msg

	go room.start()
}

func (h *Hub) handleChange(change types.RowChange) {
	room, ok := h.rooms[change.RoomCode]
	if !ok {
		return
	}

	if change.Table == types.TableRooms && change.EventType == types.EventDelete {
		h.unloadRoom(change.RoomCode, &change)
		return
	}

	select {
	case room.changeChan <- change:
	default:
		h.log.Printf("change channel full on room %q, dropping %s change", change.RoomCode, change.Table)
	}
}

// unloadRoom stops the room goroutine. A non-nil deleted change is delivered
// to subscribers before they are told the room is gone.
func (h *Hub) unloadRoom(code string, deleted *types.RowChange) {
	room, ok := h.rooms[code]
	if !ok {
		return
	}

	h.log.Printf("unloading room %q", code)
	delete(h.rooms, code)
	h.stats.Decr(MetricActiveRooms)

	room.exit <- exitReq{deleted: deleted}
	<-room.done
}

// Publish hands change to the hub for fan-out.
func (h *Hub) Publish(ctx context.Context, change types.RowChange) error {
	select {
	case h.changeChan <- change:
		h.stats.Incr(MetricChangesPublished)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish %s change for room %q: %w", change.Table, change.RoomCode, ctx.Err())
	}
}

// Dispatch publishes a change received from another instance.
func (h *Hub) Dispatch(change types.RowChange) {
	if err := h.Publish(context.Background(), change); err != nil {
		h.log.Println("dispatch:", err)
	}
}

func (h *Hub) RegisterClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	h.clients[c] = struct{}{}
	h.stats.Incr(MetricConnections)
}

func (h *Hub) DeregisterClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.stats.Decr(MetricConnections)
	}
}

func (h *Hub) request(msg *ClientMessage) bool {
	select {
	case h.requestChan <- msg:
		return true
	default:
		return false
	}
}

// Shutdown closes every client connection and stops all rooms.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Println("received shutdown signal")

	h.clientsLock.Lock()
	for c := range h.clients {
		c.stopClient()
	}
	h.clientsLock.Unlock()

	req := stopReq{done: make(chan struct{})}
	select {
	case h.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
