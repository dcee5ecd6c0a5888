package server

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

const idleRoomTimeout = time.Second * 5

type exitReq struct {
	deleted *types.RowChange
}

// Room fans row changes out to the clients subscribed to a planning room.
type Room struct {
	code            string
	hub             *Hub
	log             *log.Logger
	// subscribe and unsubscribe requests, in the order the hub received them
	requestChan chan *ClientMessage
	changeChan  chan types.RowChange
	// tables each client is subscribed to
	clients map[*Client]map[string]struct{}
	// killTimer unloads the room once nobody is subscribed
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func newRoom(h *Hub, code string) *Room {
	return &Room{
		code:        code,
		hub:         h,
		log:         h.log,
		requestChan: make(chan *ClientMessage, 256),
		changeChan:  make(chan types.RowChange, 256),
		clients:     make(map[*Client]map[string]struct{}),
		exit:        make(chan exitReq),
		done:        make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.code)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()
	defer close(r.done)

	for {
		select {
		case msg := <-r.requestChan:
			r.handleRequest(msg)
		case change := <-r.changeChan:
			r.broadcast(change.Table, ChangeMessage(change))
		case <-r.killTimer.C:
			if r.handleRoomTimeout() {
				return
			}
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleRequest(msg *ClientMessage) {
	switch {
	case msg.Subscribe != nil:
		r.handleSubscribe(msg)
	case msg.Unsubscribe != nil:
		r.handleUnsubscribe(msg)
	}
}

func (r *Room) handleSubscribe(msg *ClientMessage) {
	r.killTimer.Stop()

	c := msg.client
	if _, err := r.hub.db.GetParticipant(r.code, msg.UserId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(ErrNotParticipant(msg.Id))
		} else {
			r.log.Println("GetParticipant:", err)
			c.queueMessage(ErrInternalError(msg.Id))
		}
		r.resetTimerIfEmpty()
		return
	}

	tables, ok := r.clients[c]
	if !ok {
		tables = make(map[string]struct{})
		r.clients[c] = tables
		c.addRoom(r)
	}
	if _, ok := tables[msg.Subscribe.Table]; !ok {
		tables[msg.Subscribe.Table] = struct{}{}
		r.hub.stats.Incr(MetricSubscribers)
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"room_code": r.code,
		"table":     msg.Subscribe.Table,
	}))
}

func (r *Room) handleUnsubscribe(msg *ClientMessage) {
	c := msg.client
	tables, ok := r.clients[c]
	if !ok {
		if msg.Id > 0 {
			c.queueMessage(ErrRoomNotFound(msg.Id))
		}
		return
	}

	table := msg.Unsubscribe.Table
	for t := range tables {
		if table == "" || t == table {
			delete(tables, t)
			r.hub.stats.Decr(MetricSubscribers)
		}
	}

	if len(tables) == 0 {
		delete(r.clients, c)
		c.delRoom(r.code)
		r.resetTimerIfEmpty()
	}

	if msg.Id > 0 {
		c.queueMessage(NoErrOK(msg.Id, nil))
	}
}

func (r *Room) resetTimerIfEmpty() {
	if len(r.clients) == 0 {
		r.log.Printf("no subscribers in %q, starting kill timer", r.code)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// handleRoomTimeout asks the hub to unload the room. It reports whether the
// room exited while waiting for the hub.
func (r *Room) handleRoomTimeout() bool {
	r.log.Printf("room %q timed out", r.code)

	// the hub may be unloading this room already and blocked on exit
	select {
	case r.hub.unloadRoomChan <- r:
		return false
	case e := <-r.exit:
		r.handleRoomExit(e)
		return true
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.code)

	if e.deleted != nil {
		r.broadcast(types.TableRooms, ChangeMessage(*e.deleted))
		r.broadcastAll(RoomDeletedMessage(r.code))
	}

	for c, tables := range r.clients {
		for range tables {
			r.hub.stats.Decr(MetricSubscribers)
		}
		c.delRoom(r.code)
	}
	r.clients = make(map[*Client]map[string]struct{})

	// requests queued behind the exit never reached the room
	for {
		select {
		case msg := <-r.requestChan:
			switch {
			case msg.Subscribe != nil:
				msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
			case msg.Id > 0:
				msg.client.queueMessage(NoErrOK(msg.Id, nil))
			}
		default:
			return
		}
	}
}

func (r *Room) broadcast(table string, msg *ServerMessage) {
	for c, tables := range r.clients {
		if _, ok := tables[table]; !ok || c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

func (r *Room) broadcastAll(msg *ServerMessage) {
	for c := range r.clients {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}
