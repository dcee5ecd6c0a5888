package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-tripplanner/internal/planner"
	"github.com/npezzotti/go-tripplanner/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one websocket connection. It may hold subscriptions on several
// rooms at once.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	log       *log.Logger
	user      types.Profile
	send      chan *ServerMessage
	rooms     map[string]*Room
	roomsLock sync.RWMutex
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewClient(user types.Profile, conn *websocket.Conn, h *Hub, l *log.Logger) *Client {
	return &Client{
		conn:  conn,
		hub:   h,
		log:   l,
		user:  user,
		send:  make(chan *ServerMessage, 256),
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		msg, ok := c.parseMessage(raw)
		if !ok {
			continue
		}

		switch {
		case msg.Subscribe != nil:
			c.subscribe(msg)
		case msg.Unsubscribe != nil:
			c.unsubscribe(msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// parseMessage decodes and validates a client frame, answering with an
// error response when it is unusable.
func (c *Client) parseMessage(raw []byte) (*ClientMessage, bool) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Println("error parsing message:", err)
		c.queueMessage(ErrInvalidMessage(0))
		return nil, false
	}

	msg.client = c
	msg.UserId = c.user.Id
	msg.Timestamp = Now()

	switch {
	case msg.Subscribe != nil:
		msg.Subscribe.RoomCode = planner.NormalizeRoomCode(msg.Subscribe.RoomCode)
		if !planner.ValidRoomCode(msg.Subscribe.RoomCode) || !validTable(msg.Subscribe.Table) {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return nil, false
		}
	case msg.Unsubscribe != nil:
		msg.Unsubscribe.RoomCode = planner.NormalizeRoomCode(msg.Unsubscribe.RoomCode)
		if msg.Unsubscribe.Table != "" && !validTable(msg.Unsubscribe.Table) {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			return nil, false
		}
	}

	return &msg, true
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.hub.DeregisterClient(c)
	c.unsubscribeAll()
	c.stopClient()
}

func (c *Client) unsubscribeAll() {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	for code := range c.rooms {
		if !c.hub.request(&ClientMessage{
			Unsubscribe: &Unsubscribe{RoomCode: code},
			UserId:      c.user.Id,
			client:      c,
		}) {
			c.log.Printf("hub request channel full, room %q keeps a stale subscription", code)
		}
	}
}

func (c *Client) subscribe(msg *ClientMessage) {
	if !c.hub.request(msg) {
		c.log.Println("hub request channel full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// unsubscribe goes through the hub like subscribe so the room handles both
// in the order the client sent them.
func (c *Client) unsubscribe(msg *ClientMessage) {
	if !c.hub.request(msg) {
		c.log.Println("hub request channel full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) delRoom(code string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, code)
}

func (c *Client) addRoom(r *Room) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[r.code] = r
}

func (c *Client) getRoom(code string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	return c.rooms[code]
}
