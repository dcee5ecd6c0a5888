package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-tripplanner/internal/server"
	"github.com/npezzotti/go-tripplanner/internal/types"
)

const (
	writeWait = 10 * time.Second
	dialWait  = 10 * time.Second
)

var errFeedClosed = errors.New("change feed closed")

type subKey struct {
	roomCode string
	table    string
}

// feed multiplexes every table subscription of one client over a single
// websocket. The hub only sees one subscription per room and table no
// matter how many local callbacks share it.
type feed struct {
	log  *log.Logger
	conn *websocket.Conn

	writeLock sync.Mutex

	mu      sync.Mutex
	nextId  int
	nextSub int
	pending map[int]chan *server.Response
	subs    map[subKey]map[int]func(types.RowChange)
	err     error

	done chan struct{}
}

func dialFeed(ctx context.Context, logger *log.Logger, wsURL string, jar http.CookieJar) (*feed, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: dialWait,
		Jar:              jar,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial change feed: %w", &StatusError{StatusCode: resp.StatusCode})
		}
		return nil, fmt.Errorf("dial change feed: %w", err)
	}

	f := &feed{
		log:     logger,
		conn:    conn,
		pending: make(map[int]chan *server.Response),
		subs:    make(map[subKey]map[int]func(types.RowChange)),
		done:    make(chan struct{}),
	}

	go f.read()

	return f, nil
}

func (f *feed) closed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *feed) read() {
	defer func() {
		f.shutdown(errFeedClosed)
		f.conn.Close()
	}()

	for {
		var msg server.ServerMessage
		if err := f.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !f.closed() {
				f.log.Printf("change feed read: %v", err)
			}
			return
		}

		switch {
		case msg.Response != nil:
			f.resolve(msg.Id, msg.Response)
		case msg.Change != nil:
			f.dispatch(*msg.Change)
		case msg.Notification != nil && msg.Notification.RoomDeleted != nil:
			f.dropRoom(msg.Notification.RoomDeleted.RoomCode)
		}
	}
}

func (f *feed) resolve(id int, res *server.Response) {
	f.mu.Lock()
	ch, ok := f.pending[id]
	delete(f.pending, id)
	f.mu.Unlock()

	if !ok {
		if res.ResponseCode >= http.StatusBadRequest {
			f.log.Printf("change feed: unsolicited error %d: %s", res.ResponseCode, res.Error)
		}
		return
	}
	ch <- res
}

// dispatch runs the callbacks outside the lock so they may unsubscribe.
func (f *feed) dispatch(change types.RowChange) {
	f.mu.Lock()
	fns := make([]func(types.RowChange), 0, len(f.subs[subKey{change.RoomCode, change.Table}]))
	for _, fn := range f.subs[subKey{change.RoomCode, change.Table}] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// dropRoom forgets every subscription on a deleted room. The hub has
// already released them.
func (f *feed) dropRoom(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key := range f.subs {
		if key.roomCode == code {
			delete(f.subs, key)
		}
	}
}

func (f *feed) write(msg server.ClientMessage) error {
	f.writeLock.Lock()
	defer f.writeLock.Unlock()

	msg.Timestamp = server.Now()
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteJSON(msg)
}

// request sends msg and waits for the hub's answer.
func (f *feed) request(ctx context.Context, msg server.ClientMessage) (*server.Response, error) {
	ch := make(chan *server.Response, 1)

	f.mu.Lock()
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return nil, err
	}
	f.nextId++
	msg.Id = f.nextId
	f.pending[msg.Id] = ch
	f.mu.Unlock()

	if err := f.write(msg); err != nil {
		f.mu.Lock()
		delete(f.pending, msg.Id)
		f.mu.Unlock()
		return nil, fmt.Errorf("change feed write: %w", err)
	}

	select {
	case res := <-ch:
		return res, nil
	case <-f.done:
		return nil, errFeedClosed
	case <-ctx.Done():
		f.mu.Lock()
		delete(f.pending, msg.Id)
		f.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (f *feed) subscribe(ctx context.Context, roomCode, table string, fn func(types.RowChange)) (*subscription, error) {
	key := subKey{roomCode, table}

	f.mu.Lock()
	_, active := f.subs[key]
	f.mu.Unlock()

	if !active {
		res, err := f.request(ctx, server.ClientMessage{
			Subscribe: &server.Subscribe{RoomCode: roomCode, Table: table},
		})
		if err != nil {
			return nil, err
		}
		if res.ResponseCode != http.StatusOK {
			return nil, &StatusError{StatusCode: res.ResponseCode, Message: res.Error}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs[key] == nil {
		f.subs[key] = make(map[int]func(types.RowChange))
	}
	f.nextSub++
	f.subs[key][f.nextSub] = fn

	return &subscription{feed: f, key: key, id: f.nextSub}, nil
}

// unsubscribe removes one callback and releases the hub subscription when
// it was the last one for its table.
func (f *feed) unsubscribe(key subKey, id int) error {
	f.mu.Lock()
	fns, ok := f.subs[key]
	if !ok {
		f.mu.Unlock()
		return nil
	}
	delete(fns, id)
	last := len(fns) == 0
	if last {
		delete(f.subs, key)
	}
	f.mu.Unlock()

	if !last || f.closed() {
		return nil
	}

	return f.write(server.ClientMessage{
		Unsubscribe: &server.Unsubscribe{RoomCode: key.roomCode, Table: key.table},
	})
}

func (f *feed) shutdown(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return
	}
	f.err = err
	f.subs = make(map[subKey]map[int]func(types.RowChange))
	close(f.done)
}

func (f *feed) close() error {
	f.shutdown(errFeedClosed)

	f.writeLock.Lock()
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	f.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	f.writeLock.Unlock()

	return f.conn.Close()
}

type subscription struct {
	feed *feed
	key  subKey
	id   int
	once sync.Once
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.feed.unsubscribe(s.key, s.id)
	})
	return err
}
