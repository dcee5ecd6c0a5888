package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

// fakeBackend is an in-memory shared storage with a synchronous change feed.
type fakeBackend struct {
	mu       sync.Mutex
	rooms    map[string]types.Room
	messages map[string][]types.Message
	profiles map[string]types.Profile
	subs     map[int]*fakeSub
	nextSub  int
	clock    time.Time
	userId   string

	sendErr     error
	fetchErr    error
	profileHits map[string]int
}

type fakeSub struct {
	backend  *fakeBackend
	id       int
	roomCode string
	table    string
	fn       func(types.RowChange)
}

func (s *fakeSub) Unsubscribe() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.subs, s.id)
	return nil
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rooms:       make(map[string]types.Room),
		messages:    make(map[string][]types.Message),
		profiles:    make(map[string]types.Profile),
		subs:        make(map[int]*fakeSub),
		clock:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		profileHits: make(map[string]int),
	}
}

// as returns a view of the backend acting as userId. The storage is shared.
func (b *fakeBackend) as(userId string) *fakeUser {
	return &fakeUser{fakeBackend: b, userId: userId}
}

type fakeUser struct {
	*fakeBackend
	userId string
}

func (u *fakeUser) SendMessage(ctx context.Context, roomCode, text string) (types.Message, error) {
	return u.fakeBackend.sendMessageAs(u.userId, roomCode, text)
}

func (b *fakeBackend) tick() time.Time {
	b.clock = b.clock.Add(time.Second)
	return b.clock
}

func (b *fakeBackend) addRoom(code, controller string) types.Room {
	b.mu.Lock()
	now := b.tick()
	room := types.Room{Code: code, Name: "Trip " + code, ControllerId: controller, CreatedAt: now, UpdatedAt: now}
	b.rooms[code] = room
	b.mu.Unlock()
	return room
}

func (b *fakeBackend) Subscribe(ctx context.Context, roomCode, table string, fn func(types.RowChange)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	sub := &fakeSub{backend: b, id: b.nextSub, roomCode: roomCode, table: table, fn: fn}
	b.subs[sub.id] = sub
	return sub, nil
}

func (b *fakeBackend) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// publish delivers change to matching subscribers outside the lock.
func (b *fakeBackend) publish(change types.RowChange) {
	b.mu.Lock()
	var targets []func(types.RowChange)
	for _, s := range b.subs {
		if s.roomCode == change.RoomCode && s.table == change.Table {
			targets = append(targets, s.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(change)
	}
}

// broadcast delivers change to every subscriber regardless of room.
func (b *fakeBackend) broadcast(change types.RowChange) {
	b.mu.Lock()
	var targets []func(types.RowChange)
	for _, s := range b.subs {
		targets = append(targets, s.fn)
	}
	b.mu.Unlock()

	for _, fn := range targets {
		fn(change)
	}
}

func (b *fakeBackend) GetRoom(ctx context.Context, code string) (types.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return types.Room{}, b.fetchErr
	}
	room, ok := b.rooms[code]
	if !ok {
		return types.Room{}, ErrNotFound
	}
	return room, nil
}

func (b *fakeBackend) UpdateSelection(ctx context.Context, sel types.Selection) (types.Room, error) {
	if !sel.Valid() {
		return types.Room{}, errors.New("invalid selection")
	}

	b.mu.Lock()
	old, ok := b.rooms[sel.RoomCode]
	if !ok {
		b.mu.Unlock()
		return types.Room{}, ErrNotFound
	}
	room := old
	room.SelectedCountry = sel.SelectedCountry
	room.SelectedOpportunityLat = sel.SelectedOpportunityLat
	room.SelectedOpportunityLng = sel.SelectedOpportunityLng
	room.PlanningStarted = true
	room.UpdatedAt = b.tick()
	b.rooms[room.Code] = room
	b.mu.Unlock()

	change, err := types.NewRowChange(types.TableRooms, types.EventUpdate, room.Code, old, room)
	if err != nil {
		return types.Room{}, err
	}
	b.publish(change)
	return room, nil
}

func (b *fakeBackend) deleteRoom(code string) {
	b.mu.Lock()
	old := b.rooms[code]
	delete(b.rooms, code)
	b.mu.Unlock()

	change, _ := types.NewRowChange(types.TableRooms, types.EventDelete, code, old, nil)
	b.publish(change)
}

func (b *fakeBackend) GetMessages(ctx context.Context, roomCode string) ([]types.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	out := make([]types.Message, len(b.messages[roomCode]))
	copy(out, b.messages[roomCode])
	return out, nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, roomCode, text string) (types.Message, error) {
	return b.sendMessageAs(b.userId, roomCode, text)
}

func (b *fakeBackend) sendMessageAs(userId, roomCode, text string) (types.Message, error) {
	b.mu.Lock()
	if b.sendErr != nil {
		err := b.sendErr
		b.mu.Unlock()
		return types.Message{}, err
	}
	msg := types.Message{
		Id:        fmt.Sprintf("msg-%03d", len(b.messages[roomCode])+1),
		RoomCode:  roomCode,
		UserId:    userId,
		Message:   text,
		CreatedAt: b.tick(),
	}
	b.messages[roomCode] = append(b.messages[roomCode], msg)
	b.mu.Unlock()

	change, _ := types.NewRowChange(types.TableMessages, types.EventInsert, roomCode, nil, msg)
	b.publish(change)
	return msg, nil
}

// storeMessage inserts a row without publishing, as if the push was lost.
func (b *fakeBackend) storeMessage(msg types.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[msg.RoomCode] = append(b.messages[msg.RoomCode], msg)
}

func (b *fakeBackend) GetProfile(ctx context.Context, userId string) (types.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileHits[userId]++
	p, ok := b.profiles[userId]
	if !ok {
		return types.Profile{}, ErrNotFound
	}
	return p, nil
}
