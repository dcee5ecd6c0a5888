package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/testutil"
	"github.com/npezzotti/go-tripplanner/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPoll = 10 * time.Millisecond

type roomSpy struct {
	mu        sync.Mutex
	snapshots []types.Room
	changes   []types.RowChange
}

func (s *roomSpy) snapshot(r types.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, r)
}

func (s *roomSpy) change(c types.RowChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, c)
}

func (s *roomSpy) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots), len(s.changes)
}

func TestOpenChannelFetchesSnapshot(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("ABC123", "u1")
	spy := &roomSpy{}

	ch, err := OpenChannel(context.Background(), "ABC123",
		RoomChannelOptions(backend, testutil.TestLogger(t), time.Hour), spy.snapshot, spy.change)
	require.NoError(t, err)
	defer ch.Close()

	snaps, changes := spy.counts()
	assert.Equal(t, 1, snaps)
	assert.Equal(t, 0, changes)
	assert.Equal(t, "ABC123", ch.Last().Code)
	assert.Equal(t, 1, backend.subscriberCount())
}

func TestOpenChannelNotFound(t *testing.T) {
	backend := newFakeBackend()

	_, err := OpenChannel(context.Background(), "ZZZ999",
		RoomChannelOptions(backend, testutil.TestLogger(t), time.Hour), nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, backend.subscriberCount())
}

func TestChannelPollFiresOnlyOnChange(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("ABC123", "u1")
	spy := &roomSpy{}

	ch, err := OpenChannel(context.Background(), "ABC123",
		RoomChannelOptions(backend, testutil.TestLogger(t), testPoll), spy.snapshot, nil)
	require.NoError(t, err)
	defer ch.Close()

	time.Sleep(5 * testPoll)
	snaps, _ := spy.counts()
	assert.Equal(t, 1, snaps)

	// change the row behind the feed's back
	backend.mu.Lock()
	room := backend.rooms["ABC123"]
	room.SelectedCountry = strPtr("Japan")
	room.UpdatedAt = backend.tick()
	backend.rooms["ABC123"] = room
	backend.mu.Unlock()

	assert.Eventually(t, func() bool {
		n, _ := spy.counts()
		return n == 2
	}, time.Second, testPoll)

	time.Sleep(5 * testPoll)
	snaps, _ = spy.counts()
	assert.Equal(t, 2, snaps)
}

func TestChannelPushEchoDoesNotRefireOnPoll(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("ABC123", "u1")
	spy := &roomSpy{}

	ch, err := OpenChannel(context.Background(), "ABC123",
		RoomChannelOptions(backend, testutil.TestLogger(t), testPoll), spy.snapshot, spy.change)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send(context.Background(), CountryFocus("Japan").Selection("ABC123")))

	time.Sleep(5 * testPoll)
	snaps, changes := spy.counts()
	assert.Equal(t, 1, snaps)
	assert.Equal(t, 1, changes)
	assert.Equal(t, "Japan", *ch.Last().SelectedCountry)
}

func TestChannelFetchErrorKeepsCache(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("ABC123", "u1")
	spy := &roomSpy{}

	ch, err := OpenChannel(context.Background(), "ABC123",
		RoomChannelOptions(backend, testutil.TestLogger(t), testPoll), spy.snapshot, nil)
	require.NoError(t, err)
	defer ch.Close()

	backend.mu.Lock()
	backend.fetchErr = errors.New("timeout")
	backend.mu.Unlock()

	time.Sleep(5 * testPoll)
	snaps, _ := spy.counts()
	assert.Equal(t, 1, snaps)
	assert.Equal(t, "ABC123", ch.Last().Code)
}

func TestChannelDropsOtherRooms(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("ABC123", "u1")
	other := backend.addRoom("XYZ789", "u2")
	spy := &roomSpy{}

	ch, err := OpenChannel(context.Background(), "ABC123",
		RoomChannelOptions(backend, testutil.TestLogger(t), time.Hour), spy.snapshot, spy.change)
	require.NoError(t, err)
	defer ch.Close()

	change, err := types.NewRowChange(types.TableRooms, types.EventUpdate, "XYZ789", nil, other)
	require.NoError(t, err)
	backend.broadcast(change)

	_, changes := spy.counts()
	assert.Equal(t, 0, changes)
	assert.Equal(t, "ABC123", ch.Last().Code)
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	backend.addRoom("ABC123", "u1")
	var calls atomic.Int32

	ch, err := OpenChannel(context.Background(), "ABC123",
		RoomChannelOptions(backend, testutil.TestLogger(t), testPoll),
		func(types.Room) { calls.Add(1) },
		func(types.RowChange) { calls.Add(1) })
	require.NoError(t, err)

	ch.Close()
	ch.Close()
	assert.Equal(t, 0, backend.subscriberCount())

	before := calls.Load()
	_, err = backend.UpdateSelection(context.Background(), CountryFocus("Japan").Selection("ABC123"))
	require.NoError(t, err)
	time.Sleep(5 * testPoll)

	assert.Equal(t, before, calls.Load())
	assert.ErrorIs(t, ch.Send(context.Background(), NoFocus().Selection("ABC123")), ErrClosed)
}

func TestMessageChannelFold(t *testing.T) {
	base := []types.Message{{Id: "m1"}}

	insert, err := types.NewRowChange(types.TableMessages, types.EventInsert, "ABC123", nil, types.Message{Id: "m2"})
	require.NoError(t, err)
	dup, err := types.NewRowChange(types.TableMessages, types.EventInsert, "ABC123", nil, types.Message{Id: "m1"})
	require.NoError(t, err)

	assert.Len(t, foldMessage(base, insert), 2)
	assert.Len(t, foldMessage(base, dup), 1)
	assert.Len(t, base, 1)
}

func TestRoomFoldKeepsNewerRow(t *testing.T) {
	now := time.Now()
	current := types.Room{Code: "ABC123", SelectedCountry: strPtr("Peru"), UpdatedAt: now}

	stale, err := types.NewRowChange(types.TableRooms, types.EventUpdate, "ABC123", nil,
		types.Room{Code: "ABC123", SelectedCountry: strPtr("Japan"), UpdatedAt: now.Add(-time.Second)})
	require.NoError(t, err)
	fresh, err := types.NewRowChange(types.TableRooms, types.EventUpdate, "ABC123", nil,
		types.Room{Code: "ABC123", UpdatedAt: now.Add(time.Second)})
	require.NoError(t, err)

	assert.Equal(t, "Peru", *foldRoom(current, stale).SelectedCountry)
	assert.Nil(t, foldRoom(current, fresh).SelectedCountry)
	assert.False(t, roomChanged(current, types.Room{Code: "ABC123", UpdatedAt: now.Add(-time.Second)}))
	assert.False(t, roomChanged(current, current))
}
