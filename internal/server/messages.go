package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Subscribe   *Subscribe   `json:"subscribe,omitempty"`
	Unsubscribe *Unsubscribe `json:"unsubscribe,omitempty"`
	UserId      string       `json:"-"`
	client      *Client      `json:"-"`
}

// Subscribe asks for row changes of one table of a room.
type Subscribe struct {
	RoomCode string `json:"room_code"`
	Table    string `json:"table"`
}

// Unsubscribe drops a table subscription. An empty table drops every
// subscription the client holds on the room.
type Unsubscribe struct {
	RoomCode string `json:"room_code"`
	Table    string `json:"table,omitempty"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response        `json:"response,omitempty"`
	Change       *types.RowChange `json:"change,omitempty"`
	Notification *Notification    `json:"notification,omitempty"`
	SkipClient   *Client          `json:"-"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Notification struct {
	RoomDeleted *RoomDeleted `json:"room_deleted,omitempty"`
}

type RoomDeleted struct {
	RoomCode string `json:"room_code"`
}

func newResponse(id, code int, errText string, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errText,
			Data:         data,
		},
	}
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return newResponse(id, http.StatusOK, "", data)
}

func ErrRoomNotFound(id int) *ServerMessage {
	return newResponse(id, http.StatusNotFound, "room not found", nil)
}

func ErrNotParticipant(id int) *ServerMessage {
	return newResponse(id, http.StatusForbidden, "not a participant of this room", nil)
}

func ErrInternalError(id int) *ServerMessage {
	return newResponse(id, http.StatusInternalServerError, "internal server error", nil)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return newResponse(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := newResponse(0, http.StatusBadRequest, "invalid message format", nil)
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ChangeMessage(change types.RowChange) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Change:      &change,
	}
}

func RoomDeletedMessage(code string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			RoomDeleted: &RoomDeleted{RoomCode: code},
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

func validTable(table string) bool {
	switch table {
	case types.TableRooms, types.TableMessages, types.TableParticipants:
		return true
	default:
		return false
	}
}
