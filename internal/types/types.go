package types

import (
	"encoding/json"
	"time"
)

type Profile struct {
	Id        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsCharity bool      `json:"is_charity"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Room is the shared row every participant of a planning session observes.
// At most one of SelectedCountry and the opportunity coordinate pair is set.
type Room struct {
	Code                   string    `json:"code"`
	Name                   string    `json:"name"`
	Description            string    `json:"description"`
	IsPublic               bool      `json:"is_public"`
	PlanningStarted        bool      `json:"planning_started"`
	ControllerId           string    `json:"controller_id"`
	SelectedCountry        *string   `json:"selected_country"`
	SelectedOpportunityLat *float64  `json:"selected_opportunity_lat"`
	SelectedOpportunityLng *float64  `json:"selected_opportunity_lng"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// SameState reports whether both rows carry identical content.
func (r Room) SameState(o Room) bool {
	return r.Code == o.Code &&
		r.Name == o.Name &&
		r.Description == o.Description &&
		r.IsPublic == o.IsPublic &&
		r.PlanningStarted == o.PlanningStarted &&
		r.ControllerId == o.ControllerId &&
		EqualString(r.SelectedCountry, o.SelectedCountry) &&
		EqualFloat(r.SelectedOpportunityLat, o.SelectedOpportunityLat) &&
		EqualFloat(r.SelectedOpportunityLng, o.SelectedOpportunityLng) &&
		r.UpdatedAt.Equal(o.UpdatedAt)
}

type Participant struct {
	RoomCode     string    `json:"room_code"`
	UserId       string    `json:"user_id"`
	IsController bool      `json:"is_controller"`
	JoinedAt     time.Time `json:"joined_at"`
}

type Message struct {
	Id        string    `json:"id"`
	RoomCode  string    `json:"room_code"`
	UserId    string    `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Selection is the focus write applied to a room in a single update.
type Selection struct {
	RoomCode               string   `json:"room_code"`
	SelectedCountry        *string  `json:"selected_country"`
	SelectedOpportunityLat *float64 `json:"selected_opportunity_lat"`
	SelectedOpportunityLng *float64 `json:"selected_opportunity_lng"`
}

// Valid reports whether the selection keeps the room invariant: coordinates
// are paired and never coexist with a country.
func (s Selection) Valid() bool {
	if (s.SelectedOpportunityLat == nil) != (s.SelectedOpportunityLng == nil) {
		return false
	}
	return s.SelectedCountry == nil || s.SelectedOpportunityLat == nil
}

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

const (
	TableRooms        = "rooms"
	TableParticipants = "room_participants"
	TableMessages     = "messages"
)

// RowChange is a row-level change notification scoped to one room.
type RowChange struct {
	Table     string          `json:"table"`
	EventType EventType       `json:"event_type"`
	RoomCode  string          `json:"room_code"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRowChange marshals the old and new row images into a change event.
func NewRowChange(table string, eventType EventType, roomCode string, oldRow, newRow any) (RowChange, error) {
	change := RowChange{
		Table:     table,
		EventType: eventType,
		RoomCode:  roomCode,
		Timestamp: time.Now().UTC(),
	}

	if oldRow != nil {
		b, err := json.Marshal(oldRow)
		if err != nil {
			return RowChange{}, err
		}
		change.Old = b
	}

	if newRow != nil {
		b, err := json.Marshal(newRow)
		if err != nil {
			return RowChange{}, err
		}
		change.New = b
	}

	return change, nil
}

func EqualString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func EqualFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
