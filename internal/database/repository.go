package database

import "errors"

// ErrDuplicateRoomCode is returned by CreateRoom when the code is taken.
var ErrDuplicateRoomCode = errors.New("room code already exists")

// ErrDuplicateEmail is returned by CreateProfile when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

type TripPlannerRepository interface {
	Ping() error
	CreateProfile(params CreateProfileParams) (Profile, error)
	GetProfileById(id string) (Profile, error)
	GetProfileByEmail(email string) (Profile, error)
	RoomCodeExists(code string) (bool, error)
	CreateRoom(params CreateRoomParams) (Room, Participant, error)
	GetRoomByCode(code string) (Room, error)
	ListPublicRooms() ([]Room, error)
	UpdateRoomSelection(params UpdateSelectionParams) (Room, Room, error)
	DeleteRoom(code string) (Room, error)
	AddParticipant(code, userId string, isController bool) (Participant, bool, error)
	RemoveParticipant(code, userId string) (Participant, error)
	GetParticipant(code, userId string) (Participant, error)
	ListParticipants(code string) ([]Participant, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessages(code string) ([]Message, error)
}
