package database

import (
	"github.com/stretchr/testify/mock"
)

type MockTripPlannerRepository struct {
	mock.Mock
}

func (m *MockTripPlannerRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockTripPlannerRepository) CreateProfile(params CreateProfileParams) (Profile, error) {
	args := m.Called(params)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockTripPlannerRepository) GetProfileById(id string) (Profile, error) {
	args := m.Called(id)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockTripPlannerRepository) GetProfileByEmail(email string) (Profile, error) {
	args := m.Called(email)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockTripPlannerRepository) RoomCodeExists(code string) (bool, error) {
	args := m.Called(code)
	return args.Bool(0), args.Error(1)
}
func (m *MockTripPlannerRepository) CreateRoom(params CreateRoomParams) (Room, Participant, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Get(1).(Participant), args.Error(2)
}
func (m *MockTripPlannerRepository) GetRoomByCode(code string) (Room, error) {
	args := m.Called(code)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockTripPlannerRepository) ListPublicRooms() ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockTripPlannerRepository) UpdateRoomSelection(params UpdateSelectionParams) (Room, Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Get(1).(Room), args.Error(2)
}
func (m *MockTripPlannerRepository) DeleteRoom(code string) (Room, error) {
	args := m.Called(code)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockTripPlannerRepository) AddParticipant(code, userId string, isController bool) (Participant, bool, error) {
	args := m.Called(code, userId, isController)
	return args.Get(0).(Participant), args.Bool(1), args.Error(2)
}
func (m *MockTripPlannerRepository) RemoveParticipant(code, userId string) (Participant, error) {
	args := m.Called(code, userId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockTripPlannerRepository) GetParticipant(code, userId string) (Participant, error) {
	args := m.Called(code, userId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockTripPlannerRepository) ListParticipants(code string) ([]Participant, error) {
	args := m.Called(code)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockTripPlannerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockTripPlannerRepository) GetMessages(code string) ([]Message, error) {
	args := m.Called(code)
	return args.Get(0).([]Message), args.Error(1)
}
