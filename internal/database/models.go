package database

import "time"

type Profile struct {
	Id           string
	Username     string
	Email        string
	PasswordHash string
	IsCharity    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Code                   string
	Name                   string
	Description            string
	IsPublic               bool
	PlanningStarted        bool
	ControllerId           string
	SelectedCountry        *string
	SelectedOpportunityLat *float64
	SelectedOpportunityLng *float64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type Participant struct {
	RoomCode     string
	UserId       string
	IsController bool
	JoinedAt     time.Time
}

type Message struct {
	Id        string
	RoomCode  string
	UserId    string
	Message   string
	CreatedAt time.Time
}

type CreateProfileParams struct {
	Username     string
	Email        string
	PasswordHash string
	IsCharity    bool
}

type CreateRoomParams struct {
	Code         string
	Name         string
	Description  string
	IsPublic     bool
	ControllerId string
}

type UpdateSelectionParams struct {
	Code                   string
	SelectedCountry        *string
	SelectedOpportunityLat *float64
	SelectedOpportunityLng *float64
}

type CreateMessageParams struct {
	RoomCode string
	UserId   string
	Message  string
}
