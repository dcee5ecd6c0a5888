package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-tripplanner/internal/database"
	"github.com/npezzotti/go-tripplanner/internal/planner"
	"github.com/npezzotti/go-tripplanner/internal/server"
	"github.com/npezzotti/go-tripplanner/internal/types"
)

const (
	maxRoomCodeAttempts = 10
	maxMessageLength    = 2000
	maxRoomNameLength   = 100
)

type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

type RoomCodeRequest struct {
	RoomCode string `json:"room_code"`
}

type CreateMessageRequest struct {
	RoomCode string `json:"room_code"`
	Message  string `json:"message"`
}

func (s *TripPlannerApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *TripPlannerApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Println(errResp.Error())
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func roomFromDb(r database.Room) types.Room {
	return types.Room{
		Code:                   r.Code,
		Name:                   r.Name,
		Description:            r.Description,
		IsPublic:               r.IsPublic,
		PlanningStarted:        r.PlanningStarted,
		ControllerId:           r.ControllerId,
		SelectedCountry:        r.SelectedCountry,
		SelectedOpportunityLat: r.SelectedOpportunityLat,
		SelectedOpportunityLng: r.SelectedOpportunityLng,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

func participantFromDb(p database.Participant) types.Participant {
	return types.Participant{
		RoomCode:     p.RoomCode,
		UserId:       p.UserId,
		IsController: p.IsController,
		JoinedAt:     p.JoinedAt,
	}
}

func messageFromDb(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		RoomCode:  m.RoomCode,
		UserId:    m.UserId,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

// roomCodeParam reads and normalizes a room code from the query string.
func roomCodeParam(r *http.Request, key string) (string, bool) {
	code := planner.NormalizeRoomCode(r.URL.Query().Get(key))
	return code, planner.ValidRoomCode(code)
}

// publish sends a row change after a committed write. Delivery failures are
// logged; polling clients recover from them.
func (s *TripPlannerApp) publish(ctx context.Context, table string, event types.EventType, roomCode string, oldRow, newRow any) {
	if s.publisher == nil {
		return
	}

	change, err := types.NewRowChange(table, event, roomCode, oldRow, newRow)
	if err != nil {
		s.log.Printf("build %s change: %v", table, err)
		return
	}

	if err := s.publisher.Publish(ctx, change); err != nil {
		s.log.Printf("publish %s %s change for room %q: %v", event, table, roomCode, err)
	}
}

func (s *TripPlannerApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *TripPlannerApp) getProfile(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, NewValidationError("id must be a uuid"))
		return
	}

	cached, ok, err := s.profiles.GetProfile(r.Context(), id)
	if err != nil {
		s.log.Println("profile cache get:", err)
	}
	if ok {
		s.writeJson(w, http.StatusOK, cached)
		return
	}

	p, err := s.db.GetProfileById(id)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	public := profileFromDb(p)
	public.Email = ""

	if err := s.profiles.SetProfile(r.Context(), public); err != nil {
		s.log.Println("profile cache set:", err)
	}

	s.writeJson(w, http.StatusOK, public)
}

// createRoomWithCode allocates an unused room code, checking before each insert
// and retrying when the insert still collides.
func (s *TripPlannerApp) createRoomWithCode(params database.CreateRoomParams) (database.Room, database.Participant, error) {
	for i := 0; i < maxRoomCodeAttempts; i++ {
		code, err := planner.GenerateRoomCode()
		if err != nil {
			return database.Room{}, database.Participant{}, err
		}

		exists, err := s.db.RoomCodeExists(code)
		if err != nil {
			return database.Room{}, database.Participant{}, err
		}
		if exists {
			continue
		}

		params.Code = code
		room, participant, err := s.db.CreateRoom(params)
		if errors.Is(err, database.ErrDuplicateRoomCode) {
			continue
		}
		return room, participant, err
	}

	return database.Room{}, database.Participant{}, errors.New("no free room code")
}

func (s *TripPlannerApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || utf8.RuneCountInString(req.Name) > maxRoomNameLength {
		s.writeError(w, NewValidationError("room name is required"))
		return
	}

	userId, _ := UserId(r.Context())

	room, participant, err := s.createRoomWithCode(database.CreateRoomParams{
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		IsPublic:     req.IsPublic,
		ControllerId: userId,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	created := roomFromDb(room)
	s.publish(r.Context(), types.TableRooms, types.EventInsert, room.Code, nil, created)
	s.publish(r.Context(), types.TableParticipants, types.EventInsert, room.Code, nil, participantFromDb(participant))

	s.writeJson(w, http.StatusCreated, created)
}

func (s *TripPlannerApp) getRoom(w http.ResponseWriter, r *http.Request) {
	code, ok := roomCodeParam(r, "code")
	if !ok {
		s.writeError(w, NewValidationError("invalid room code"))
		return
	}

	room, err := s.db.GetRoomByCode(code)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	s.writeJson(w, http.StatusOK, roomFromDb(room))
}

func (s *TripPlannerApp) listPublicRooms(w http.ResponseWriter, _ *http.Request) {
	rooms, err := s.db.ListPublicRooms()
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	res := make([]types.Room, 0, len(rooms))
	for _, room := range rooms {
		res = append(res, roomFromDb(room))
	}

	s.writeJson(w, http.StatusOK, res)
}

func (s *TripPlannerApp) decodeRoomCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req RoomCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return "", false
	}

	code := planner.NormalizeRoomCode(req.RoomCode)
	if !planner.ValidRoomCode(code) {
		s.writeError(w, NewValidationError("invalid room code"))
		return "", false
	}

	return code, true
}

func (s *TripPlannerApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	code, ok := s.decodeRoomCode(w, r)
	if !ok {
		return
	}

	userId, _ := UserId(r.Context())

	room, err := s.db.GetRoomByCode(code)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	participant, created, err := s.db.AddParticipant(code, userId, room.ControllerId == userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	p := participantFromDb(participant)
	if created {
		s.publish(r.Context(), types.TableParticipants, types.EventInsert, code, nil, p)
	}

	s.writeJson(w, http.StatusOK, p)
}

// leaveRoom removes the caller from the room. When the controller leaves
// the room is deleted for everyone.
func (s *TripPlannerApp) leaveRoom(w http.ResponseWriter, r *http.Request) {
	code, ok := s.decodeRoomCode(w, r)
	if !ok {
		return
	}

	userId, _ := UserId(r.Context())

	room, err := s.db.GetRoomByCode(code)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	if room.ControllerId == userId {
		s.removeRoom(w, r, code)
		return
	}

	participant, err := s.db.RemoveParticipant(code, userId)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	s.publish(r.Context(), types.TableParticipants, types.EventDelete, code, participantFromDb(participant), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *TripPlannerApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	code, ok := roomCodeParam(r, "code")
	if !ok {
		s.writeError(w, NewValidationError("invalid room code"))
		return
	}

	userId, _ := UserId(r.Context())

	room, err := s.db.GetRoomByCode(code)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	if room.ControllerId != userId {
		s.writeError(w, NewForbiddenError())
		return
	}

	s.removeRoom(w, r, code)
}

func (s *TripPlannerApp) removeRoom(w http.ResponseWriter, r *http.Request, code string) {
	deleted, err := s.db.DeleteRoom(code)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	s.publish(r.Context(), types.TableRooms, types.EventDelete, code, roomFromDb(deleted), nil)
	w.WriteHeader(http.StatusNoContent)
}

func validCoordinate(v *float64, limit float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0) && math.Abs(*v) <= limit)
}

// validateSelection checks a selection write without touching storage.
func validateSelection(sel *types.Selection) *ApiError {
	sel.RoomCode = planner.NormalizeRoomCode(sel.RoomCode)
	if !planner.ValidRoomCode(sel.RoomCode) {
		return NewValidationError("invalid room code")
	}
	if !sel.Valid() {
		return NewValidationError("a selection is either a country or a coordinate pair")
	}
	if !validCoordinate(sel.SelectedOpportunityLat, 90) || !validCoordinate(sel.SelectedOpportunityLng, 180) {
		return NewValidationError("coordinates out of range")
	}
	if sel.SelectedCountry != nil && !planner.IsEligibleCountry(*sel.SelectedCountry) {
		return NewValidationError("country cannot be selected")
	}
	return nil
}

// updateSelection writes the three focus columns of a room at once. Any
// participant may focus an opportunity or clear the focus; only the
// controller may focus a country.
func (s *TripPlannerApp) updateSelection(w http.ResponseWriter, r *http.Request) {
	var sel types.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if errResp := validateSelection(&sel); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	userId, _ := UserId(r.Context())

	room, err := s.db.GetRoomByCode(sel.RoomCode)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	if sel.SelectedCountry != nil && room.ControllerId != userId {
		s.writeError(w, NewForbiddenError())
		return
	}

	if _, err := s.db.GetParticipant(sel.RoomCode, userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewForbiddenError())
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	old, updated, err := s.db.UpdateRoomSelection(database.UpdateSelectionParams{
		Code:                   sel.RoomCode,
		SelectedCountry:        sel.SelectedCountry,
		SelectedOpportunityLat: sel.SelectedOpportunityLat,
		SelectedOpportunityLng: sel.SelectedOpportunityLng,
	})
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	res := roomFromDb(updated)
	s.publish(r.Context(), types.TableRooms, types.EventUpdate, sel.RoomCode, roomFromDb(old), res)

	s.writeJson(w, http.StatusOK, res)
}

// requireParticipant answers 404 for a missing room and 403 for a caller
// who has not joined it.
func (s *TripPlannerApp) requireParticipant(w http.ResponseWriter, code, userId string) bool {
	if _, err := s.db.GetRoomByCode(code); err != nil {
		s.writeError(w, storageError(err))
		return false
	}

	if _, err := s.db.GetParticipant(code, userId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewForbiddenError())
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return false
	}

	return true
}

func (s *TripPlannerApp) getMessages(w http.ResponseWriter, r *http.Request) {
	code, ok := roomCodeParam(r, "room_code")
	if !ok {
		s.writeError(w, NewValidationError("invalid room code"))
		return
	}

	userId, _ := UserId(r.Context())
	if !s.requireParticipant(w, code, userId) {
		return
	}

	messages, err := s.db.GetMessages(code)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	res := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		res = append(res, messageFromDb(m))
	}

	s.writeJson(w, http.StatusOK, res)
}

func (s *TripPlannerApp) createMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	code := planner.NormalizeRoomCode(req.RoomCode)
	if !planner.ValidRoomCode(code) {
		s.writeError(w, NewValidationError("invalid room code"))
		return
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		s.writeError(w, NewValidationError("message is empty"))
		return
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		s.writeError(w, NewValidationError("message is too long"))
		return
	}

	userId, _ := UserId(r.Context())
	if !s.requireParticipant(w, code, userId) {
		return
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		RoomCode: code,
		UserId:   userId,
		Message:  text,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	res := messageFromDb(msg)
	s.publish(r.Context(), types.TableMessages, types.EventInsert, code, nil, res)

	s.writeJson(w, http.StatusCreated, res)
}

func (s *TripPlannerApp) getOpportunities(w http.ResponseWriter, r *http.Request) {
	if s.opportunitiesPath == "" {
		s.writeError(w, NewNotFoundError())
		return
	}

	f, err := os.Open(s.opportunitiesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, NewNotFoundError())
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *TripPlannerApp) serveWs(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeError(w, NewServiceUnavailableError())
		return
	}

	userId, _ := UserId(r.Context())

	p, err := s.db.GetProfileById(userId)
	if err != nil {
		s.writeError(w, storageError(err))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(profileFromDb(p), conn, s.hub, s.log)

	s.hub.RegisterClient(client)
	go client.Write()
	go client.Read()
}
