package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/cache"
	"github.com/npezzotti/go-tripplanner/internal/database"
	"github.com/npezzotti/go-tripplanner/internal/planner"
	"github.com/npezzotti/go-tripplanner/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// findCookie returns the named cookie set on the response, or nil.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func testRoom() database.Room {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return database.Room{
		Code:         "ABC123",
		Name:         "Lisbon crew",
		ControllerId: testUserId,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{name: "successful health check"},
		{name: "failed health check", mockErr: errors.New("db error")},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockTripPlannerRepository{}
			defer db.AssertExpectations(t)
			db.On("Ping").Return(tc.mockErr).Once()

			rr := do(t, newTestApp(t, db), http.MethodGet, "/healthz", nil, "")

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code)
			} else {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, "OK", rr.Body.String())
			}
		})
	}
}

func TestCreateRoomHandler(t *testing.T) {
	t.Run("retries taken codes", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)

		db.On("RoomCodeExists", mock.AnythingOfType("string")).Return(true, nil).Once()
		db.On("RoomCodeExists", mock.AnythingOfType("string")).Return(false, nil).Twice()
		db.On("CreateRoom", mock.MatchedBy(func(p database.CreateRoomParams) bool {
			return p.Name == "Lisbon crew" && p.ControllerId == testUserId && planner.ValidRoomCode(p.Code)
		})).Return(database.Room{}, database.Participant{}, database.ErrDuplicateRoomCode).Once()
		db.On("CreateRoom", mock.Anything).
			Return(testRoom(), database.Participant{RoomCode: "ABC123", UserId: testUserId, IsController: true}, nil).Once()

		pub := &recordingPublisher{}
		rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPost, "/api/rooms",
			CreateRoomRequest{Name: "  Lisbon crew "}, testUserId)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		room := decodeBody[types.Room](t, rr)
		assert.Equal(t, "ABC123", room.Code)
		assert.Equal(t, testUserId, room.ControllerId)

		changes := pub.published()
		require.Len(t, changes, 2)
		assert.Equal(t, types.TableRooms, changes[0].Table)
		assert.Equal(t, types.EventInsert, changes[0].EventType)
		assert.Equal(t, types.TableParticipants, changes[1].Table)

		var controller types.Participant
		require.NoError(t, json.Unmarshal(changes[1].New, &controller))
		assert.Equal(t, testUserId, controller.UserId)
		assert.True(t, controller.IsController)
	})

	t.Run("failed create leaves nothing behind", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)

		db.On("RoomCodeExists", mock.AnythingOfType("string")).Return(false, nil).Once()
		db.On("CreateRoom", mock.Anything).
			Return(database.Room{}, database.Participant{}, errors.New("insert participant: connection reset")).Once()

		pub := &recordingPublisher{}
		rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPost, "/api/rooms",
			CreateRoomRequest{Name: "Lisbon crew"}, testUserId)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Empty(t, pub.published())
		db.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("gives up after too many collisions", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("RoomCodeExists", mock.AnythingOfType("string")).Return(true, nil).Times(maxRoomCodeAttempts)

		rr := do(t, newTestApp(t, db), http.MethodPost, "/api/rooms", CreateRoomRequest{Name: "Lisbon crew"}, testUserId)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("name is required", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)

		rr := do(t, newTestApp(t, db), http.MethodPost, "/api/rooms", CreateRoomRequest{Name: "   "}, testUserId)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("requires auth", func(t *testing.T) {
		rr := do(t, newTestApp(t, &database.MockTripPlannerRepository{}), http.MethodPost, "/api/rooms", CreateRoomRequest{Name: "x"}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestGetRoomHandler(t *testing.T) {
	tcases := []struct {
		name       string
		query      string
		mockErr    error
		callsDb    bool
		wantStatus int
	}{
		{name: "found", query: "abc123", callsDb: true, wantStatus: http.StatusOK},
		{name: "missing", query: "ABC123", mockErr: sql.ErrNoRows, callsDb: true, wantStatus: http.StatusNotFound},
		{name: "storage error", query: "ABC123", mockErr: errors.New("boom"), callsDb: true, wantStatus: http.StatusInternalServerError},
		{name: "invalid code", query: "AB-1", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockTripPlannerRepository{}
			defer db.AssertExpectations(t)
			if tc.callsDb {
				db.On("GetRoomByCode", "ABC123").Return(testRoom(), tc.mockErr).Once()
			}

			rr := do(t, newTestApp(t, db), http.MethodGet, "/api/rooms?code="+tc.query, nil, testUserId)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestListPublicRoomsHandler(t *testing.T) {
	db := &database.MockTripPlannerRepository{}
	defer db.AssertExpectations(t)
	db.On("ListPublicRooms").Return([]database.Room(nil), nil).Once()

	rr := do(t, newTestApp(t, db), http.MethodGet, "/api/rooms/public", nil, testUserId)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestJoinRoomHandler(t *testing.T) {
	tcases := []struct {
		name        string
		created     bool
		wantChanges int
	}{
		{name: "first join publishes", created: true, wantChanges: 1},
		{name: "repeat join is silent", created: false, wantChanges: 0},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockTripPlannerRepository{}
			defer db.AssertExpectations(t)
			db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
			db.On("AddParticipant", "ABC123", otherUserId, false).
				Return(database.Participant{RoomCode: "ABC123", UserId: otherUserId}, tc.created, nil).Once()

			pub := &recordingPublisher{}
			rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPost, "/api/rooms/join",
				RoomCodeRequest{RoomCode: "abc123"}, otherUserId)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Len(t, pub.published(), tc.wantChanges)
		})
	}

	t.Run("unknown room", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ZZZ999").Return(database.Room{}, sql.ErrNoRows).Once()

		rr := do(t, newTestApp(t, db), http.MethodPost, "/api/rooms/join", RoomCodeRequest{RoomCode: "ZZZ999"}, otherUserId)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestLeaveRoomHandler(t *testing.T) {
	t.Run("controller leaving deletes the room", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
		db.On("DeleteRoom", "ABC123").Return(testRoom(), nil).Once()

		pub := &recordingPublisher{}
		rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPost, "/api/rooms/leave",
			RoomCodeRequest{RoomCode: "ABC123"}, testUserId)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		changes := pub.published()
		require.Len(t, changes, 1)
		assert.Equal(t, types.TableRooms, changes[0].Table)
		assert.Equal(t, types.EventDelete, changes[0].EventType)
		assert.NotEmpty(t, changes[0].Old)
		assert.Empty(t, changes[0].New)
	})

	t.Run("participant leaving", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
		db.On("RemoveParticipant", "ABC123", otherUserId).
			Return(database.Participant{RoomCode: "ABC123", UserId: otherUserId}, nil).Once()

		pub := &recordingPublisher{}
		rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPost, "/api/rooms/leave",
			RoomCodeRequest{RoomCode: "ABC123"}, otherUserId)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		changes := pub.published()
		require.Len(t, changes, 1)
		assert.Equal(t, types.TableParticipants, changes[0].Table)
		assert.Equal(t, types.EventDelete, changes[0].EventType)
	})

	t.Run("not a participant", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
		db.On("RemoveParticipant", "ABC123", otherUserId).Return(database.Participant{}, sql.ErrNoRows).Once()

		rr := do(t, newTestApp(t, db), http.MethodPost, "/api/rooms/leave", RoomCodeRequest{RoomCode: "ABC123"}, otherUserId)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDeleteRoomHandler(t *testing.T) {
	t.Run("only the controller", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()

		rr := do(t, newTestApp(t, db), http.MethodDelete, "/api/rooms?code=ABC123", nil, otherUserId)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("controller deletes", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
		db.On("DeleteRoom", "ABC123").Return(testRoom(), nil).Once()

		pub := &recordingPublisher{}
		rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodDelete, "/api/rooms?code=ABC123", nil, testUserId)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Len(t, pub.published(), 1)
	})
}

func TestUpdateSelectionHandler(t *testing.T) {
	tcases := []struct {
		name        string
		userId      string
		sel         types.Selection
		roomErr     error
		checksRoom  bool
		participant bool
		updates     bool
		wantStatus  int
	}{
		{
			name:       "country and coordinates together",
			userId:     testUserId,
			sel:        types.Selection{RoomCode: "ABC123", SelectedCountry: strPtr("Japan"), SelectedOpportunityLat: floatPtr(1), SelectedOpportunityLng: floatPtr(2)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unpaired coordinate",
			userId:     testUserId,
			sel:        types.Selection{RoomCode: "ABC123", SelectedOpportunityLat: floatPtr(1)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "coordinate out of range",
			userId:     testUserId,
			sel:        types.Selection{RoomCode: "ABC123", SelectedOpportunityLat: floatPtr(91), SelectedOpportunityLng: floatPtr(2)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ineligible country",
			userId:     testUserId,
			sel:        types.Selection{RoomCode: "ABC123", SelectedCountry: strPtr("Antarctica")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid room code",
			userId:     testUserId,
			sel:        types.Selection{RoomCode: "nope"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing room",
			userId:     testUserId,
			sel:        types.Selection{RoomCode: "ABC123"},
			roomErr:    sql.ErrNoRows,
			checksRoom: true,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "country from a participant",
			userId:     otherUserId,
			sel:        types.Selection{RoomCode: "ABC123", SelectedCountry: strPtr("Japan")},
			checksRoom: true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "opportunity from a stranger",
			userId:     otherUserId,
			sel:        types.Selection{RoomCode: "ABC123", SelectedOpportunityLat: floatPtr(35.6897), SelectedOpportunityLng: floatPtr(139.6997)},
			checksRoom: true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:        "opportunity from a participant",
			userId:      otherUserId,
			sel:         types.Selection{RoomCode: "ABC123", SelectedOpportunityLat: floatPtr(35.6897), SelectedOpportunityLng: floatPtr(139.6997)},
			checksRoom:  true,
			participant: true,
			updates:     true,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "country from the controller",
			userId:      testUserId,
			sel:         types.Selection{RoomCode: "abc123", SelectedCountry: strPtr("Japan")},
			checksRoom:  true,
			participant: true,
			updates:     true,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "clear from a participant",
			userId:      otherUserId,
			sel:         types.Selection{RoomCode: "ABC123"},
			checksRoom:  true,
			participant: true,
			updates:     true,
			wantStatus:  http.StatusOK,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockTripPlannerRepository{}
			defer db.AssertExpectations(t)

			old := testRoom()
			updated := testRoom()
			updated.SelectedCountry = tc.sel.SelectedCountry
			updated.SelectedOpportunityLat = tc.sel.SelectedOpportunityLat
			updated.SelectedOpportunityLng = tc.sel.SelectedOpportunityLng
			updated.PlanningStarted = true
			updated.UpdatedAt = old.UpdatedAt.Add(time.Second)

			if tc.checksRoom {
				db.On("GetRoomByCode", "ABC123").Return(old, tc.roomErr).Once()
			}
			if tc.checksRoom && tc.roomErr == nil && (tc.sel.SelectedCountry == nil || tc.userId == testUserId) {
				var participantErr error
				if !tc.participant {
					participantErr = sql.ErrNoRows
				}
				db.On("GetParticipant", "ABC123", tc.userId).Return(database.Participant{}, participantErr).Once()
			}
			if tc.updates {
				db.On("UpdateRoomSelection", mock.MatchedBy(func(p database.UpdateSelectionParams) bool {
					return p.Code == "ABC123" &&
						types.EqualString(p.SelectedCountry, tc.sel.SelectedCountry) &&
						types.EqualFloat(p.SelectedOpportunityLat, tc.sel.SelectedOpportunityLat) &&
						types.EqualFloat(p.SelectedOpportunityLng, tc.sel.SelectedOpportunityLng)
				})).Return(old, updated, nil).Once()
			}

			pub := &recordingPublisher{}
			rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPut, "/api/rooms/selection", tc.sel, tc.userId)
			assert.Equal(t, tc.wantStatus, rr.Code, rr.Body.String())

			if !tc.updates {
				assert.Empty(t, pub.published())
				return
			}

			room := decodeBody[types.Room](t, rr)
			assert.True(t, room.PlanningStarted)

			changes := pub.published()
			require.Len(t, changes, 1)
			assert.Equal(t, types.EventUpdate, changes[0].EventType)

			var published types.Room
			require.NoError(t, json.Unmarshal(changes[0].New, &published))
			assert.True(t, published.SameState(room))
			assert.True(t, types.EqualString(tc.sel.SelectedCountry, published.SelectedCountry))
		})
	}
}

func TestCreateMessageHandler(t *testing.T) {
	t.Run("empty message", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)

		rr := do(t, newTestApp(t, db), http.MethodPost, "/api/messages",
			CreateMessageRequest{RoomCode: "ABC123", Message: "   "}, otherUserId)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("participant posts", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
		db.On("GetParticipant", "ABC123", otherUserId).Return(database.Participant{}, nil).Once()
		db.On("CreateMessage", database.CreateMessageParams{RoomCode: "ABC123", UserId: otherUserId, Message: "how about Japan"}).
			Return(database.Message{Id: "m1", RoomCode: "ABC123", UserId: otherUserId, Message: "how about Japan"}, nil).Once()

		pub := &recordingPublisher{}
		rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPost, "/api/messages",
			CreateMessageRequest{RoomCode: "ABC123", Message: " how about Japan "}, otherUserId)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "m1", decodeBody[types.Message](t, rr).Id)

		changes := pub.published()
		require.Len(t, changes, 1)
		assert.Equal(t, types.TableMessages, changes[0].Table)
		assert.Equal(t, types.EventInsert, changes[0].EventType)
	})

	t.Run("publish failure still answers", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
		db.On("GetParticipant", "ABC123", otherUserId).Return(database.Participant{}, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(database.Message{Id: "m2"}, nil).Once()

		pub := &recordingPublisher{err: errors.New("hub gone")}
		rr := do(t, newTestApp(t, db, WithPublisher(pub)), http.MethodPost, "/api/messages",
			CreateMessageRequest{RoomCode: "ABC123", Message: "hi"}, otherUserId)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("non participant", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
		db.On("GetParticipant", "ABC123", otherUserId).Return(database.Participant{}, sql.ErrNoRows).Once()

		rr := do(t, newTestApp(t, db), http.MethodPost, "/api/messages",
			CreateMessageRequest{RoomCode: "ABC123", Message: "hi"}, otherUserId)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestGetMessagesHandler(t *testing.T) {
	db := &database.MockTripPlannerRepository{}
	defer db.AssertExpectations(t)
	db.On("GetRoomByCode", "ABC123").Return(testRoom(), nil).Once()
	db.On("GetParticipant", "ABC123", testUserId).Return(database.Participant{}, nil).Once()
	db.On("GetMessages", "ABC123").Return([]database.Message{
		{Id: "m1", RoomCode: "ABC123", UserId: testUserId, Message: "hi"},
		{Id: "m2", RoomCode: "ABC123", UserId: otherUserId, Message: "hello"},
	}, nil).Once()

	rr := do(t, newTestApp(t, db), http.MethodGet, "/api/messages?room_code=ABC123", nil, testUserId)

	require.Equal(t, http.StatusOK, rr.Code)
	messages := decodeBody[[]types.Message](t, rr)
	require.Len(t, messages, 2)
	assert.Equal(t, "m2", messages[1].Id)
}

func TestGetProfileHandler(t *testing.T) {
	t.Run("cache hit skips the database", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)

		pc := &cache.MockProfileCache{}
		defer pc.AssertExpectations(t)
		pc.On("GetProfile", mock.Anything, otherUserId).Return(types.Profile{Id: otherUserId, Username: "cached"}, true, nil).Once()

		rr := do(t, newTestApp(t, db, WithProfileCache(pc)), http.MethodGet, "/api/profiles?id="+otherUserId, nil, testUserId)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "cached", decodeBody[types.Profile](t, rr).Username)
	})

	t.Run("miss loads and stores the public profile", func(t *testing.T) {
		db := &database.MockTripPlannerRepository{}
		defer db.AssertExpectations(t)
		db.On("GetProfileById", otherUserId).Return(database.Profile{Id: otherUserId, Username: "planner", Email: "secret@example.com"}, nil).Once()

		pc := &cache.MockProfileCache{}
		defer pc.AssertExpectations(t)
		pc.On("GetProfile", mock.Anything, otherUserId).Return(types.Profile{}, false, errors.New("redis down")).Once()
		pc.On("SetProfile", mock.Anything, mock.MatchedBy(func(p types.Profile) bool {
			return p.Id == otherUserId && p.Email == ""
		})).Return(nil).Once()

		rr := do(t, newTestApp(t, db, WithProfileCache(pc)), http.MethodGet, "/api/profiles?id="+otherUserId, nil, testUserId)
		require.Equal(t, http.StatusOK, rr.Code)
		p := decodeBody[types.Profile](t, rr)
		assert.Equal(t, "planner", p.Username)
		assert.Empty(t, p.Email)
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := do(t, newTestApp(t, &database.MockTripPlannerRepository{}), http.MethodGet, "/api/profiles?id=42", nil, testUserId)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetOpportunitiesHandler(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opportunities.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default":[{"id":"d1","lat":1,"lng":2,"name":"x"}]}`), 0o644))

	app := newTestApp(t, &database.MockTripPlannerRepository{})
	app.opportunitiesPath = path

	rr := do(t, app, http.MethodGet, "/api/opportunities", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	catalog, err := planner.LoadCatalog(nil, rr.Body)
	require.NoError(t, err)
	assert.Len(t, catalog.All(), 1)

	app.opportunitiesPath = filepath.Join(dir, "missing.json")
	rr = do(t, app, http.MethodGet, "/api/opportunities", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeWsWithoutHub(t *testing.T) {
	rr := do(t, newTestApp(t, &database.MockTripPlannerRepository{}), http.MethodGet, "/ws", nil, testUserId)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
