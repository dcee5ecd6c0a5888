package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	roomColumns = "code, name, description, is_public, planning_started, controller_id, " +
		"selected_country, selected_opportunity_lat, selected_opportunity_lng, created_at, updated_at"
	createParticipantQuery = "INSERT INTO room_participants (room_code, user_id, is_controller, joined_at) " +
		"VALUES ($1, $2, $3, $4) ON CONFLICT (room_code, user_id) DO NOTHING " +
		"RETURNING room_code, user_id, is_controller, joined_at"

	// Room timestamps come from the database clock and never move backwards,
	// so the newest write always carries the largest updated_at.
	nextRoomUpdatedAt = "GREATEST(now(), rooms.updated_at + interval '1 microsecond')"

	createRoomQuery = "INSERT INTO rooms (code, name, description, is_public, controller_id, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $5, now(), now()) RETURNING " + roomColumns
	updateSelectionQuery = "UPDATE rooms SET selected_country = $2, selected_opportunity_lat = $3, " +
		"selected_opportunity_lng = $4, planning_started = TRUE, updated_at = " + nextRoomUpdatedAt +
		" WHERE code = $1 RETURNING " + roomColumns
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (Room, error) {
	var room Room
	err := row.Scan(
		&room.Code,
		&room.Name,
		&room.Description,
		&room.IsPublic,
		&room.PlanningStarted,
		&room.ControllerId,
		&room.SelectedCountry,
		&room.SelectedOpportunityLat,
		&room.SelectedOpportunityLng,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	return room, err
}

func (db *PgTripPlannerRepository) CreateProfile(params CreateProfileParams) (Profile, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRow(
		"INSERT INTO profiles (id, username, email, password_hash, is_charity, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, username, email, is_charity, created_at, updated_at",
		uuid.NewString(),
		params.Username,
		params.Email,
		params.PasswordHash,
		params.IsCharity,
		now,
	)

	var p Profile
	err := res.Scan(
		&p.Id,
		&p.Username,
		&p.Email,
		&p.IsCharity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return Profile{}, ErrDuplicateEmail
	}

	return p, err
}

func (db *PgTripPlannerRepository) GetProfileById(id string) (Profile, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, is_charity, created_at, updated_at FROM profiles "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var p Profile
	err := row.Scan(
		&p.Id,
		&p.Username,
		&p.Email,
		&p.IsCharity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}

func (db *PgTripPlannerRepository) GetProfileByEmail(email string) (Profile, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, is_charity, created_at, updated_at FROM profiles "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var p Profile
	err := row.Scan(
		&p.Id,
		&p.Username,
		&p.Email,
		&p.PasswordHash,
		&p.IsCharity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}

func (db *PgTripPlannerRepository) RoomCodeExists(code string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow("SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)", code).Scan(&exists)
	return exists, err
}

// CreateRoom inserts the room and its controller participant in one
// transaction.
func (db *PgTripPlannerRepository) CreateRoom(params CreateRoomParams) (Room, Participant, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, Participant{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	room, err := scanRoom(tx.QueryRow(
		createRoomQuery,
		params.Code,
		params.Name,
		params.Description,
		params.IsPublic,
		params.ControllerId,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Room{}, Participant{}, ErrDuplicateRoomCode
		}
		return Room{}, Participant{}, err
	}

	var p Participant
	err = tx.QueryRow(createParticipantQuery, room.Code, params.ControllerId, true, room.CreatedAt).Scan(
		&p.RoomCode,
		&p.UserId,
		&p.IsController,
		&p.JoinedAt,
	)
	if err != nil {
		return Room{}, Participant{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, Participant{}, err
	}

	return room, p, nil
}

func (db *PgTripPlannerRepository) GetRoomByCode(code string) (Room, error) {
	return scanRoom(db.conn.QueryRow("SELECT "+roomColumns+" FROM rooms WHERE code = $1 LIMIT 1", code))
}

func (db *PgTripPlannerRepository) ListPublicRooms() ([]Room, error) {
	rows, err := db.conn.Query("SELECT " + roomColumns + " FROM rooms WHERE is_public ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms = make([]Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// UpdateRoomSelection writes all three focus columns in one statement and
// returns the row before and after the update. The new updated_at is always
// later than the old one, whatever the clock says.
func (db *PgTripPlannerRepository) UpdateRoomSelection(params UpdateSelectionParams) (Room, Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	old, err := scanRoom(tx.QueryRow("SELECT "+roomColumns+" FROM rooms WHERE code = $1 FOR UPDATE", params.Code))
	if err != nil {
		return Room{}, Room{}, err
	}

	updated, err := scanRoom(tx.QueryRow(
		updateSelectionQuery,
		params.Code,
		params.SelectedCountry,
		params.SelectedOpportunityLat,
		params.SelectedOpportunityLng,
	))
	if err != nil {
		return Room{}, Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, Room{}, err
	}

	return old, updated, nil
}

func (db *PgTripPlannerRepository) DeleteRoom(code string) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM room_participants WHERE room_code = $1", code); err != nil {
		return Room{}, err
	}

	if _, err = tx.Exec("DELETE FROM messages WHERE room_code = $1", code); err != nil {
		return Room{}, err
	}

	room, err := scanRoom(tx.QueryRow("DELETE FROM rooms WHERE code = $1 RETURNING "+roomColumns, code))
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, nil
}

// AddParticipant is idempotent. The boolean reports whether a new row was
// created; an existing participant is returned unchanged.
func (db *PgTripPlannerRepository) AddParticipant(code, userId string, isController bool) (Participant, bool, error) {
	var p Participant
	err := db.conn.QueryRow(createParticipantQuery, code, userId, isController, time.Now().UTC()).Scan(
		&p.RoomCode,
		&p.UserId,
		&p.IsController,
		&p.JoinedAt,
	)
	if err == nil {
		return p, true, nil
	}
	if err != sql.ErrNoRows {
		return Participant{}, false, err
	}

	p, err = db.GetParticipant(code, userId)
	return p, false, err
}

func (db *PgTripPlannerRepository) RemoveParticipant(code, userId string) (Participant, error) {
	var p Participant
	err := db.conn.QueryRow(
		"DELETE FROM room_participants WHERE room_code = $1 AND user_id = $2 "+
			"RETURNING room_code, user_id, is_controller, joined_at",
		code,
		userId,
	).Scan(&p.RoomCode, &p.UserId, &p.IsController, &p.JoinedAt)

	return p, err
}

func (db *PgTripPlannerRepository) GetParticipant(code, userId string) (Participant, error) {
	var p Participant
	err := db.conn.QueryRow(
		"SELECT room_code, user_id, is_controller, joined_at FROM room_participants "+
			"WHERE room_code = $1 AND user_id = $2 LIMIT 1",
		code,
		userId,
	).Scan(&p.RoomCode, &p.UserId, &p.IsController, &p.JoinedAt)

	return p, err
}

func (db *PgTripPlannerRepository) ListParticipants(code string) ([]Participant, error) {
	rows, err := db.conn.Query(
		"SELECT room_code, user_id, is_controller, joined_at FROM room_participants "+
			"WHERE room_code = $1 ORDER BY joined_at",
		code,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants = make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.RoomCode, &p.UserId, &p.IsController, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (db *PgTripPlannerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	var msg Message
	err := db.conn.QueryRow(
		"INSERT INTO messages (id, room_code, user_id, message, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, room_code, user_id, message, created_at",
		uuid.NewString(),
		params.RoomCode,
		params.UserId,
		params.Message,
		time.Now().UTC(),
	).Scan(&msg.Id, &msg.RoomCode, &msg.UserId, &msg.Message, &msg.CreatedAt)

	return msg, err
}

func (db *PgTripPlannerRepository) GetMessages(code string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_code, user_id, message, created_at FROM messages "+
			"WHERE room_code = $1 ORDER BY created_at ASC, id ASC",
		code,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Id, &msg.RoomCode, &msg.UserId, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
