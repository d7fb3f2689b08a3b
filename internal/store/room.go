package store

import (
	"database/sql"
	"fmt"

	"github.com/rcavanagh/subledger/internal/model"
)

type RoomStore struct {
	db *sql.DB
}

func NewRoomStore(db *sql.DB) *RoomStore {
	return &RoomStore{db: db}
}

func scanRoom(scanner interface{ Scan(...any) error }) (*model.Room, error) {
	var r model.Room
	err := scanner.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRoomMember(scanner interface{ Scan(...any) error }) (*model.RoomMember, error) {
	var m model.RoomMember
	err := scanner.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const roomCols = `id, owner_id, name, description, created_at, updated_at`
const roomMemberCols = `id, room_id, user_id, role, joined_at`

func (s *RoomStore) Create(ownerID int64, name, description string) (*model.Room, error) {
	result, err := s.db.Exec(
		`INSERT INTO rooms (owner_id, name, description) VALUES (?, ?, ?)`,
		ownerID, name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RoomStore) GetByID(id int64) (*model.Room, error) {
	row := s.db.QueryRow(`SELECT `+roomCols+` FROM rooms WHERE id = ?`, id)
	r, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

// Update changes the room's name and description. The owner is immutable.
func (s *RoomStore) Update(id int64, name, description string) (*model.Room, error) {
	_, err := s.db.Exec(
		`UPDATE rooms SET name = ?, description = ?, updated_at = datetime('now') WHERE id = ?`,
		name, description, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the room; subscriptions, memberships, and invites cascade
// via foreign keys.
func (s *RoomStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// RoomWithCount is a room annotated with its display member count
// (membership rows + 1 for the implicit owner).
type RoomWithCount struct {
	model.Room
	MemberCount int `json:"member_count"`
}

// ListForUser returns rooms the user owns or has joined, each with its
// display member count, ordered by name.
func (s *RoomStore) ListForUser(userID int64) ([]RoomWithCount, error) {
	rows, err := s.db.Query(
		`SELECT `+roomCols+`,
		        (SELECT COUNT(*) FROM room_members rm WHERE rm.room_id = rooms.id) + 1
		 FROM rooms
		 WHERE owner_id = ?
		    OR id IN (SELECT room_id FROM room_members WHERE user_id = ?)
		 ORDER BY name ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms for user: %w", err)
	}
	defer rows.Close()

	var result []RoomWithCount
	for rows.Next() {
		var rc RoomWithCount
		err := rows.Scan(&rc.ID, &rc.OwnerID, &rc.Name, &rc.Description, &rc.CreatedAt, &rc.UpdatedAt, &rc.MemberCount)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		result = append(result, rc)
	}
	return result, rows.Err()
}

// RoomIDsForUser returns the ids of every room the user can access.
func (s *RoomStore) RoomIDsForUser(userID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT id FROM rooms WHERE owner_id = ?
		 UNION
		 SELECT room_id FROM room_members WHERE user_id = ?`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("room ids for user: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *RoomStore) GetMember(roomID, userID int64) (*model.RoomMember, error) {
	row := s.db.QueryRow(
		`SELECT `+roomMemberCols+` FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	)
	m, err := scanRoomMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *RoomStore) RemoveMember(roomID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// MemberWithUser is a membership row joined with the member's identity
// for the settings page.
type MemberWithUser struct {
	model.RoomMember
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *RoomStore) ListMembers(roomID int64) ([]MemberWithUser, error) {
	rows, err := s.db.Query(
		`SELECT rm.id, rm.room_id, rm.user_id, rm.role, rm.joined_at, u.email, u.name
		 FROM room_members rm
		 JOIN users u ON u.id = rm.user_id
		 WHERE rm.room_id = ?
		 ORDER BY rm.joined_at ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []MemberWithUser
	for rows.Next() {
		var m MemberWithUser
		err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Role, &m.JoinedAt, &m.Email, &m.Name)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
