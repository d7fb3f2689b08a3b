package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rcavanagh/subledger/internal/model"
)

// inviteTTL is the fixed validity window for invite links.
const inviteTTL = 7 * 24 * time.Hour

type InviteStore struct {
	db *sql.DB
}

func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.RoomInvite, error) {
	var inv model.RoomInvite
	var maxUses sql.NullInt64
	err := scanner.Scan(
		&inv.ID, &inv.RoomID, &inv.CreatedBy, &inv.Token,
		&inv.ExpiresAt, &maxUses, &inv.Uses, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if maxUses.Valid {
		inv.MaxUses = &maxUses.Int64
	}
	return &inv, nil
}

const inviteCols = `id, room_id, created_by, token, expires_at, max_uses, uses, created_at`

// Create generates an invite for the room with a fresh random token and a
// 7-day expiry. max_uses is recorded but not enforced at redemption.
func (s *InviteStore) Create(roomID, createdBy int64, maxUses *int64) (*model.RoomInvite, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(inviteTTL)

	var mu sql.NullInt64
	if maxUses != nil {
		mu = sql.NullInt64{Int64: *maxUses, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO room_invites (room_id, created_by, token, expires_at, max_uses) VALUES (?, ?, ?, ?, ?)`,
		roomID, createdBy, token, expiresAt, mu,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM room_invites WHERE id = ?`, id)
	return scanInvite(row)
}

// GetByToken returns the invite regardless of expiry, or nil if no row
// matches. Expiry is the redeemer's concern so callers can distinguish an
// expired link from an unknown one.
func (s *InviteStore) GetByToken(token string) (*model.RoomInvite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM room_invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

// Redeem grants the user membership in the invite's room. It returns the
// invite and whether a membership row was created.
//
// Outcomes:
//   - ErrNotFound if no invite matches the token
//   - ErrInviteExpired if the invite is past expiry (expiry wins over any
//     remaining uses)
//   - (inv, false, nil) if the user is the room's owner or already a member;
//     the uses counter does not advance
//   - (inv, true, nil) on a first-time join; the membership insert and the
//     uses increment commit in the same transaction
//
// The membership insert uses INSERT OR IGNORE against the UNIQUE(room_id,
// user_id) constraint, so two concurrent redemptions by distinct users both
// succeed and uses advances exactly once per new member.
func (s *InviteStore) Redeem(token string, userID int64) (*model.RoomInvite, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+inviteCols+` FROM room_invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("get invite: %w", err)
	}

	if inv.Expired(time.Now().UTC()) {
		return nil, false, ErrInviteExpired
	}

	// The owner is implicitly a member and must never get a membership row.
	var ownerID int64
	if err := tx.QueryRow(`SELECT owner_id FROM rooms WHERE id = ?`, inv.RoomID).Scan(&ownerID); err != nil {
		return nil, false, fmt.Errorf("get room owner: %w", err)
	}
	if ownerID == userID {
		return inv, false, tx.Commit()
	}

	result, err := tx.Exec(
		`INSERT OR IGNORE INTO room_members (room_id, user_id, role) VALUES (?, ?, 'member')`,
		inv.RoomID, userID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert membership: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		// Already a member: idempotent success, counter untouched.
		return inv, false, tx.Commit()
	}

	if _, err := tx.Exec(`UPDATE room_invites SET uses = uses + 1 WHERE id = ?`, inv.ID); err != nil {
		return nil, false, fmt.Errorf("increment uses: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit redeem: %w", err)
	}

	inv.Uses++
	return inv, true, nil
}

// ListForRoom returns the room's invites, newest first.
func (s *InviteStore) ListForRoom(roomID int64) ([]model.RoomInvite, error) {
	rows, err := s.db.Query(
		`SELECT `+inviteCols+` FROM room_invites WHERE room_id = ? ORDER BY created_at DESC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var invites []model.RoomInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

func (s *InviteStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM room_invites WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
