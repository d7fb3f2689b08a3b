package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rcavanagh/subledger/internal/model"
)

// dateLayout is the storage format for billing dates (calendar dates, no
// time component).
const dateLayout = "2006-01-02"

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var roomID sql.NullInt64
	var nextBilling string
	err := scanner.Scan(
		&sub.ID, &sub.UserID, &roomID, &sub.Name, &sub.Amount, &sub.BillingCycle,
		&nextBilling, &sub.Category, &sub.Status, &sub.Notes, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if roomID.Valid {
		sub.RoomID = &roomID.Int64
	}
	sub.NextBillingDate, err = time.Parse(dateLayout, nextBilling)
	if err != nil {
		return nil, fmt.Errorf("parse billing date %q: %w", nextBilling, err)
	}
	return &sub, nil
}

const subscriptionCols = `id, user_id, room_id, name, amount, billing_cycle, next_billing_date, category, status, notes, created_at, updated_at`

func (s *SubscriptionStore) Create(userID int64, roomID *int64, name string, amount float64, cycle string, nextBilling time.Time, category, status, notes string) (*model.Subscription, error) {
	var rID sql.NullInt64
	if roomID != nil {
		rID = sql.NullInt64{Int64: *roomID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO subscriptions (user_id, room_id, name, amount, billing_cycle, next_billing_date, category, status, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, rID, name, amount, cycle, nextBilling.Format(dateLayout), category, status, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SubscriptionStore) GetByID(id int64) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// Update rewrites the editable fields. Ownership and room assignment do not
// change after creation.
func (s *SubscriptionStore) Update(id int64, name string, amount float64, cycle string, nextBilling time.Time, category, status, notes string) (*model.Subscription, error) {
	_, err := s.db.Exec(
		`UPDATE subscriptions
		 SET name = ?, amount = ?, billing_cycle = ?, next_billing_date = ?, category = ?, status = ?, notes = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		name, amount, cycle, nextBilling.Format(dateLayout), category, status, notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return s.GetByID(id)
}

func (s *SubscriptionStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListPersonal returns the user's personal subscriptions (no room), ordered
// by next billing date.
func (s *SubscriptionStore) ListPersonal(userID int64) ([]model.Subscription, error) {
	return s.list(
		`SELECT `+subscriptionCols+` FROM subscriptions
		 WHERE user_id = ? AND room_id IS NULL
		 ORDER BY next_billing_date ASC, id ASC`,
		userID,
	)
}

// ListActivePersonal returns the user's active personal subscriptions.
func (s *SubscriptionStore) ListActivePersonal(userID int64) ([]model.Subscription, error) {
	return s.list(
		`SELECT `+subscriptionCols+` FROM subscriptions
		 WHERE user_id = ? AND room_id IS NULL AND status = 'active'
		 ORDER BY next_billing_date ASC, id ASC`,
		userID,
	)
}

// ListForRoom returns all of a room's subscriptions, newest first.
func (s *SubscriptionStore) ListForRoom(roomID int64) ([]model.Subscription, error) {
	return s.list(
		`SELECT `+subscriptionCols+` FROM subscriptions
		 WHERE room_id = ?
		 ORDER BY created_at DESC, id DESC`,
		roomID,
	)
}

// ListActiveForRooms returns the active subscriptions across the given rooms,
// ordered by next billing date. An empty id list yields an empty result.
func (s *SubscriptionStore) ListActiveForRooms(roomIDs []int64) ([]model.Subscription, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(roomIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(roomIDs))
	for i, id := range roomIDs {
		args[i] = id
	}

	return s.list(
		`SELECT `+subscriptionCols+` FROM subscriptions
		 WHERE room_id IN (`+placeholders+`) AND status = 'active'
		 ORDER BY next_billing_date ASC, id ASC`,
		args...,
	)
}

func (s *SubscriptionStore) list(query string, args ...any) ([]model.Subscription, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
