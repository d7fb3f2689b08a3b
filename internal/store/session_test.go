package store

import "testing"

func TestSessionCreate(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "alice@example.com")
	ss := NewSessionStore(db)

	sess, err := ss.Create(userID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.UserID != userID {
		t.Errorf("user_id = %d, want %d", sess.UserID, userID)
	}
}

func TestSessionGetByToken(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "alice@example.com")
	ss := NewSessionStore(db)

	created, _ := ss.Create(userID)

	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil || sess.ID != created.ID {
		t.Fatalf("got %+v, want id %d", sess, created.ID)
	}
}

func TestSessionGetByTokenExpired(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "alice@example.com")
	ss := NewSessionStore(db)

	created, _ := ss.Create(userID)
	if _, err := db.Exec(
		`UPDATE sessions SET expires_at = datetime('now', '-1 hour') WHERE id = ?`, created.ID,
	); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	sess, err := ss.GetByToken(created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess != nil {
		t.Error("expired session should not be returned")
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	db := openTestDB(t)
	userID := seedUser(t, db, "alice@example.com")
	ss := NewSessionStore(db)

	live, _ := ss.Create(userID)
	stale, _ := ss.Create(userID)
	db.Exec(`UPDATE sessions SET expires_at = datetime('now', '-1 hour') WHERE id = ?`, stale.ID)

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if sess, _ := ss.GetByToken(live.Token); sess == nil {
		t.Error("live session should survive cleanup")
	}
}
