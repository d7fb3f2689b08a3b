package store

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func setupInviteTest(t *testing.T) (*InviteStore, *RoomStore, int64, int64) {
	t.Helper()
	db := openTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	rs := NewRoomStore(db)
	room, err := rs.Create(owner, "Flat", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return NewInviteStore(db), rs, room.ID, owner
}

func TestInviteCreate(t *testing.T) {
	is, _, roomID, owner := setupInviteTest(t)

	inv, err := is.Create(roomID, owner, nil)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if len(inv.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(inv.Token))
	}
	if inv.Uses != 0 {
		t.Errorf("uses = %d, want 0", inv.Uses)
	}
	if inv.MaxUses != nil {
		t.Errorf("max_uses = %v, want nil", inv.MaxUses)
	}

	until := time.Until(inv.ExpiresAt)
	if until < 6*24*time.Hour || until > 8*24*time.Hour {
		t.Errorf("expiry window = %v, want about 7 days", until)
	}
}

func TestInviteRedeemUnknownToken(t *testing.T) {
	is, _, _, _ := setupInviteTest(t)

	_, _, err := is.Redeem("deadbeef", 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInviteRedeemExpired(t *testing.T) {
	is, _, roomID, owner := setupInviteTest(t)

	inv, _ := is.Create(roomID, owner, nil)
	if _, err := is.db.Exec(
		`UPDATE room_invites SET expires_at = datetime('now', '-1 day') WHERE id = ?`, inv.ID,
	); err != nil {
		t.Fatalf("expire invite: %v", err)
	}

	user := seedUser(t, is.db, "late@example.com")
	_, _, err := is.Redeem(inv.Token, user)
	if !errors.Is(err, ErrInviteExpired) {
		t.Errorf("err = %v, want ErrInviteExpired", err)
	}
}

func TestInviteRedeemExpiredWinsOverUses(t *testing.T) {
	is, _, roomID, owner := setupInviteTest(t)

	cap := int64(10)
	inv, _ := is.Create(roomID, owner, &cap)
	is.db.Exec(`UPDATE room_invites SET expires_at = datetime('now', '-1 minute') WHERE id = ?`, inv.ID)

	user := seedUser(t, is.db, "late@example.com")
	_, _, err := is.Redeem(inv.Token, user)
	if !errors.Is(err, ErrInviteExpired) {
		t.Errorf("err = %v, want ErrInviteExpired even with uses remaining", err)
	}
}

func TestInviteRedeemFirstJoin(t *testing.T) {
	is, rs, roomID, owner := setupInviteTest(t)

	inv, _ := is.Create(roomID, owner, nil)
	user := seedUser(t, is.db, "joiner@example.com")

	got, joined, err := is.Redeem(inv.Token, user)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !joined {
		t.Error("joined = false, want true for first redemption")
	}
	if got.Uses != 1 {
		t.Errorf("uses = %d, want 1", got.Uses)
	}

	m, err := rs.GetMember(roomID, user)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != "member" {
		t.Fatalf("membership = %+v, want member role", m)
	}
}

func TestInviteRedeemIdempotent(t *testing.T) {
	is, _, roomID, owner := setupInviteTest(t)

	inv, _ := is.Create(roomID, owner, nil)
	user := seedUser(t, is.db, "joiner@example.com")

	if _, _, err := is.Redeem(inv.Token, user); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	got, joined, err := is.Redeem(inv.Token, user)
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if joined {
		t.Error("joined = true, want false for an existing member")
	}
	if got.Uses != 1 {
		t.Errorf("uses = %d, want 1 (no double increment)", got.Uses)
	}
}

func TestInviteRedeemByOwner(t *testing.T) {
	is, rs, roomID, owner := setupInviteTest(t)

	inv, _ := is.Create(roomID, owner, nil)

	_, joined, err := is.Redeem(inv.Token, owner)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if joined {
		t.Error("owner redemption must be a no-op")
	}
	if m, _ := rs.GetMember(roomID, owner); m != nil {
		t.Error("owner must never get an explicit membership row")
	}
}

func TestInviteRedeemTwoUsers(t *testing.T) {
	is, _, roomID, owner := setupInviteTest(t)

	inv, _ := is.Create(roomID, owner, nil)
	alice := seedUser(t, is.db, "alice@example.com")
	bob := seedUser(t, is.db, "bob@example.com")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []int64{alice, bob} {
		wg.Add(1)
		go func(i int, user int64) {
			defer wg.Done()
			_, _, errs[i] = is.Redeem(inv.Token, user)
		}(i, user)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("redeem %d: %v", i, err)
		}
	}

	got, _ := is.GetByToken(inv.Token)
	if got.Uses != 2 {
		t.Errorf("uses = %d, want exactly 2", got.Uses)
	}
	var members int
	is.db.QueryRow(`SELECT COUNT(*) FROM room_members WHERE room_id = ?`, roomID).Scan(&members)
	if members != 2 {
		t.Errorf("membership rows = %d, want 2", members)
	}
}

func TestInviteMaxUsesNotEnforced(t *testing.T) {
	// max_uses is recorded on the invite but redemption does not check it.
	is, _, roomID, owner := setupInviteTest(t)

	cap := int64(1)
	inv, _ := is.Create(roomID, owner, &cap)
	alice := seedUser(t, is.db, "alice@example.com")
	bob := seedUser(t, is.db, "bob@example.com")

	if _, _, err := is.Redeem(inv.Token, alice); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, _, err := is.Redeem(inv.Token, bob); err != nil {
		t.Fatalf("second redeem past cap: %v", err)
	}

	got, _ := is.GetByToken(inv.Token)
	if got.Uses != 2 {
		t.Errorf("uses = %d, want 2", got.Uses)
	}
}

func TestInviteDeleteExpired(t *testing.T) {
	is, _, roomID, owner := setupInviteTest(t)

	live, _ := is.Create(roomID, owner, nil)
	stale, _ := is.Create(roomID, owner, nil)
	is.db.Exec(`UPDATE room_invites SET expires_at = datetime('now', '-1 day') WHERE id = ?`, stale.ID)

	n, err := is.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if inv, _ := is.GetByToken(live.Token); inv == nil {
		t.Error("live invite should survive cleanup")
	}
}
