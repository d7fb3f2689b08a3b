package store

import "testing"

func TestUserCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)

	u, err := us.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", u.Email)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want hash", u.PasswordHash)
	}

	got, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("got = %+v, want id %d", got, u.ID)
	}
}

func TestUserGetMissing(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)

	u, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Errorf("got %+v, want nil", u)
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)

	if _, err := us.Create("alice@example.com", "Alice", "h1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := us.Create("alice@example.com", "Alice Again", "h2"); err == nil {
		t.Error("expected unique constraint error for duplicate email")
	}
}

func TestUserUpdateName(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)

	u, _ := us.Create("alice@example.com", "Alice", "h")
	got, err := us.UpdateName(u.ID, "Alice B")
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if got.Name != "Alice B" {
		t.Errorf("name = %q, want Alice B", got.Name)
	}
}
