package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Failed to create users table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newUser(email string) *models.User {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "password",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := newUser("test_1@example.com")

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE email = $1", user.Email).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query user: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 user, got %d", count)
	}
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	if err := repo.Create(context.Background(), newUser("dup@example.com")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := repo.Create(context.Background(), newUser("dup@example.com"))
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRepository_GetByEmailAndID(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	user := newUser("test_1@example.com")
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create: %v", err)
	}

	byEmail, err := repo.GetByEmail(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.PasswordHash != user.PasswordHash {
		t.Errorf("Unexpected user %+v", byEmail)
	}

	byID, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.Email != user.Email {
		t.Errorf("Expected email %v, got %v", user.Email, byID.Email)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	if _, err := repo.GetByEmail(context.Background(), "nonexistent@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByEmail: expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID: expected ErrUserNotFound, got %v", err)
	}
}
