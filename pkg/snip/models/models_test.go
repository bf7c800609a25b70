package models

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"users", "urls"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
	if !db.Migrator().HasIndex(&Link{}, "idx_urls_short_code_live") {
		t.Error("Expected partial unique index on short_code")
	}
}

func TestUserGetsUUID(t *testing.T) {
	db := setupTestDB(t)

	user := User{Email: "test@example.com", PasswordHash: "hash", Name: "Test User"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if len(user.ID) != 36 {
		t.Errorf("Expected a UUID id, got %q", user.ID)
	}
	if !user.IsActive {
		t.Error("Expected new user to be active")
	}
}

func TestUserEmailUniqueAmongLiveUsers(t *testing.T) {
	db := setupTestDB(t)

	first := User{Email: "test@example.com", PasswordHash: "hash", Name: "First"}
	db.Create(&first)

	dup := User{Email: "test@example.com", PasswordHash: "hash", Name: "Dup"}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("Expected error when creating user with duplicate live email")
	}

	// Once the first account is soft deleted the email is free again
	db.Delete(&first)
	again := User{Email: "test@example.com", PasswordHash: "hash", Name: "Again"}
	if err := db.Create(&again).Error; err != nil {
		t.Errorf("Expected email reuse after soft delete, got %v", err)
	}
}

func TestShortCodeUniqueAmongLiveLinks(t *testing.T) {
	db := setupTestDB(t)

	first := Link{OriginalURL: "https://example1.com", ShortCode: "abc123", IsActive: true}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	dup := Link{OriginalURL: "https://example2.com", ShortCode: "abc123", IsActive: true}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("Expected error when creating link with duplicate short code")
	}

	db.Delete(&first)
	reuse := Link{OriginalURL: "https://example3.com", ShortCode: "abc123", IsActive: true}
	if err := db.Create(&reuse).Error; err != nil {
		t.Errorf("Expected short code reuse after soft delete, got %v", err)
	}
}

func TestLinkOwnerPreload(t *testing.T) {
	db := setupTestDB(t)

	user := User{Email: "owner@example.com", PasswordHash: "hash", Name: "Owner"}
	db.Create(&user)
	link := Link{OriginalURL: "https://example.com", ShortCode: "own1", IsActive: true, UserID: &user.ID}
	db.Create(&link)

	var loaded Link
	if err := db.Preload("User").First(&loaded, "id = ?", link.ID).Error; err != nil {
		t.Fatalf("Failed to load link: %v", err)
	}
	if loaded.User == nil || loaded.User.Email != "owner@example.com" {
		t.Errorf("Expected owner to be preloaded, got %+v", loaded.User)
	}
}

func TestLinkState(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		link Link
		want LinkState
	}{
		{"active without expiry", Link{IsActive: true}, LinkStateActive},
		{"active before expiry", Link{IsActive: true, ExpiresAt: &future}, LinkStateActive},
		{"expired", Link{IsActive: true, ExpiresAt: &past}, LinkStateExpired},
		{"expires exactly now", Link{IsActive: true, ExpiresAt: &now}, LinkStateExpired},
		{"inactive", Link{IsActive: false}, LinkStateInactive},
		{"deleted", Link{IsActive: false, DeletedAt: gorm.DeletedAt{Time: past, Valid: true}}, LinkStateDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.State(now); got != tt.want {
				t.Errorf("State() = %s, want %s", got, tt.want)
			}
			if got := tt.link.Resolvable(now); got != (tt.want == LinkStateActive) {
				t.Errorf("Resolvable() = %v for state %s", got, tt.want)
			}
		})
	}
}

func TestLinkOwnedBy(t *testing.T) {
	owner := "user-1"
	owned := Link{UserID: &owner}
	anonymous := Link{}

	if !owned.OwnedBy("user-1") {
		t.Error("Expected owner to own the link")
	}
	if owned.OwnedBy("user-2") {
		t.Error("Expected other user not to own the link")
	}
	if owned.OwnedBy("") {
		t.Error("Expected anonymous caller not to own the link")
	}
	if anonymous.OwnedBy("user-1") {
		t.Error("Expected anonymous link to have no owner")
	}
}
