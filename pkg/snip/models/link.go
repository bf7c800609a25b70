package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxShortCodeLength is the width of the short_code column
const MaxShortCodeLength = 10

// LinkState is the lifecycle position of a link.
//
//	Active -> Inactive (expiry noticed on resolve) -> Deleted
//	Active -> Deleted
//
// Expired is an Active row whose expiry has passed but has not yet been
// written back as Inactive.
type LinkState string

const (
	LinkStateActive   LinkState = "active"
	LinkStateExpired  LinkState = "expired"
	LinkStateInactive LinkState = "inactive"
	LinkStateDeleted  LinkState = "deleted"
)

// Link represents a shortened URL
type Link struct {
	ID          string         `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	OriginalURL string         `gorm:"type:text;not null;index" json:"originalUrl"`
	ShortCode   string         `gorm:"type:varchar(10);not null;uniqueIndex:idx_urls_short_code_live,where:deleted_at IS NULL" json:"shortCode"`
	Clicks      int64          `gorm:"not null;default:0" json:"clicks"`
	IsActive    bool           `gorm:"not null;default:true" json:"isActive"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	UserID      *string        `gorm:"type:varchar(36);index" json:"userId,omitempty"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName keeps the table named after what the rows are: shortened URLs
func (Link) TableName() string {
	return "urls"
}

// BeforeCreate assigns a UUID when the caller did not set one
func (l *Link) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// State derives the lifecycle state of the link at the given instant
func (l *Link) State(now time.Time) LinkState {
	switch {
	case l.DeletedAt.Valid:
		return LinkStateDeleted
	case !l.IsActive:
		return LinkStateInactive
	case l.ExpiresAt != nil && !l.ExpiresAt.After(now):
		return LinkStateExpired
	default:
		return LinkStateActive
	}
}

// Resolvable reports whether the link may serve a redirect at the given instant
func (l *Link) Resolvable(now time.Time) bool {
	return l.State(now) == LinkStateActive
}

// OwnedBy reports whether userID owns the link. Anonymous links have no owner.
func (l *Link) OwnedBy(userID string) bool {
	return l.UserID != nil && userID != "" && *l.UserID == userID
}
