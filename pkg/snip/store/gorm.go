package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snipdev/snip/pkg/snip/models"
	"gorm.io/gorm"
)

// Gorm is the relational record store
type Gorm struct {
	db *gorm.DB
}

// NewGorm creates a store over an open, migrated database
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// FindLiveUserByEmail returns the non-deleted user with the given email
func (s *Gorm) FindLiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindLiveUserByID returns the non-deleted user with the given id
func (s *Gorm) FindLiveUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// CreateUser inserts a user, reporting ErrDuplicate when the email is taken
func (s *Gorm) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindLiveLinkByCode returns the non-deleted link holding code, with its owner loaded
func (s *Gorm) FindLiveLinkByCode(ctx context.Context, code string) (*models.Link, error) {
	var link models.Link
	if err := s.db.WithContext(ctx).Preload("User").Where("short_code = ?", code).First(&link).Error; err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// FindResolvableLinkByURL returns the newest resolvable link for url within an
// owner scope. A nil ownerID scopes the lookup to anonymous links.
func (s *Gorm) FindResolvableLinkByURL(ctx context.Context, url string, ownerID *string, now time.Time) (*models.Link, error) {
	query := s.db.WithContext(ctx).Preload("User").
		Where("original_url = ? AND is_active = ?", url, true).
		Where("expires_at IS NULL OR expires_at > ?", now)
	if ownerID == nil {
		query = query.Where("user_id IS NULL")
	} else {
		query = query.Where("user_id = ?", *ownerID)
	}

	var link models.Link
	if err := query.Order("created_at DESC").First(&link).Error; err != nil {
		return nil, notFound(err)
	}
	return &link, nil
}

// CreateLink inserts a link, reporting ErrDuplicate when the short code is taken
func (s *Gorm) CreateLink(ctx context.Context, link *models.Link) error {
	if err := s.db.WithContext(ctx).Omit("User").Create(link).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// ListLinksByOwner returns the owner's non-deleted links, newest first
func (s *Gorm) ListLinksByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	var links []models.Link
	err := s.db.WithContext(ctx).Preload("User").
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// UpdateLinkURL replaces the target of a non-deleted link
func (s *Gorm) UpdateLinkURL(ctx context.Context, id, url string) error {
	result := s.db.WithContext(ctx).Model(&models.Link{}).Where("id = ?", id).Update("original_url", url)
	if result.Error != nil {
		return fmt.Errorf("update link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteLink stamps deleted_at and clears the active flag in one write
func (s *Gorm) SoftDeleteLink(ctx context.Context, id string, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Link{}).Where("id = ?", id).
		Updates(map[string]interface{}{"deleted_at": now, "is_active": false})
	if result.Error != nil {
		return fmt.Errorf("delete link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateLink clears the active flag of a non-deleted link
func (s *Gorm) DeactivateLink(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.Link{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate link: %w", result.Error)
	}
	return nil
}

// IncrementLinkClicks adds one click in a single UPDATE guarded by the
// resolvability predicate. It reports false when the link stopped being
// resolvable between the read and the write.
func (s *Gorm) IncrementLinkClicks(ctx context.Context, id string, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Link{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("increment clicks: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
