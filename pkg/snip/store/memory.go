package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/snipdev/snip/pkg/snip/models"
	"gorm.io/gorm"
)

// Memory is an in-process record store with the same contract as Gorm.
// It is safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	seq   int64
	users map[string]*models.User
	links map[string]*memLink
}

type memLink struct {
	link models.Link
	seq  int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*models.User),
		links: make(map[string]*memLink),
	}
}

// FindLiveUserByEmail returns the non-deleted user with the given email
func (m *Memory) FindLiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if !u.DeletedAt.Valid && u.Email == email {
			user := *u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

// FindLiveUserByID returns the non-deleted user with the given id
func (m *Memory) FindLiveUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || u.DeletedAt.Valid {
		return nil, ErrNotFound
	}
	user := *u
	return &user, nil
}

// CreateUser inserts a user, reporting ErrDuplicate when the email is taken
func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if !u.DeletedAt.Valid && u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	stored.Links = nil
	m.users[user.ID] = &stored
	return nil
}

// withOwner copies a stored link and attaches its live owner, like Preload("User")
func (m *Memory) withOwner(ml *memLink) models.Link {
	link := ml.link
	link.User = nil
	if link.UserID != nil {
		if u, ok := m.users[*link.UserID]; ok && !u.DeletedAt.Valid {
			owner := *u
			link.User = &owner
		}
	}
	return link
}

func (m *Memory) liveByCode(code string) *memLink {
	for _, ml := range m.links {
		if !ml.link.DeletedAt.Valid && ml.link.ShortCode == code {
			return ml
		}
	}
	return nil
}

func (m *Memory) liveByID(id string) *memLink {
	ml, ok := m.links[id]
	if !ok || ml.link.DeletedAt.Valid {
		return nil
	}
	return ml
}

// FindLiveLinkByCode returns the non-deleted link holding code, with its owner loaded
func (m *Memory) FindLiveLinkByCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ml := m.liveByCode(code)
	if ml == nil {
		return nil, ErrNotFound
	}
	link := m.withOwner(ml)
	return &link, nil
}

// FindResolvableLinkByURL returns the newest resolvable link for url within an owner scope
func (m *Memory) FindResolvableLinkByURL(ctx context.Context, url string, ownerID *string, now time.Time) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *memLink
	for _, ml := range m.links {
		l := &ml.link
		if l.OriginalURL != url || !l.Resolvable(now) {
			continue
		}
		if (ownerID == nil) != (l.UserID == nil) {
			continue
		}
		if ownerID != nil && *ownerID != *l.UserID {
			continue
		}
		if found == nil || ml.seq > found.seq {
			found = ml
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	link := m.withOwner(found)
	return &link, nil
}

// CreateLink inserts a link, reporting ErrDuplicate when the short code is taken
func (m *Memory) CreateLink(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.liveByCode(link.ShortCode) != nil {
		return ErrDuplicate
	}
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	now := time.Now()
	link.CreatedAt, link.UpdatedAt = now, now
	m.seq++
	stored := *link
	stored.User = nil
	m.links[link.ID] = &memLink{link: stored, seq: m.seq}
	return nil
}

// ListLinksByOwner returns the owner's non-deleted links, newest first
func (m *Memory) ListLinksByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []*memLink
	for _, ml := range m.links {
		if !ml.link.DeletedAt.Valid && ml.link.OwnedBy(ownerID) {
			owned = append(owned, ml)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].seq > owned[j].seq
	})

	links := make([]models.Link, 0, len(owned))
	for _, ml := range owned {
		links = append(links, m.withOwner(ml))
	}
	return links, nil
}

// UpdateLinkURL replaces the target of a non-deleted link
func (m *Memory) UpdateLinkURL(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ml := m.liveByID(id)
	if ml == nil {
		return ErrNotFound
	}
	ml.link.OriginalURL = url
	ml.link.UpdatedAt = time.Now()
	return nil
}

// SoftDeleteLink stamps deleted_at and clears the active flag
func (m *Memory) SoftDeleteLink(ctx context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ml := m.liveByID(id)
	if ml == nil {
		return ErrNotFound
	}
	ml.link.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	ml.link.IsActive = false
	ml.link.UpdatedAt = time.Now()
	return nil
}

// DeactivateLink clears the active flag of a non-deleted link
func (m *Memory) DeactivateLink(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ml := m.liveByID(id); ml != nil {
		ml.link.IsActive = false
		ml.link.UpdatedAt = time.Now()
	}
	return nil
}

// IncrementLinkClicks adds one click if the link is still resolvable at now
func (m *Memory) IncrementLinkClicks(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ml := m.liveByID(id)
	if ml == nil || !ml.link.Resolvable(now) {
		return false, nil
	}
	ml.link.Clicks++
	return true, nil
}
