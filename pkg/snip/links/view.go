package links

import (
	"strings"
	"time"

	"github.com/snipdev/snip/pkg/snip/auth"
	"github.com/snipdev/snip/pkg/snip/models"
)

// LinkView is the public representation of a link
type LinkView struct {
	ID          string            `json:"id"`
	OriginalURL string            `json:"originalUrl"`
	ShortURL    string            `json:"shortUrl"`
	ShortCode   string            `json:"shortCode"`
	Clicks      int64             `json:"clicks"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	ExpiresAt   *time.Time        `json:"expiresAt,omitempty"`
	UserID      *string           `json:"userId,omitempty"`
	User        *auth.UserSummary `json:"user,omitempty"`
}

// ShortURL joins a base origin and a short code
func ShortURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/" + code
}

// NewView builds the view of a link against the given base origin
func NewView(link *models.Link, baseURL string) LinkView {
	view := LinkView{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortURL:    ShortURL(baseURL, link.ShortCode),
		ShortCode:   link.ShortCode,
		Clicks:      link.Clicks,
		IsActive:    link.IsActive,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
		ExpiresAt:   link.ExpiresAt,
		UserID:      link.UserID,
	}
	if link.User != nil {
		owner := auth.Summarize(link.User)
		view.User = &owner
	}
	return view
}
