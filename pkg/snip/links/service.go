package links

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/snipdev/snip/pkg/snip/apperr"
	"github.com/snipdev/snip/pkg/snip/metrics"
	"github.com/snipdev/snip/pkg/snip/models"
	"github.com/snipdev/snip/pkg/snip/store"
)

var aliasRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedAliases are the first path segments of the API's own routes
var reservedAliases = []string{"auth", "shorten", "my-urls", "urls", "stats", "health", "metrics"}

// Store is the persistence the link service needs
type Store interface {
	FindLiveLinkByCode(ctx context.Context, code string) (*models.Link, error)
	FindResolvableLinkByURL(ctx context.Context, url string, ownerID *string, now time.Time) (*models.Link, error)
	CreateLink(ctx context.Context, link *models.Link) error
	ListLinksByOwner(ctx context.Context, ownerID string) ([]models.Link, error)
	UpdateLinkURL(ctx context.Context, id, url string) error
	SoftDeleteLink(ctx context.Context, id string, now time.Time) error
	DeactivateLink(ctx context.Context, id string) error
	IncrementLinkClicks(ctx context.Context, id string, now time.Time) (bool, error)
}

// ServiceConfig holds optional collaborators and limits for the service
type ServiceConfig struct {
	Codes       CodeGenerator
	CodeLength  int
	MaxAttempts int // draws before giving up on a free generated code
	Now         func() time.Time
	Logger      *slog.Logger
}

// Service allocates, resolves and manages short links
type Service struct {
	store       Store
	codes       CodeGenerator
	codeLength  int
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a link service. A nil config selects the defaults.
func NewService(st Store, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	s := &Service{
		store:       st,
		codes:       config.Codes,
		codeLength:  config.CodeLength,
		maxAttempts: config.MaxAttempts,
		now:         config.Now,
		logger:      config.Logger,
	}
	if s.codes == nil {
		s.codes = NewRandomCodes()
	}
	if s.codeLength < MinCodeLength || s.codeLength > models.MaxShortCodeLength {
		s.codeLength = DefaultCodeLength
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ShortenInput is a request to shorten a URL
type ShortenInput struct {
	OriginalURL string
	CustomAlias string
	ExpiresAt   *time.Time
}

// ValidateAlias checks the format of a custom alias and rejects reserved words
func ValidateAlias(alias string) error {
	const op = "links.ValidateAlias"

	if len(alias) == 0 || len(alias) > models.MaxShortCodeLength {
		return apperr.E(op, apperr.BadRequest, "Alias must be between 1 and 10 characters")
	}
	if !aliasRegex.MatchString(alias) {
		return apperr.E(op, apperr.BadRequest, "Alias must contain only letters, numbers, hyphens, and underscores")
	}
	for _, r := range reservedAliases {
		if strings.EqualFold(alias, r) {
			return apperr.E(op, apperr.BadRequest, "This alias is reserved")
		}
	}
	return nil
}

func ownerScope(ownerID string) *string {
	if ownerID == "" {
		return nil
	}
	return &ownerID
}

// Shorten returns the view of a resolvable link for in.OriginalURL owned by
// ownerID, creating one when the owner scope has none. An empty ownerID is
// the anonymous scope.
func (s *Service) Shorten(ctx context.Context, in ShortenInput, ownerID, baseURL string) (LinkView, error) {
	const op = "links.Shorten"
	now := s.now().UTC()

	if in.CustomAlias != "" {
		if err := ValidateAlias(in.CustomAlias); err != nil {
			return LinkView{}, err
		}
	}
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return LinkView{}, apperr.E(op, apperr.BadRequest, "expiresAt must be in the future")
		}
		expires := in.ExpiresAt.UTC()
		in.ExpiresAt = &expires
	}

	owner := ownerScope(ownerID)
	existing, err := s.store.FindResolvableLinkByURL(ctx, in.OriginalURL, owner, now)
	if err == nil {
		return NewView(existing, baseURL), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return LinkView{}, apperr.Wrap(op, apperr.Internal, "failed to look up link", err)
	}

	link := &models.Link{
		OriginalURL: in.OriginalURL,
		Clicks:      0,
		IsActive:    true,
		ExpiresAt:   in.ExpiresAt,
		UserID:      owner,
	}

	if in.CustomAlias != "" {
		err = s.createWithAlias(ctx, op, link, in.CustomAlias)
	} else {
		err = s.createWithGeneratedCode(ctx, op, link)
	}
	if err != nil {
		return LinkView{}, err
	}

	metrics.LinkCreated(in.CustomAlias != "")
	s.logger.InfoContext(ctx, "link created", "short_code", link.ShortCode, "alias", in.CustomAlias != "")

	created, err := s.store.FindLiveLinkByCode(ctx, link.ShortCode)
	if err != nil {
		return LinkView{}, apperr.Wrap(op, apperr.Internal, "failed to load link", err)
	}
	return NewView(created, baseURL), nil
}

func (s *Service) createWithAlias(ctx context.Context, op string, link *models.Link, alias string) error {
	_, err := s.store.FindLiveLinkByCode(ctx, alias)
	if err == nil {
		return apperr.E(op, apperr.BadRequest, "alias already in use")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return apperr.Wrap(op, apperr.Internal, "failed to look up alias", err)
	}

	link.ShortCode = alias
	if err := s.store.CreateLink(ctx, link); err != nil {
		// Lost a race with a concurrent writer for the same alias
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.E(op, apperr.BadRequest, "alias already in use")
		}
		return apperr.Wrap(op, apperr.Internal, "failed to create link", err)
	}
	return nil
}

func (s *Service) createWithGeneratedCode(ctx context.Context, op string, link *models.Link) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codes.Generate(s.codeLength)
		if err != nil {
			return apperr.Wrap(op, apperr.Internal, "failed to generate short code", err)
		}

		_, err = s.store.FindLiveLinkByCode(ctx, code)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(op, apperr.Internal, "failed to look up short code", err)
		}

		link.ShortCode = code
		err = s.store.CreateLink(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return apperr.Wrap(op, apperr.Internal, "failed to create link", err)
		}
		link.ID = ""
	}

	s.logger.ErrorContext(ctx, "short code space exhausted", "attempts", s.maxAttempts, "length", s.codeLength)
	return apperr.E(op, apperr.Internal, "could not allocate a unique short code")
}

// Resolve returns the target of a resolvable link and counts the click.
// A link found past its expiry is deactivated on the way out.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	const op = "links.Resolve"
	now := s.now().UTC()

	link, err := s.store.FindLiveLinkByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.E(op, apperr.NotFound, "Short URL not found or expired")
	}
	if err != nil {
		return "", apperr.Wrap(op, apperr.Internal, "failed to look up link", err)
	}

	switch link.State(now) {
	case models.LinkStateActive:
	case models.LinkStateExpired:
		if err := s.store.DeactivateLink(ctx, link.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to deactivate expired link", "short_code", code, "error", err)
		}
		return "", apperr.E(op, apperr.NotFound, "Short URL has expired")
	default:
		return "", apperr.E(op, apperr.NotFound, "Short URL not found or expired")
	}

	counted, err := s.store.IncrementLinkClicks(ctx, link.ID, now)
	if err != nil {
		return "", apperr.Wrap(op, apperr.Internal, "failed to record click", err)
	}
	if !counted {
		// Deleted or deactivated between the read and the increment
		return "", apperr.E(op, apperr.NotFound, "Short URL not found or expired")
	}
	return link.OriginalURL, nil
}

// ListByOwner returns the owner's live links, newest first
func (s *Service) ListByOwner(ctx context.Context, ownerID, baseURL string) ([]LinkView, error) {
	const op = "links.ListByOwner"

	links, err := s.store.ListLinksByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.Internal, "failed to list links", err)
	}

	views := make([]LinkView, len(links))
	for i := range links {
		views[i] = NewView(&links[i], baseURL)
	}
	return views, nil
}

// ownedLink loads a live link and checks that actorID owns it
func (s *Service) ownedLink(ctx context.Context, op, code, actorID, verb string) (*models.Link, error) {
	link, err := s.store.FindLiveLinkByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.E(op, apperr.NotFound, "URL not found")
	}
	if err != nil {
		return nil, apperr.Wrap(op, apperr.Internal, "failed to look up link", err)
	}
	if !link.OwnedBy(actorID) {
		return nil, apperr.E(op, apperr.Forbidden, "You do not have permission to "+verb+" this URL")
	}
	return link, nil
}

// Update replaces the target URL of a link owned by actorID
func (s *Service) Update(ctx context.Context, code, originalURL, actorID, baseURL string) (LinkView, error) {
	const op = "links.Update"

	link, err := s.ownedLink(ctx, op, code, actorID, "edit")
	if err != nil {
		return LinkView{}, err
	}

	if err := s.store.UpdateLinkURL(ctx, link.ID, originalURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LinkView{}, apperr.E(op, apperr.NotFound, "URL not found")
		}
		return LinkView{}, apperr.Wrap(op, apperr.Internal, "failed to update link", err)
	}

	updated, err := s.store.FindLiveLinkByCode(ctx, code)
	if err != nil {
		return LinkView{}, apperr.Wrap(op, apperr.Internal, "failed to load link", err)
	}
	return NewView(updated, baseURL), nil
}

// Delete soft deletes a link owned by actorID
func (s *Service) Delete(ctx context.Context, code, actorID string) error {
	const op = "links.Delete"

	link, err := s.ownedLink(ctx, op, code, actorID, "delete")
	if err != nil {
		return err
	}

	if err := s.store.SoftDeleteLink(ctx, link.ID, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.E(op, apperr.NotFound, "URL not found")
		}
		return apperr.Wrap(op, apperr.Internal, "failed to delete link", err)
	}

	s.logger.InfoContext(ctx, "link deleted", "short_code", code)
	return nil
}

// Stats returns the current view of a live link whatever its active or expiry state
func (s *Service) Stats(ctx context.Context, code, baseURL string) (LinkView, error) {
	const op = "links.Stats"

	link, err := s.store.FindLiveLinkByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return LinkView{}, apperr.E(op, apperr.NotFound, "Short URL not found")
	}
	if err != nil {
		return LinkView{}, apperr.Wrap(op, apperr.Internal, "failed to look up link", err)
	}
	return NewView(link, baseURL), nil
}
