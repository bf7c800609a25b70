package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/snipdev/snip/pkg/snip/apperr"
	"github.com/snipdev/snip/pkg/snip/models"
	"github.com/snipdev/snip/pkg/snip/store"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence the credential service needs
type UserStore interface {
	FindLiveUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindLiveUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// UserSummary is the public view of a user. It never carries the password hash.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Summarize builds the public view of a user
func Summarize(u *models.User) UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Session is what registration and login hand back
type Session struct {
	AccessToken string      `json:"access_token"`
	User        UserSummary `json:"user"`
}

// Service registers and authenticates users and issues their tokens
type Service struct {
	users  UserStore
	hasher Hasher
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewService creates a credential service
func NewService(users UserStore, hasher Hasher, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, hasher: hasher, tokens: tokens, logger: logger}
}

// NormalizeEmail trims and lower-cases an address for lookup and storage
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns a session for it
func (s *Service) Register(ctx context.Context, email, name, password string) (*Session, error) {
	const op = "auth.Register"
	email = NormalizeEmail(email)

	if len(password) > MaxPasswordBytes {
		return nil, apperr.E(op, apperr.BadRequest, "Password must be at most 72 bytes")
	}

	if _, err := s.users.FindLiveUserByEmail(ctx, email); err == nil {
		return nil, apperr.E(op, apperr.Conflict, "Email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(op, apperr.Internal, "failed to look up user", err)
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Wrap(op, apperr.BadRequest, "Password must be at most 72 bytes", err)
	}
	if err != nil {
		return nil, apperr.Wrap(op, apperr.Internal, "failed to process password", err)
	}

	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// A concurrent registration won the race for this email
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.E(op, apperr.Conflict, "Email already registered")
		}
		return nil, apperr.Wrap(op, apperr.Internal, "failed to create user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.issue(op, user)
}

// Login authenticates by email and password and returns a session
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	const op = "auth.Login"

	user, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.E(op, apperr.Unauthorized, "Invalid email or password")
	}
	return s.issue(op, user)
}

// ValidateCredentials returns the matching live, active user with the hash
// stripped, or nil when the email or password does not match.
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	const op = "auth.ValidateCredentials"

	user, err := s.users.FindLiveUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(op, apperr.Internal, "failed to look up user", err)
	}
	if !user.IsActive || !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil
	}

	user.PasswordHash = ""
	return user, nil
}

// ValidateToken verifies a bearer token and resolves the live, active user it names
func (s *Service) ValidateToken(ctx context.Context, token string) (UserSummary, error) {
	const op = "auth.ValidateToken"

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return UserSummary{}, apperr.Wrap(op, apperr.Unauthorized, "Token has expired", err)
		}
		return UserSummary{}, apperr.Wrap(op, apperr.Unauthorized, "Invalid token", err)
	}

	user, err := s.users.FindLiveUserByID(ctx, claims.UserID())
	if errors.Is(err, store.ErrNotFound) {
		return UserSummary{}, apperr.E(op, apperr.Unauthorized, "Invalid token")
	}
	if err != nil {
		return UserSummary{}, apperr.Wrap(op, apperr.Internal, "failed to look up user", err)
	}
	if !user.IsActive {
		return UserSummary{}, apperr.E(op, apperr.Unauthorized, "Invalid token")
	}
	return Summarize(user), nil
}

// Me returns the summary of a live user by id
func (s *Service) Me(ctx context.Context, userID string) (UserSummary, error) {
	const op = "auth.Me"

	user, err := s.users.FindLiveUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return UserSummary{}, apperr.E(op, apperr.NotFound, "User not found")
	}
	if err != nil {
		return UserSummary{}, apperr.Wrap(op, apperr.Internal, "failed to look up user", err)
	}
	return Summarize(user), nil
}

func (s *Service) issue(op string, user *models.User) (*Session, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.Internal, "failed to generate token", err)
	}
	return &Session{AccessToken: token, User: Summarize(user)}, nil
}
