// Package account handles sign-in, sessions and the first-login onboarding wizard.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/events"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/notify"
	"github.com/user/cesto-ofertas-go/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// Service manages users and their sessions
type Service struct {
	store    store.Store
	notifier notify.Notifier
	events   events.Publisher
	// exposeCodes returns verification codes to the caller, for demo deployments
	exposeCodes bool
	now         func() time.Time
	newID       func() string
	newToken    func() string
	newCode     func() string
}

// NewService creates an account service. exposeCodes makes DispatchCodes
// return the generated codes, which is only meant for simulated delivery.
func NewService(s store.Store, notifier notify.Notifier, publisher events.Publisher, exposeCodes bool) *Service {
	if publisher == nil {
		publisher = events.NewBus()
	}
	return &Service{
		store:       s,
		notifier:    notifier,
		events:      publisher,
		exposeCodes: exposeCodes,
		now:         time.Now,
		newID:       uuid.NewString,
		newToken:    uuid.NewString,
		newCode:     VerificationCode,
	}
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SignIn checks credentials and opens a new session
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = normalizeEmail(email)
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email != email {
			continue
		}
		if !checkPassword(u.Password, password) {
			break
		}
		sess, err := s.openSession(ctx, &u)
		if err != nil {
			return nil, err
		}
		log.Info().Str("user", u.ID).Msg("User signed in")
		return sess, nil
	}
	log.Warn().Str("email", email).Msg("Rejected sign-in")
	return nil, fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)
}

// SignUp registers a new first-login account and signs it in
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	email = normalizeEmail(email)
	if !ValidEmail(email) {
		return nil, apperr.Invalid("email", "invalid email address")
	}
	if err := validPassword("password", password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := model.User{
		ID:         s.newID(),
		Email:      email,
		Password:   hash,
		Name:       nameFromEmail(email),
		FirstLogin: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = store.Update(ctx, s.store, store.UsersKey, func(all []model.User) ([]model.User, error) {
		for _, existing := range all {
			if existing.Email == email {
				return nil, fmt.Errorf("email %s already registered: %w", email, apperr.ErrConflict)
			}
		}
		return append(all, u), nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user", u.ID).Str("email", email).Msg("User signed up")
	if err := s.events.Publish(ctx, events.Event{Type: events.TypeUserSignedUp, UserID: u.ID}); err != nil {
		log.Warn().Err(err).Msg("Failed to publish event")
	}
	return s.openSession(ctx, &u)
}

// SignOut ends the session identified by token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, store.SessionKey(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Resolve returns the session for token or apperr.ErrUnauthorized
func (s *Service) Resolve(ctx context.Context, token string) (*model.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.ErrUnauthorized
	}
	var sess model.Session
	ok, err := store.GetJSON(ctx, s.store, store.SessionKey(token), &sess)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	return &sess, nil
}

// Me returns the session's user
func (s *Service) Me(ctx context.Context, sess *model.Session) (*model.User, error) {
	if err := apperr.RequireSession(sess); err != nil {
		return nil, err
	}
	return s.user(ctx, sess.UserID)
}

// Users lists every account. Only admins may do so.
func (s *Service) Users(ctx context.Context, sess *model.Session) ([]model.User, error) {
	if err := apperr.RequireAdmin(sess); err != nil {
		return nil, err
	}
	return s.users(ctx)
}

func (s *Service) users(ctx context.Context) ([]model.User, error) {
	return store.Load[model.User](ctx, s.store, store.UsersKey)
}

func (s *Service) user(ctx context.Context, id string) (*model.User, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
}

func (s *Service) openSession(ctx context.Context, u *model.User) (*model.Session, error) {
	sess := model.Session{
		Token:      s.newToken(),
		UserID:     u.ID,
		IsAdmin:    u.IsAdmin,
		FirstLogin: u.FirstLogin,
		CreatedAt:  s.now(),
	}
	if err := store.PutJSON(ctx, s.store, store.SessionKey(sess.Token), sess); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return &sess, nil
}
