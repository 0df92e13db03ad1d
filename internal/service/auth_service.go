package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/notes-auth/internal/logging"
	"github.com/iliyamo/notes-auth/internal/model"
	"github.com/iliyamo/notes-auth/internal/queue"
	"github.com/iliyamo/notes-auth/internal/repository"
	"github.com/iliyamo/notes-auth/internal/utils"
)

// UserStore persists credentials. Lookups report absence through the found
// flag rather than an error.
type UserStore interface {
	Create(ctx context.Context, user model.User) error
	FindByEmail(ctx context.Context, email string) (model.User, bool, error)
	FindByID(ctx context.Context, id string) (model.User, bool, error)
}

// RefreshTokenStore persists hashed refresh token records keyed by
// (user id, token hash).
type RefreshTokenStore interface {
	Save(ctx context.Context, rec model.RefreshToken) error
	Find(ctx context.Context, userID, tokenHash string) (model.RefreshToken, bool, error)
	Delete(ctx context.Context, userID, tokenHash string) error
	// Rotate atomically replaces the record oldHash with next. It returns
	// false and stores nothing when oldHash no longer exists.
	Rotate(ctx context.Context, userID, oldHash string, next model.RefreshToken) (bool, error)
}

// EventPublisher receives domain events. Delivery is best effort.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event queue.UserRegisteredEvent) error
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

const publishTimeout = 5 * time.Second

type AuthService struct {
	users  UserStore
	tokens RefreshTokenStore
	hasher SecretHasher
	signer *TokenSigner
	events EventPublisher
	clock  Clock
	log    logging.Logger
	newID  func() string

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	users UserStore,
	tokens RefreshTokenStore,
	hasher SecretHasher,
	signer *TokenSigner,
	events EventPublisher,
	clock Clock,
	log logging.Logger,
) *AuthService {
	if clock == nil {
		clock = NewRealClock()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		signer: signer,
		events: events,
		clock:  clock,
		log:    log,
		newID:  utils.NewID,
	}
}

// Register creates an account. The email is stored exactly as given; the
// unique index decides concurrent races and the loser gets ErrDuplicateEmail.
func (s *AuthService) Register(ctx context.Context, email, password string) (model.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		registerTotal.WithLabelValues(resultError).Inc()
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			registerTotal.WithLabelValues(resultDuplicate).Inc()
			s.log.Info(ctx, "register rejected: email taken")
			return model.User{}, ErrDuplicateEmail
		}
		registerTotal.WithLabelValues(resultError).Inc()
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	registerTotal.WithLabelValues(resultSuccess).Inc()
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	s.publishRegistered(ctx, user)
	return user, nil
}

func (s *AuthService) publishRegistered(ctx context.Context, user model.User) {
	if s.events == nil {
		return
	}
	// The account already exists; a slow or cancelled request must not
	// cancel the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	event := queue.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: user.CreatedAt.Format(time.RFC3339),
	}
	if err := s.events.PublishUserRegistered(pubCtx, event); err != nil {
		s.log.Warn(ctx, "publish user.registered failed", "user_id", user.ID, "error", err)
	}
}

// Login checks credentials and issues a fresh token pair. Unknown email and
// wrong password are indistinguishable, including in how long they take.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, found, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		loginTotal.WithLabelValues(resultError).Inc()
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if !found {
		s.hasher.Verify(password, s.dummy())
		loginTotal.WithLabelValues(resultInvalid).Inc()
		return TokenPair{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		loginTotal.WithLabelValues(resultInvalid).Inc()
		s.log.Info(ctx, "login rejected", "user_id", user.ID)
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		loginTotal.WithLabelValues(resultError).Inc()
		return TokenPair{}, err
	}
	if err := s.storeRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		loginTotal.WithLabelValues(resultError).Inc()
		return TokenPair{}, err
	}

	loginTotal.WithLabelValues(resultSuccess).Inc()
	s.log.Info(ctx, "login success", "user_id", user.ID)
	return pair, nil
}

// Refresh redeems a refresh token for a new pair. The presented record is
// consumed: a second redemption of the same token fails, and of two
// concurrent redemptions exactly one succeeds.
func (s *AuthService) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	raw := StripBearer(presented)

	userID, err := s.signer.Verify(raw, KindRefresh)
	if err != nil {
		refreshTotal.WithLabelValues(resultInvalid).Inc()
		return TokenPair{}, &AuthError{Kind: KindInvalidRefreshToken, Message: ErrInvalidRefreshToken.Message, Err: err}
	}

	user, found, err := s.users.FindByID(ctx, userID)
	if err != nil {
		refreshTotal.WithLabelValues(resultError).Inc()
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}
	if !found {
		refreshTotal.WithLabelValues(resultInvalid).Inc()
		return TokenPair{}, ErrInvalidRefreshToken
	}

	hash := HashRefreshToken(raw)
	rec, found, err := s.tokens.Find(ctx, user.ID, hash)
	if err != nil {
		refreshTotal.WithLabelValues(resultError).Inc()
		return TokenPair{}, fmt.Errorf("find refresh token: %w", err)
	}
	if !found {
		refreshTotal.WithLabelValues(resultInvalid).Inc()
		s.log.Info(ctx, "refresh rejected: unknown record", "user_id", user.ID)
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if rec.Expired(s.clock.Now()) {
		if err := s.tokens.Delete(ctx, user.ID, hash); err != nil {
			refreshTotal.WithLabelValues(resultError).Inc()
			return TokenPair{}, fmt.Errorf("delete expired refresh token: %w", err)
		}
		refreshTotal.WithLabelValues(resultExpired).Inc()
		return TokenPair{}, ErrExpiredRefreshToken
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		refreshTotal.WithLabelValues(resultError).Inc()
		return TokenPair{}, err
	}
	rotated, err := s.tokens.Rotate(ctx, user.ID, hash, s.newRecord(user.ID, pair.RefreshToken))
	if err != nil {
		refreshTotal.WithLabelValues(resultError).Inc()
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		refreshTotal.WithLabelValues(resultInvalid).Inc()
		s.log.Warn(ctx, "refresh rejected: record already redeemed", "user_id", user.ID)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	refreshTotal.WithLabelValues(resultSuccess).Inc()
	return pair, nil
}

func (s *AuthService) issuePair(userID string) (TokenPair, error) {
	access, err := s.signer.Issue(userID, KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.signer.Issue(userID, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) storeRefreshToken(ctx context.Context, userID, raw string) error {
	if err := s.tokens.Save(ctx, s.newRecord(userID, raw)); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) newRecord(userID, raw string) model.RefreshToken {
	now := s.clock.Now().UTC()
	return model.RefreshToken{
		UserID:    userID,
		TokenHash: HashRefreshToken(raw),
		ExpiresAt: now.Add(s.signer.TTL(KindRefresh)),
		CreatedAt: now,
	}
}

// dummy returns a hash of an unguessable secret, computed once, so that
// logins for unknown emails pay for one bcrypt comparison too.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(s.newID())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// HashRefreshToken returns base64(SHA-256(raw)) of a refresh token with any
// "Bearer " prefix removed. Only this digest is ever stored.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(StripBearer(raw)))
	return base64.StdEncoding.EncodeToString(sum[:])
}
