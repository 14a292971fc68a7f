package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"voicecontrol/internal/observability"
)

// UserStore is the account persistence the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// SessionStore is the refresh-token session persistence the service needs.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	FindActiveSession(ctx context.Context, refreshToken string) (Session, error)
	RevokeSession(ctx context.Context, refreshToken string, now time.Time) error
	RotateSession(ctx context.Context, oldToken, newToken string, newExpiry, now time.Time) (Session, error)
}

// Service orchestrates registration, login, refresh and logout.
type Service struct {
	users     UserStore
	sessions  SessionStore
	guard     *AccountGuard
	passwords PasswordPolicy
	tokens    *TokenIssuer
	logger    *observability.Logger
}

func NewService(users UserStore, sessions SessionStore, guard *AccountGuard, passwords PasswordPolicy, tokens *TokenIssuer, logger *observability.Logger) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		guard:     guard,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

func (s *Service) Passwords() PasswordPolicy { return s.passwords }
func (s *Service) Tokens() *TokenIssuer      { return s.tokens }

// Register creates an account. Every validation runs before any write;
// uniqueness races slipping past the explicit checks are caught by the
// unique indexes at insert time.
func (s *Service) Register(ctx context.Context, email, username, password string, fullName *string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if err := ValidateEmail(email); err != nil {
		return User{}, err
	}
	if err := ValidateUsername(username); err != nil {
		return User{}, err
	}

	if exists, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return User{}, err
	} else if exists {
		return User{}, ErrDuplicateEmail
	}
	if exists, err := s.users.ExistsByUsername(ctx, username); err != nil {
		return User{}, err
	} else if exists {
		return User{}, ErrDuplicateUsername
	}

	if ok, violations := s.passwords.Strength(password); !ok {
		return User{}, WeakPasswordError{Violations: violations}
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return User{}, err
	}

	user, err := s.users.CreateUser(ctx, User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         RoleUser,
		IsActive:     true,
	})
	if err != nil {
		return User{}, err
	}

	s.logger.Info("user_registered", map[string]any{"user_id": user.ID})
	return user, nil
}

// Login authenticates by email or username. Unknown identifier and wrong
// password produce the same error; which one happened is logged, not
// returned.
func (s *Service) Login(ctx context.Context, identifier, password, clientIP, userAgent string) (TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	password = strings.TrimSpace(password)
	if identifier == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()

	user, err := s.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			observability.LoginAttempts.WithLabelValues("failure").Inc()
			s.logger.Info("login_failed", map[string]any{"reason": "unknown_identifier", "ip": clientIP})
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if s.guard.IsLocked(user, now) {
		observability.LoginAttempts.WithLabelValues("locked").Inc()
		s.logger.Info("login_rejected", map[string]any{"reason": "account_locked", "user_id": user.ID, "ip": clientIP})
		return TokenPair{}, AccountLockedError{Until: *user.LockedUntil}
	}

	if !user.IsActive {
		s.logger.Info("login_rejected", map[string]any{"reason": "account_disabled", "user_id": user.ID, "ip": clientIP})
		return TokenPair{}, ErrAccountDisabled
	}

	if !s.passwords.Verify(password, user.PasswordHash) {
		// A failure that trips the lock still reports invalid credentials;
		// the lock surfaces on the next attempt.
		if _, guardErr := s.guard.RecordFailure(ctx, user, now); guardErr != nil {
			return TokenPair{}, guardErr
		}
		observability.LoginAttempts.WithLabelValues("failure").Inc()
		s.logger.Info("login_failed", map[string]any{"reason": "bad_password", "user_id": user.ID, "ip": clientIP})
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.guard.RecordSuccess(ctx, user, now); err != nil {
		return TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return TokenPair{}, err
	}

	_, err = s.sessions.CreateSession(ctx, Session{
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.tokens.RefreshTTL()),
		ClientIP:     clientIP,
		UserAgent:    userAgent,
	})
	if err != nil {
		return TokenPair{}, err
	}

	observability.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.Info("login_succeeded", map[string]any{"user_id": user.ID, "ip": clientIP})
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair and rotates the backing
// session. The superseded token is unusable afterwards; a concurrent refresh
// with the same token yields ErrSessionExpired for the loser.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidToken
	}

	payload, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		observability.TokenRefreshes.WithLabelValues("rejected").Inc()
		s.logger.Info("refresh_rejected", map[string]any{"reason": err.Error()})
		return TokenPair{}, err
	}

	now := time.Now().UTC()

	if _, err := s.sessions.FindActiveSession(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			observability.TokenRefreshes.WithLabelValues("rejected").Inc()
			s.logger.Info("refresh_rejected", map[string]any{"reason": "no_active_session", "user_id": payload.Subject})
		}
		return TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(payload.Subject)
	if err != nil {
		return TokenPair{}, err
	}

	_, err = s.sessions.RotateSession(ctx, refreshToken, pair.RefreshToken, now.Add(s.tokens.RefreshTTL()), now)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			observability.TokenRefreshes.WithLabelValues("rejected").Inc()
		}
		return TokenPair{}, err
	}

	observability.TokenRefreshes.WithLabelValues("success").Inc()
	return pair, nil
}

// Logout revokes the session holding the token. A token with no session is
// not an error; logging out twice is a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	return s.sessions.RevokeSession(ctx, refreshToken, time.Now().UTC())
}
