// Package service holds the Auth Core and the per-product access check.
// Services speak apperr kinds; repositories speak sentinel errors; the
// translation between the two happens here and nowhere else.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/learning-api/internal/apperr"
	"github.com/iliyamo/learning-api/internal/metrics"
	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/queue"
	"github.com/iliyamo/learning-api/internal/repository"
	"github.com/iliyamo/learning-api/internal/utils"
)

// ForgotPasswordMessage is returned whether or not the email exists.
const ForgotPasswordMessage = "If the email exists, a password reset link has been sent"

var (
	ErrEmailTaken          = apperr.New(apperr.KindDuplicateEmail, "User already exists")
	ErrInvalidCredentials  = apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")
	ErrWrongPassword       = apperr.New(apperr.KindInvalidCredentials, "Current password is incorrect")
	ErrInvalidRefreshToken = apperr.New(apperr.KindInvalidToken, "Invalid or expired refresh token")
	ErrInvalidResetToken   = apperr.New(apperr.KindInvalidOrExpiredToken, "Invalid or expired reset token")
	ErrUserNotFound        = apperr.New(apperr.KindNotFound, "User not found")
)

// AuthOptions tunes the Auth Core.
type AuthOptions struct {
	ResetTTL         time.Duration
	ExposeResetToken bool
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult is what Register and Login hand back to the client.
type AuthResult struct {
	User             model.SafeUser `json:"user"`
	AccessToken      string         `json:"accessToken"`
	RefreshToken     string         `json:"refreshToken"`
	AccessExpiresAt  time.Time      `json:"accessTokenExpiresAt"`
	RefreshExpiresAt time.Time      `json:"refreshTokenExpiresAt"`
}

type RefreshResult struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

// ForgotResult carries the raw reset token only when the deployment has
// opted into exposing it.
type ForgotResult struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken,omitempty"`
}

type AuthService struct {
	repos    Repositories
	tx       Transactor
	issuer   *utils.Issuer
	hasher   utils.PasswordHasher
	notifier ResetNotifier
	opts     AuthOptions
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time

	// dummyHash is compared against on unknown emails so Login spends the
	// same bcrypt time whether or not the account exists.
	dummyHash string
}

func NewAuthService(repos Repositories, tx Transactor, issuer *utils.Issuer, hasher utils.PasswordHasher,
	notifier ResetNotifier, opts AuthOptions, log logrus.FieldLogger, m *metrics.Metrics) (*AuthService, error) {
	if issuer == nil || hasher == nil || tx == nil {
		return nil, errors.New("auth service: issuer, hasher and transactor are required")
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}
	return &AuthService{
		repos:     repos,
		tx:        tx,
		issuer:    issuer,
		hasher:    hasher,
		notifier:  notifier,
		opts:      opts,
		log:       log,
		metrics:   m,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// WithClock replaces the service clock. Used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	cp := *s
	cp.now = now
	return &cp
}

func (s *AuthService) observe(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	s.metrics.AuthOperation(op, outcome)
}

// Register creates a USER account and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res AuthResult, err error) {
	defer func() { s.observe("register", err) }()

	email := repository.NormalizeEmail(in.Email)
	if _, err := s.repos.Users.GetByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("register: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("register: hash password: %w", err)
	}
	u := &model.User{Name: in.Name, Email: email, PasswordHash: hash, Role: model.RoleUser}
	// the account and its first refresh token are stored together
	err = s.tx.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := repos.Users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return ErrEmailTaken
			}
			return fmt.Errorf("register: create user: %w", err)
		}
		var err error
		res, err = s.signIn(ctx, repos.RefreshTokens, *u)
		return err
	})
	if err != nil {
		return AuthResult{}, err
	}
	return res, nil
}

// Login verifies credentials. Unknown email and wrong password return the
// same error value after the same amount of hashing work.
func (s *AuthService) Login(ctx context.Context, email, password string) (res AuthResult, err error) {
	defer func() { s.observe("login", err) }()

	u, err := s.repos.Users.GetByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(s.dummyHash, password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("login: lookup user: %w", err)
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.signIn(ctx, s.repos.RefreshTokens, u)
}

func (s *AuthService) signIn(ctx context.Context, tokens RefreshTokenRepository, u model.User) (AuthResult, error) {
	access, err := s.issuer.IssueAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.IssueRefreshToken(u.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Token), refresh.ExpiresAt); err != nil {
		return AuthResult{}, fmt.Errorf("store refresh token: %w", err)
	}
	return AuthResult{
		User:             u.Safe(),
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Refresh exchanges a stored, unexpired refresh token for a new access
// token. The owner is re-read so a role change shows up in the new token.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res RefreshResult, err error) {
	defer func() { s.observe("refresh", err) }()

	if refreshToken == "" {
		return RefreshResult{}, ErrInvalidRefreshToken
	}
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{}, ErrInvalidRefreshToken
	}
	hash := utils.HashToken(refreshToken)
	stored, err := s.repos.RefreshTokens.FindRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RefreshResult{}, ErrInvalidRefreshToken
		}
		return RefreshResult{}, fmt.Errorf("refresh: lookup token: %w", err)
	}
	if stored.UserID != claims.UserID {
		return RefreshResult{}, ErrInvalidRefreshToken
	}
	if stored.Expired(s.now()) {
		if err := s.repos.RefreshTokens.DeleteRefresh(ctx, hash); err != nil {
			s.log.WithError(err).Warn("refresh: delete expired token")
		}
		return RefreshResult{}, ErrInvalidRefreshToken
	}

	u, err := s.repos.Users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RefreshResult{}, ErrInvalidRefreshToken
		}
		return RefreshResult{}, fmt.Errorf("refresh: load user: %w", err)
	}
	access, err := s.issuer.IssueAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh: issue access token: %w", err)
	}
	return RefreshResult{AccessToken: access.Token, AccessExpiresAt: access.ExpiresAt}, nil
}

// Logout deletes the refresh token if it belongs to userID. A missing or
// foreign token is still a success.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) (err error) {
	defer func() { s.observe("logout", err) }()

	if refreshToken == "" {
		return nil
	}
	if err := s.repos.RefreshTokens.DeleteRefreshForUser(ctx, utils.HashToken(refreshToken), userID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// ForgotPassword issues a single-use reset token for an existing account.
// The response is the same for unknown emails.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (res ForgotResult, err error) {
	defer func() { s.observe("forgot_password", err) }()

	res = ForgotResult{Message: ForgotPasswordMessage}
	u, err := s.repos.Users.GetByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return res, nil
		}
		return ForgotResult{}, fmt.Errorf("forgot password: lookup user: %w", err)
	}

	raw, err := utils.RandomHex(32)
	if err != nil {
		return ForgotResult{}, fmt.Errorf("forgot password: token: %w", err)
	}
	now := s.now().UTC()
	exp := now.Add(s.opts.ResetTTL)
	if err := s.repos.ResetTokens.Create(ctx, u.ID, utils.HashToken(raw), exp); err != nil {
		return ForgotResult{}, fmt.Errorf("forgot password: store token: %w", err)
	}

	if s.notifier != nil {
		ev := queue.PasswordResetRequested{
			UserID: u.ID, Email: u.Email, Name: u.Name, Token: raw, ExpiresAt: exp, RequestedAt: now,
		}
		if err := s.notifier.NotifyPasswordReset(ctx, ev); err != nil {
			s.metrics.ResetNotification("failed")
			s.log.WithError(err).WithField("user_id", u.ID).Error("forgot password: reset notification not delivered")
		} else {
			s.metrics.ResetNotification("sent")
		}
	}
	if s.opts.ExposeResetToken {
		res.ResetToken = raw
	}
	return res, nil
}

// ResetPassword consumes a reset token. The password update, the token
// deletion and the revocation of every refresh token commit together.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (err error) {
	defer func() { s.observe("reset_password", err) }()

	if rawToken == "" {
		return ErrInvalidResetToken
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: hash: %w", err)
	}
	now := s.now()
	return s.tx.WithTx(ctx, func(ctx context.Context, r Repositories) error {
		tok, err := r.ResetTokens.FindByHash(ctx, utils.HashToken(rawToken))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("reset password: lookup token: %w", err)
		}
		if tok.Expired(now) {
			return ErrInvalidResetToken
		}
		if err := r.Users.UpdatePassword(ctx, tok.UserID, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("reset password: update: %w", err)
		}
		if err := r.ResetTokens.Delete(ctx, tok.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("reset password: consume token: %w", err)
		}
		if err := r.RefreshTokens.DeleteAllForUser(ctx, tok.UserID); err != nil {
			return fmt.Errorf("reset password: revoke sessions: %w", err)
		}
		return nil
	})
}

// ChangePassword replaces the password of an authenticated user and
// revokes every refresh token, atomically.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	defer func() { s.observe("change_password", err) }()

	u, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("change password: load user: %w", err)
	}
	if !s.hasher.Verify(u.PasswordHash, currentPassword) {
		return ErrWrongPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("change password: hash: %w", err)
	}
	return s.tx.WithTx(ctx, func(ctx context.Context, r Repositories) error {
		if err := r.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("change password: update: %w", err)
		}
		if err := r.RefreshTokens.DeleteAllForUser(ctx, u.ID); err != nil {
			return fmt.Errorf("change password: revoke sessions: %w", err)
		}
		return nil
	})
}
