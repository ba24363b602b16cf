package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/sentinel-accounts/internal/config"
	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
	"github.com/FilipeAphrody/sentinel-accounts/pkg/security"
)

// Opaque token sizes in bytes, hex encoded on the wire.
const (
	VerificationTokenBytes = 16
	ResetTokenBytes        = 32
)

// AuthDeps groups the collaborators of AuthUsecase.
type AuthDeps struct {
	Users    domain.UserRepository
	Sessions domain.SessionRepository
	Profiles domain.ProfileRepository
	Activity domain.ActivityRecorder
	Mailer   domain.Mailer
	Codec    *security.TokenCodec
	Hasher   *security.PasswordHasher
	Tokens   *security.TokenGenerator
	MFA      *security.MFAProvider
	Logger   logging.Logger
	Clock    func() time.Time
}

// AuthUsecase drives the account lifecycle: registration, email
// verification, login, logout and password reset.
type AuthUsecase struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	profiles domain.ProfileRepository
	mailer   domain.Mailer
	codec    *security.TokenCodec
	hasher   *security.PasswordHasher
	tokens   *security.TokenGenerator
	mfa      *security.MFAProvider
	cfg      config.AuthConfig
	log      logging.Logger
	now      func() time.Time
	audit    auditTrail
}

func NewAuthUsecase(d AuthDeps, cfg config.AuthConfig) *AuthUsecase {
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("component", "auth")

	tokens := d.Tokens
	if tokens == nil {
		tokens = security.NewTokenGenerator(now)
	}

	return &AuthUsecase{
		users:    d.Users,
		sessions: d.Sessions,
		profiles: d.Profiles,
		mailer:   d.Mailer,
		codec:    d.Codec,
		hasher:   d.Hasher,
		tokens:   tokens,
		mfa:      d.MFA,
		cfg:      cfg,
		log:      log,
		now:      now,
		audit:    auditTrail{rec: d.Activity, log: log, now: now},
	}
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and mails its verification token.
// A mail failure does not undo the registration; it is reported through
// RegisterResult.VerificationSent.
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (*domain.RegisterResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	_, err := u.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	verify, err := u.tokens.ExpiringToken(VerificationTokenBytes, u.cfg.VerificationTTL)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	now := u.now().UTC()
	user := &domain.User{
		ID:                  uuid.NewString(),
		Email:               email,
		PasswordHash:        hash,
		Role:                domain.RoleUser,
		FirstName:           strings.TrimSpace(in.FirstName),
		LastName:            strings.TrimSpace(in.LastName),
		State:               domain.StateUnverified,
		VerificationToken:   verify.Token,
		VerificationExpires: verify.ExpiresAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := u.users.Create(ctx, user); err != nil {
		return nil, err
	}
	u.createProfile(ctx, user)

	sent := true
	if err := u.mailer.SendVerification(ctx, email, verify.Token); err != nil {
		sent = false
		u.log.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}

	u.audit.record(ctx, user.ID, domain.ActionUserRegistered, map[string]any{"verification_sent": sent})

	return &domain.RegisterResult{User: user.View(), VerificationSent: sent}, nil
}

// createProfile stores the empty profile of a new account. A failure is
// not fatal: ProfileUsecase creates the profile on first access instead.
func (u *AuthUsecase) createProfile(ctx context.Context, user *domain.User) {
	if u.profiles == nil {
		return
	}
	profile := &domain.Profile{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		UpdatedAt: user.CreatedAt,
	}
	if err := u.profiles.Create(ctx, profile); err != nil {
		u.log.Warn(ctx, "profile not created at registration", "user_id", user.ID, "error", err)
	}
}

// VerifyEmail redeems a verification token. Redemption is a single
// conditional write, so a token verifies at most once even under concurrent
// requests.
func (u *AuthUsecase) VerifyEmail(ctx context.Context, token string) (*domain.UserView, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	user, err := u.users.ConsumeVerificationToken(ctx, token, u.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}

	u.audit.record(ctx, user.ID, domain.ActionEmailVerified, nil)
	return user.View(), nil
}

// ResendVerification replaces the pending verification token of an
// unverified account. The outcome is never revealed to the caller.
func (u *AuthUsecase) ResendVerification(ctx context.Context, email string) error {
	user, err := u.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.IsVerified() {
		return nil
	}

	verify, err := u.tokens.ExpiringToken(VerificationTokenBytes, u.cfg.VerificationTTL)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	user.VerificationToken = verify.Token
	user.VerificationExpires = verify.ExpiresAt
	user.UpdatedAt = u.now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return err
	}

	if err := u.mailer.SendVerification(ctx, user.Email, verify.Token); err != nil {
		u.log.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}
	u.audit.record(ctx, user.ID, domain.ActionVerificationResent, nil)
	return nil
}

// Login handles the first step of authentication: validating credentials.
// Accounts with MFA enabled get a challenge token instead of a session.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	email = normalizeEmail(email)

	user, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Burn a hash computation so unknown emails take as long as wrong passwords.
		u.hasher.Compare(password, "")
		u.audit.record(ctx, "", domain.ActionLoginFailed, map[string]any{"email": email, "reason": "unknown_email"})
		return nil, domain.ErrUnauthorized
	}

	if !user.IsVerified() {
		return nil, domain.ErrForbidden
	}

	// 1. Verify Password using Argon2id
	if !u.hasher.Compare(password, user.PasswordHash) {
		u.audit.record(ctx, user.ID, domain.ActionLoginFailed, map[string]any{"reason": "bad_password"})
		return nil, domain.ErrUnauthorized
	}

	// 2. Check if Multi-Factor Authentication is required
	if user.MFAEnabled {
		challenge, err := u.codec.Issue(security.Subject{
			UserID:  user.ID,
			Role:    string(user.Role),
			Purpose: security.PurposeMFAChallenge,
		}, u.cfg.MFAChallengeTTL)
		if err != nil {
			return nil, fmt.Errorf("issue mfa challenge: %w", err)
		}
		return &domain.AuthResponse{
			MFARequired:    true,
			ChallengeToken: challenge,
			ExpiresIn:      int64(u.cfg.MFAChallengeTTL / time.Second),
		}, nil
	}

	// 3. If no MFA, generate the session immediately
	return u.startSession(ctx, user)
}

// VerifyMFA handles the second step: validating the TOTP code against the
// account named by the challenge token.
func (u *AuthUsecase) VerifyMFA(ctx context.Context, challenge, code string) (*domain.AuthResponse, error) {
	claims, err := u.codec.Verify(challenge)
	if err != nil || claims.Purpose != security.PurposeMFAChallenge {
		return nil, domain.ErrInvalidToken
	}

	user, err := u.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !user.MFAEnabled {
		return nil, domain.ErrInvalidToken
	}

	if !u.mfa.Verify(code, user.MFASecret) {
		u.audit.record(ctx, user.ID, domain.ActionMFAFailed, nil)
		return nil, fmt.Errorf("%w: invalid mfa code", domain.ErrUnauthorized)
	}

	return u.startSession(ctx, user)
}

// startSession issues the access token and tracks it as the user's current session.
func (u *AuthUsecase) startSession(ctx context.Context, user *domain.User) (*domain.AuthResponse, error) {
	token, err := u.codec.Issue(security.Subject{
		UserID:  user.ID,
		Role:    string(user.Role),
		Purpose: security.PurposeAccess,
	}, u.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	// Overwrites any previous session for this user.
	if err := u.sessions.Put(ctx, user.ID, token, u.cfg.SessionTTL); err != nil {
		return nil, err
	}

	u.audit.record(ctx, user.ID, domain.ActionUserLogin, nil)

	return &domain.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(u.cfg.SessionTTL / time.Second),
		User:        user.View(),
	}, nil
}

// Authenticate resolves a bearer token to its session. The token must verify
// and still be the session tracked for its subject.
func (u *AuthUsecase) Authenticate(ctx context.Context, token string) (*domain.SessionInfo, error) {
	claims, err := u.codec.Verify(token)
	if err != nil || claims.Purpose != security.PurposeAccess {
		return nil, domain.ErrInvalidToken
	}

	current, found, err := u.sessions.Get(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !found || subtle.ConstantTimeCompare([]byte(current), []byte(token)) != 1 {
		return nil, fmt.Errorf("%w: session revoked", domain.ErrInvalidToken)
	}

	return sessionInfo(claims), nil
}

// CurrentSession describes the session tracked for userID.
func (u *AuthUsecase) CurrentSession(ctx context.Context, userID string) (*domain.SessionInfo, error) {
	token, found, err := u.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: no active session", domain.ErrNotFound)
	}

	claims, err := u.codec.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: no active session", domain.ErrNotFound)
	}
	return sessionInfo(claims), nil
}

func sessionInfo(c *security.Claims) *domain.SessionInfo {
	info := &domain.SessionInfo{UserID: c.UserID, Role: domain.Role(c.Role)}
	if c.IssuedAt != nil {
		info.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info
}

// Logout drops the tracked session. Calling it without a session is not an error.
func (u *AuthUsecase) Logout(ctx context.Context, userID string) error {
	if err := u.sessions.Delete(ctx, userID); err != nil {
		return err
	}
	u.audit.record(ctx, userID, domain.ActionUserLogout, nil)
	return nil
}

// RevokeAllSessions invalidates every outstanding token of userID. With one
// tracked slot per user this is the same store operation as Logout.
func (u *AuthUsecase) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := u.sessions.Delete(ctx, userID); err != nil {
		return err
	}
	u.audit.record(ctx, userID, domain.ActionSessionsRevoked, nil)
	return nil
}

// RequestPasswordReset mails a reset token when the email belongs to an
// account. The caller always gets the same acknowledgment.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := u.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Debug(ctx, "password reset requested for unknown email")
			return nil
		}
		return err
	}

	reset, err := u.tokens.ExpiringToken(ResetTokenBytes, u.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	user.ResetToken = reset.Token
	user.ResetExpires = reset.ExpiresAt
	user.UpdatedAt = u.now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return err
	}

	if err := u.mailer.SendPasswordReset(ctx, user.Email, reset.Token); err != nil {
		u.log.Warn(ctx, "password reset email not sent", "user_id", user.ID, "error", err)
	}

	u.audit.record(ctx, user.ID, domain.ActionPasswordResetRequested, nil)
	return nil
}

// ResetPassword redeems a reset token, replaces the password and ends the
// user's session everywhere.
func (u *AuthUsecase) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return domain.ErrInvalidToken
	}
	hash, err := u.hashPassword(newPassword)
	if err != nil {
		return err
	}

	// Expired, unknown and already redeemed tokens are indistinguishable to the caller.
	user, err := u.users.ConsumeResetToken(ctx, token, u.now().UTC(), hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return err
	}

	if err := u.sessions.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke session after password reset: %w", err)
	}

	u.audit.record(ctx, user.ID, domain.ActionPasswordResetCompleted, nil)
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// re-checking the current one.
func (u *AuthUsecase) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.hasher.Compare(current, user.PasswordHash) {
		return domain.ErrUnauthorized
	}

	if err := u.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	u.audit.record(ctx, user.ID, domain.ActionPasswordChanged, nil)
	return nil
}

// setPassword stores a new hash, consumes any pending reset token and
// revokes the session.
func (u *AuthUsecase) setPassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := u.hashPassword(password)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.ClearResetToken()
	user.UpdatedAt = u.now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return err
	}

	if err := u.sessions.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke session after password change: %w", err)
	}
	return nil
}

// GetUser returns the sanitized account of userID.
func (u *AuthUsecase) GetUser(ctx context.Context, userID string) (*domain.UserView, error) {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.View(), nil
}

// UpdateUserRole changes the role of userID. The session is revoked because
// the outstanding token still carries the old role.
func (u *AuthUsecase) UpdateUserRole(ctx context.Context, actorID, userID string, role domain.Role) (*domain.UserView, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}

	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.Role
	if previous == role {
		return user.View(), nil
	}

	user.Role = role
	user.UpdatedAt = u.now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := u.sessions.Delete(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("revoke session after role change: %w", err)
	}

	u.audit.record(ctx, user.ID, domain.ActionRoleUpdated, map[string]any{
		"by":   actorID,
		"from": string(previous),
		"to":   string(role),
	})
	return user.View(), nil
}

func (u *AuthUsecase) hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", domain.ErrValidation)
	}
	hash, err := u.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
