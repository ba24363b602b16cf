package domain

import (
	"context"
	"time"
)

// Role is the RBAC role attached to a user account.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// VerificationState tracks whether the account email has been confirmed.
type VerificationState string

const (
	StateUnverified VerificationState = "unverified"
	StateVerified   VerificationState = "verified"
)

// User represents the central identity entity of the system.
type User struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"-"` // Never expose the password hash in JSON
	Role         Role              `json:"role"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	State        VerificationState `json:"verification_state"`

	// Pending single-use tokens. Empty when nothing is outstanding.
	VerificationToken   string    `json:"-"`
	VerificationExpires time.Time `json:"-"`
	ResetToken          string    `json:"-"`
	ResetExpires        time.Time `json:"-"`

	MFAEnabled bool   `json:"mfa_enabled"`
	MFASecret  string `json:"-"` // TOTP secret key

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsVerified reports whether the user confirmed their email address.
func (u *User) IsVerified() bool {
	return u.State == StateVerified
}

// ClearVerificationToken consumes the pending email verification token.
func (u *User) ClearVerificationToken() {
	u.VerificationToken = ""
	u.VerificationExpires = time.Time{}
}

// ClearResetToken consumes the pending password reset token.
func (u *User) ClearResetToken() {
	u.ResetToken = ""
	u.ResetExpires = time.Time{}
}

// View returns the sanitized representation handed to callers outside the core.
func (u *User) View() *UserView {
	return &UserView{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Verified:   u.IsVerified(),
		MFAEnabled: u.MFAEnabled,
		CreatedAt:  u.CreatedAt,
	}
}

// UserView is a User stripped of its password hash and token fields.
type UserView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Verified   bool      `json:"verified"`
	MFAEnabled bool      `json:"mfa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuthResponse defines the payload returned after a login attempt.
// When MFARequired is set only ChallengeToken is populated.
type AuthResponse struct {
	AccessToken    string    `json:"access_token,omitempty"`
	TokenType      string    `json:"token_type,omitempty"`
	ExpiresIn      int64     `json:"expires_in"`
	User           *UserView `json:"user,omitempty"`
	MFARequired    bool      `json:"mfa_required,omitempty"`
	ChallengeToken string    `json:"challenge_token,omitempty"`
}

// RegisterResult is returned by a successful registration.
type RegisterResult struct {
	User             *UserView `json:"user"`
	VerificationSent bool      `json:"verification_sent"`
}

// SessionInfo describes the session currently tracked for a user.
type SessionInfo struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MFASetup carries the enrollment data shown to the user once.
type MFASetup struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code_uri"`
}

// UserRepository defines the contract for user data persistence.
// Lookups return ErrNotFound when no row matches; transport failures wrap
// ErrStoreUnavailable.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error

	// ConsumeVerificationToken marks the unverified holder of token as
	// verified and clears the token in one atomic step. It returns ErrNotFound
	// when no unverified user holds token with an expiry after now, so a token
	// can be redeemed at most once.
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error)
	// ConsumeResetToken stores passwordHash for the holder of an unexpired
	// reset token and clears the token atomically. ErrNotFound otherwise.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*User, error)
}

// SessionRepository maps a user to its single tracked session token.
type SessionRepository interface {
	// Put overwrites any existing session for userID.
	Put(ctx context.Context, userID, token string, ttl time.Duration) error
	// Get reports found=false only when the key is absent. Transport
	// failures are returned as errors wrapping ErrStoreUnavailable.
	Get(ctx context.Context, userID string) (token string, found bool, err error)
	// Delete is idempotent.
	Delete(ctx context.Context, userID string) error
}

// Mailer delivers the account lifecycle emails.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}
