package domain

import (
	"context"
	"time"
)

// Action tags an entry of the activity trail.
type Action string

const (
	ActionUserRegistered         Action = "user_registered"
	ActionVerificationResent     Action = "verification_resent"
	ActionEmailVerified          Action = "email_verified"
	ActionUserLogin              Action = "user_login"
	ActionLoginFailed            Action = "login_failed"
	ActionUserLogout             Action = "user_logout"
	ActionSessionsRevoked        Action = "sessions_revoked"
	ActionPasswordResetRequested Action = "password_reset_requested"
	ActionPasswordResetCompleted Action = "password_reset_completed"
	ActionPasswordChanged        Action = "password_changed"
	ActionRoleUpdated            Action = "user_role_updated"
	ActionMFAEnabled             Action = "mfa_enabled"
	ActionMFADisabled            Action = "mfa_disabled"
	ActionMFAFailed              Action = "mfa_failed"
	ActionProfileUpdated         Action = "profile_updated"
	ActionProfilePhotoUpdated    Action = "profile_photo_updated"
	ActionProfilePhotoDeleted    Action = "profile_photo_deleted"
)

// ActivityEntry is an immutable audit record.
type ActivityEntry struct {
	UserID    string         `json:"user_id,omitempty"`
	Action    Action         `json:"action"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	IP        string         `json:"ip,omitempty"`
}

// ActivityRecorder appends entries to the audit trail.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityReader lists the trail of one user, newest first.
type ActivityReader interface {
	List(ctx context.Context, userID string, limit int) ([]ActivityEntry, error)
}

// ActivityLog is a trail that can be both written and read back.
type ActivityLog interface {
	ActivityRecorder
	ActivityReader
}
