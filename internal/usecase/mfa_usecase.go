package usecase

import (
	"context"
	"fmt"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
)

// SetupMFA generates a TOTP secret for the user. MFA stays disabled until
// EnableMFA confirms a code produced from it.
func (u *AuthUsecase) SetupMFA(ctx context.Context, userID string) (*domain.MFASetup, error) {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, fmt.Errorf("%w: mfa already enabled", domain.ErrConflict)
	}

	secret, uri, err := u.mfa.Enroll(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	user.MFASecret = secret
	user.UpdatedAt = u.now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return nil, err
	}

	return &domain.MFASetup{Secret: secret, QRCode: uri}, nil
}

// EnableMFA turns MFA on once the user proves possession of the secret.
func (u *AuthUsecase) EnableMFA(ctx context.Context, userID, code string) error {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		return fmt.Errorf("%w: mfa already enabled", domain.ErrConflict)
	}
	if user.MFASecret == "" {
		return fmt.Errorf("%w: mfa setup has not been started", domain.ErrValidation)
	}

	if !u.mfa.Verify(code, user.MFASecret) {
		u.audit.record(ctx, user.ID, domain.ActionMFAFailed, map[string]any{"stage": "enable"})
		return fmt.Errorf("%w: invalid mfa code", domain.ErrInvalidToken)
	}

	user.MFAEnabled = true
	user.UpdatedAt = u.now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return err
	}

	u.audit.record(ctx, user.ID, domain.ActionMFAEnabled, nil)
	return nil
}

// DisableMFA turns MFA off and discards the secret. The password is required.
func (u *AuthUsecase) DisableMFA(ctx context.Context, userID, password string) error {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.hasher.Compare(password, user.PasswordHash) {
		return domain.ErrUnauthorized
	}
	if !user.MFAEnabled && user.MFASecret == "" {
		return nil
	}

	user.MFAEnabled = false
	user.MFASecret = ""
	user.UpdatedAt = u.now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return err
	}

	u.audit.record(ctx, user.ID, domain.ActionMFADisabled, nil)
	return nil
}
