package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
)

// Bounds of an activity listing.
const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
)

// ProfileDeps groups the collaborators of ProfileUsecase. Photos may be nil
// when no bucket is configured. History backs ListActivity.
type ProfileDeps struct {
	Profiles domain.ProfileRepository
	Users    domain.UserRepository
	Cache    domain.ProfileCache
	Photos   domain.PhotoStorage
	Activity domain.ActivityRecorder
	History  domain.ActivityReader
	Logger   logging.Logger
	Clock    func() time.Time
}

// ProfileUsecase serves profile reads through a cache and applies updates.
type ProfileUsecase struct {
	profiles domain.ProfileRepository
	users    domain.UserRepository
	cache    domain.ProfileCache
	photos   domain.PhotoStorage
	history  domain.ActivityReader
	log      logging.Logger
	now      func() time.Time
	audit    auditTrail
}

func NewProfileUsecase(d ProfileDeps) *ProfileUsecase {
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("component", "profile")

	return &ProfileUsecase{
		profiles: d.Profiles,
		users:    d.Users,
		cache:    d.Cache,
		photos:   d.Photos,
		history:  d.History,
		log:      log,
		now:      now,
		audit:    auditTrail{rec: d.Activity, log: log, now: now},
	}
}

// GetProfile is cache-aside: a cache hit skips the repository, a miss fills
// the cache. Cache failures fall through to the repository.
func (p *ProfileUsecase) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if p.cache != nil {
		cached, found, err := p.cache.Get(ctx, userID)
		if err != nil {
			p.log.Warn(ctx, "profile cache read failed", "user_id", userID, "error", err)
		} else if found {
			return cached, nil
		}
	}

	profile, err := p.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, profile); err != nil {
			p.log.Warn(ctx, "profile cache write failed", "user_id", userID, "error", err)
		}
	}
	return profile, nil
}

// load reads the stored profile, creating it from the account names the
// first time it is needed.
func (p *ProfileUsecase) load(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := p.profiles.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile = &domain.Profile{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		UpdatedAt: p.now().UTC(),
	}
	if err := p.profiles.Create(ctx, profile); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		// Created concurrently by another request.
		return p.profiles.Get(ctx, userID)
	}
	return profile, nil
}

// UpdateProfile applies a partial update and drops the cached copy.
func (p *ProfileUsecase) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	profile, err := p.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	upd.Apply(profile)
	profile.UpdatedAt = p.now().UTC()
	if err := p.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	p.invalidate(ctx, userID)

	p.audit.record(ctx, userID, domain.ActionProfileUpdated, map[string]any{"updates": upd})
	return profile, nil
}

// UploadPhoto stores a new profile photo, then removes the previous one.
func (p *ProfileUsecase) UploadPhoto(ctx context.Context, userID, contentType string, body io.Reader) (string, error) {
	if p.photos == nil {
		return "", fmt.Errorf("%w: photo storage is not configured", domain.ErrStoreUnavailable)
	}
	ext, ok := photoExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported photo type %q", domain.ErrValidation, contentType)
	}

	profile, err := p.load(ctx, userID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("profile-photos/%s/%s%s", userID, uuid.NewString(), ext)
	url, err := p.photos.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("%w: upload photo: %w", domain.ErrStoreUnavailable, err)
	}

	previous := profile.PhotoURL
	profile.PhotoURL = url
	profile.UpdatedAt = p.now().UTC()
	if err := p.profiles.Update(ctx, profile); err != nil {
		return "", err
	}
	p.invalidate(ctx, userID)

	if previous != "" {
		if err := p.photos.Delete(ctx, previous); err != nil {
			p.log.Warn(ctx, "previous photo not deleted", "user_id", userID, "url", previous, "error", err)
		}
	}

	p.audit.record(ctx, userID, domain.ActionProfilePhotoUpdated, nil)
	return url, nil
}

// DeletePhoto removes the current profile photo. The profile is cleared
// first; a failed object deletion only leaves an orphan in the bucket.
func (p *ProfileUsecase) DeletePhoto(ctx context.Context, userID string) error {
	if p.photos == nil {
		return fmt.Errorf("%w: photo storage is not configured", domain.ErrStoreUnavailable)
	}

	profile, err := p.load(ctx, userID)
	if err != nil {
		return err
	}
	if profile.PhotoURL == "" {
		return fmt.Errorf("%w: no profile photo", domain.ErrNotFound)
	}

	previous := profile.PhotoURL
	profile.PhotoURL = ""
	profile.UpdatedAt = p.now().UTC()
	if err := p.profiles.Update(ctx, profile); err != nil {
		return err
	}
	p.invalidate(ctx, userID)

	if err := p.photos.Delete(ctx, previous); err != nil {
		p.log.Warn(ctx, "photo object not deleted", "user_id", userID, "url", previous, "error", err)
	}

	p.audit.record(ctx, userID, domain.ActionProfilePhotoDeleted, nil)
	return nil
}

// ListActivity returns the newest activity entries of userID. limit is
// clamped to (0, MaxActivityLimit]; zero selects DefaultActivityLimit.
func (p *ProfileUsecase) ListActivity(ctx context.Context, userID string, limit int) ([]domain.ActivityEntry, error) {
	if p.history == nil {
		return nil, fmt.Errorf("%w: activity history is not configured", domain.ErrStoreUnavailable)
	}
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}

	if _, err := p.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return p.history.List(ctx, userID, limit)
}

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func (p *ProfileUsecase) invalidate(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx, userID); err != nil {
		p.log.Error(ctx, "profile cache invalidation failed", "user_id", userID, "error", err)
	}
}
