package domain

import (
	"context"
	"io"
	"time"
)

// Location is the optional postal location of a profile.
type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
}

// Profile holds the user-editable public data of an account.
type Profile struct {
	UserID    string     `json:"user_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Phone     string     `json:"phone,omitempty"`
	Bio       string     `json:"bio,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Location  Location   `json:"location"`
	PhotoURL  string     `json:"photo_url,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Bio       *string    `json:"bio,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Location  *Location  `json:"location,omitempty"`
}

// Apply copies the set fields of upd onto p.
func (upd ProfileUpdate) Apply(p *Profile) {
	if upd.FirstName != nil {
		p.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = *upd.LastName
	}
	if upd.Phone != nil {
		p.Phone = *upd.Phone
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	if upd.BirthDate != nil {
		d := *upd.BirthDate
		p.BirthDate = &d
	}
	if upd.Location != nil {
		p.Location = *upd.Location
	}
}

// ProfileRepository persists profiles keyed by user id.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Create(ctx context.Context, profile *Profile) error
	Update(ctx context.Context, profile *Profile) error
}

// ProfileCache is a read-through cache in front of ProfileRepository.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*Profile, bool, error)
	Set(ctx context.Context, profile *Profile) error
	Invalidate(ctx context.Context, userID string) error
}

// PhotoStorage stores profile photos and returns their public URL.
type PhotoStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}
