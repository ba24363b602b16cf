package repository

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
)

// MemoryUserRepo is an in-process domain.UserRepository used for local runs
// (STORE_DRIVER=memory) and tests. Values are copied in and out so callers
// never share state with the store.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserRepo) ConsumeVerificationToken(_ context.Context, token string, now time.Time) (*domain.User, error) {
	return r.consume(token, func(u *domain.User) bool {
		if u.IsVerified() || !tokenHeld(token, u.VerificationToken, u.VerificationExpires, now) {
			return false
		}
		u.State = domain.StateVerified
		u.ClearVerificationToken()
		u.UpdatedAt = now
		return true
	})
}

func (r *MemoryUserRepo) ConsumeResetToken(_ context.Context, token string, now time.Time, passwordHash string) (*domain.User, error) {
	return r.consume(token, func(u *domain.User) bool {
		if !tokenHeld(token, u.ResetToken, u.ResetExpires, now) {
			return false
		}
		u.PasswordHash = passwordHash
		u.ClearResetToken()
		u.UpdatedAt = now
		return true
	})
}

// consume applies redeem to the first user it accepts. The check and the
// write happen under one write lock.
func (r *MemoryUserRepo) consume(token string, redeem func(*domain.User) bool) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.byID {
		if redeem(&u) {
			r.byID[id] = u
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func tokenHeld(given, stored string, expires, now time.Time) bool {
	if stored == "" || subtle.ConstantTimeCompare([]byte(given), []byte(stored)) != 1 {
		return false
	}
	return now.Before(expires)
}

func (r *MemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	if _, ok := r.byID[user.ID]; ok {
		return fmt.Errorf("%w: duplicate id", domain.ErrConflict)
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if prev.Email != user.Email {
		if _, taken := r.byEmail[user.Email]; taken {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		delete(r.byEmail, prev.Email)
		r.byEmail[user.Email] = user.ID
	}
	r.byID[user.ID] = *user
	return nil
}

// MemoryProfileRepo is the in-process domain.ProfileRepository.
type MemoryProfileRepo struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{profiles: make(map[string]domain.Profile)}
}

func (r *MemoryProfileRepo) Get(_ context.Context, userID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (r *MemoryProfileRepo) Create(_ context.Context, p *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.UserID]; ok {
		return fmt.Errorf("%w: profile already exists", domain.ErrConflict)
	}
	r.profiles[p.UserID] = *cloneProfile(*p)
	return nil
}

func (r *MemoryProfileRepo) Update(_ context.Context, p *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.UserID]; !ok {
		return domain.ErrNotFound
	}
	r.profiles[p.UserID] = *cloneProfile(*p)
	return nil
}

func cloneProfile(p domain.Profile) *domain.Profile {
	if p.BirthDate != nil {
		d := *p.BirthDate
		p.BirthDate = &d
	}
	return &p
}

// MemoryActivityRepo keeps the activity trail in a slice.
type MemoryActivityRepo struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
}

func NewMemoryActivityRepo() *MemoryActivityRepo {
	return &MemoryActivityRepo{}
}

func (r *MemoryActivityRepo) Record(_ context.Context, entry domain.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// List returns up to limit entries of userID, newest first.
func (r *MemoryActivityRepo) List(_ context.Context, userID string, limit int) ([]domain.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.ActivityEntry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

// Entries returns a snapshot of the recorded trail in insertion order.
func (r *MemoryActivityRepo) Entries() []domain.ActivityEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ActivityEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
