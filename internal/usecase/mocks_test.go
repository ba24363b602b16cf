package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/FilipeAphrody/sentinel-accounts/internal/config"
	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/repository"
	"github.com/FilipeAphrody/sentinel-accounts/pkg/security"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeMailer keeps the last token sent to each address.
type fakeMailer struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
	err          error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{verification: map[string]string{}, reset: map[string]string{}}
}

func (m *fakeMailer) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.verification[email] = token
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reset[email] = token
	return nil
}

func (m *fakeMailer) verificationToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verification[email]
}

func (m *fakeMailer) resetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reset[email]
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, domain.ActivityEntry) error {
	return errors.New("activity store down")
}

// fakePhotos is an in-memory domain.PhotoStorage.
type fakePhotos struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{objects: map[string][]byte{}}
}

func (f *fakePhotos) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://photos.example.com/" + key
	f.objects[url] = data
	return url, nil
}

func (f *fakePhotos) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, url)
	f.deleted = append(f.deleted, url)
	return nil
}

var testAuthConfig = config.AuthConfig{
	JWTSecret:       "test-secret",
	JWTIssuer:       "sentinel-test",
	MFAIssuer:       "Sentinel Test",
	SessionTTL:      time.Hour,
	MFAChallengeTTL: 5 * time.Minute,
	VerificationTTL: 24 * time.Hour,
	ResetTTL:        time.Hour,
}

// Cheap argon2 parameters keep the suite fast.
var testHashParams = security.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1}

type testEnv struct {
	auth      *AuthUsecase
	profiles  *ProfileUsecase
	users     *repository.MemoryUserRepo
	profileDB *repository.MemoryProfileRepo
	sessions  *repository.RedisSessionRepo
	activity  *repository.MemoryActivityRepo
	mailer    *fakeMailer
	photos    *fakePhotos
	codec     *security.TokenCodec
	clock     *fakeClock
	redis     *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := newClock()
	env := &testEnv{
		users:     repository.NewMemoryUserRepo(),
		profileDB: repository.NewMemoryProfileRepo(),
		sessions:  repository.NewRedisSessionRepo(client),
		activity:  repository.NewMemoryActivityRepo(),
		mailer:    newFakeMailer(),
		photos:    newFakePhotos(),
		codec:     security.NewTokenCodec(testAuthConfig.JWTSecret, testAuthConfig.JWTIssuer, security.WithClock(clock.Now)),
		clock:     clock,
		redis:     mr,
	}

	env.auth = NewAuthUsecase(AuthDeps{
		Users:    env.users,
		Sessions: env.sessions,
		Profiles: env.profileDB,
		Activity: env.activity,
		Mailer:   env.mailer,
		Codec:    env.codec,
		Hasher:   security.NewPasswordHasher(testHashParams),
		MFA:      security.NewMFAProvider(testAuthConfig.MFAIssuer),
		Clock:    clock.Now,
	}, testAuthConfig)

	env.profiles = NewProfileUsecase(ProfileDeps{
		Profiles: env.profileDB,
		Users:    env.users,
		Cache:    repository.NewRedisProfileCache(client, time.Hour),
		Photos:   env.photos,
		Activity: env.activity,
		History:  env.activity,
		Clock:    clock.Now,
	})

	return env
}

func (e *testEnv) actions() []domain.Action {
	var out []domain.Action
	for _, entry := range e.activity.Entries() {
		out = append(out, entry.Action)
	}
	return out
}

// conflictingProfiles rejects every Create.
type conflictingProfiles struct {
	domain.ProfileRepository
}

func (conflictingProfiles) Create(context.Context, *domain.Profile) error {
	return errors.New("profiles table locked")
}

// limitRecorder remembers the limit it was asked for.
type limitRecorder struct {
	limit int
}

func (r *limitRecorder) List(_ context.Context, _ string, limit int) ([]domain.ActivityEntry, error) {
	r.limit = limit
	return nil, nil
}
