package authd

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authd/jwt"
	"github.com/MrEthical07/authd/password"
)

type mockUserProvider struct {
	mu      sync.Mutex
	byID    map[string]UserRecord
	byEmail map[string]string
	err     error

	updatePasswordCalls int
	// updateGate, when set, holds UpdatePasswordHash until it is closed.
	updateGate chan struct{}
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		byID:    map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return UserRecord{}, m.err
	}
	id, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, subjectID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return UserRecord{}, m.err
	}
	u, ok := m.byID[subjectID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserProvider) CreatePendingUser(_ context.Context, user UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byEmail[user.Email]; ok {
		return ErrProviderDuplicateIdentifier
	}
	m.byID[user.SubjectID] = user
	m.byEmail[user.Email] = user.SubjectID
	return nil
}

func (m *mockUserProvider) ConfirmUser(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.byID[subjectID]
	if !ok {
		return ErrUserNotFound
	}
	u.Status = AccountActive
	m.byID[subjectID] = u
	return nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, subjectID, hash string) error {
	m.mu.Lock()
	gate := m.updateGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.byID[subjectID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.byID[subjectID] = u
	m.updatePasswordCalls++
	return nil
}

func (m *mockUserProvider) DeleteUser(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.byID[subjectID]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.byID, subjectID)
	delete(m.byEmail, u.Email)
	return nil
}

func (m *mockUserProvider) PurgeUnverified(_ context.Context, createdBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for id, u := range m.byID {
		if u.Status == AccountPendingVerification && u.CreatedAt.Before(createdBefore) {
			delete(m.byID, id)
			delete(m.byEmail, u.Email)
			n++
		}
	}
	return n, nil
}

func (m *mockUserProvider) passwordUpdates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePasswordCalls
}

func (m *mockUserProvider) user(subjectID string) (UserRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[subjectID]
	return u, ok
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []VerificationEmail
	got  chan VerificationEmail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{got: make(chan VerificationEmail, 64)}
}

func (f *fakeMailer) SendVerification(_ context.Context, batch []VerificationEmail) error {
	f.mu.Lock()
	f.sent = append(f.sent, batch...)
	f.mu.Unlock()
	for _, msg := range batch {
		f.got <- msg
	}
	return nil
}

func (f *fakeMailer) next(t *testing.T) VerificationEmail {
	t.Helper()
	select {
	case msg := <-f.got:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for verification email")
		return VerificationEmail{}
	}
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	users  *mockUserProvider
	mailer *fakeMailer
	key    *ecdsa.PrivateKey
}

func testPasswordConfig() password.Config {
	return password.Config{
		Memory:           8 * 1024,
		Time:             1,
		Parallelism:      1,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: 1024,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password = testPasswordConfig()
	cfg.Workers = WorkersConfig{
		HashPassword:   PoolConfig{Workers: 2, QueueDepth: 16},
		VerifyPassword: PoolConfig{Workers: 2, QueueDepth: 16},
		VerifyEmail:    PoolConfig{Workers: 1, QueueDepth: 16},
	}
	cfg.Cookie = CookieConfig{Domain: ".example.com", Secure: true}
	cfg.Metrics = MetricsConfig{Enabled: true, EnableLatencyHistograms: true}
	return cfg
}

func newTestKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func pemKeyPair(t testing.TB, key *ecdsa.PrivateKey) (string, string) {
	t.Helper()
	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	priv := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return string(priv), string(pub)
}

type envOption func(*Builder)

func withClock(now func() time.Time) envOption {
	return func(b *Builder) { b.WithClock(now) }
}

func newTestEnv(t testing.TB, cfg Config, opts ...envOption) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	key := newTestKey(t)
	users := newMockUserProvider()
	mailer := newFakeMailer()

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithKeys(jwt.Config{PrivateKey: key, PublicKey: &key.PublicKey}).
		WithUserProvider(users).
		WithMailer(mailer)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
	})

	return &testEnv{engine: engine, mr: mr, rdb: rdb, users: users, mailer: mailer, key: key}
}

// addUser stores an account directly, bypassing signup.
func (env *testEnv) addUser(t *testing.T, subjectID, email, plain string, status AccountStatus) UserRecord {
	t.Helper()
	hash, err := env.engine.hasher.Hash(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := UserRecord{
		SubjectID:    subjectID,
		Email:        email,
		PasswordHash: hash,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	if err := env.users.CreatePendingUser(context.Background(), u); err != nil {
		t.Fatalf("add user: %v", err)
	}
	return u
}

func (env *testEnv) login(t *testing.T) *Session {
	t.Helper()
	env.addUser(t, "u1", "alice@example.com", "correct-password-123", AccountActive)
	s, err := env.engine.Login(context.Background(), "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return s
}

func (env *testEnv) accessClaims(t *testing.T, s *Session) *jwt.Claims {
	t.Helper()
	c := env.engine.codec.Verify(s.AccessToken)
	if c == nil {
		t.Fatal("expected access token to verify")
	}
	return c
}

// offsetClock returns a clock shifted from real time. Token expiry is checked against real
// time, so tests shift instead of pinning an absolute instant.
type offsetClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *offsetClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

func (c *offsetClock) set(d time.Duration) {
	c.mu.Lock()
	c.offset = d
	c.mu.Unlock()
}
