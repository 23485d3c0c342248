package middleware

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/jwt"
	"github.com/MrEthical07/authd/password"
)

type noUsers struct{}

func (noUsers) GetUserByEmail(context.Context, string) (authd.UserRecord, error) {
	return authd.UserRecord{}, authd.ErrUserNotFound
}
func (noUsers) GetUserByID(context.Context, string) (authd.UserRecord, error) {
	return authd.UserRecord{}, authd.ErrUserNotFound
}
func (noUsers) CreatePendingUser(context.Context, authd.UserRecord) error { return nil }
func (noUsers) ConfirmUser(context.Context, string) error                { return nil }
func (noUsers) UpdatePasswordHash(context.Context, string, string) error { return nil }
func (noUsers) DeleteUser(context.Context, string) error                 { return nil }
func (noUsers) PurgeUnverified(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newEngine(t *testing.T) (*authd.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := authd.DefaultConfig()
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32, MaxPasswordBytes: 1024}
	cfg.Workers = authd.WorkersConfig{
		HashPassword:   authd.PoolConfig{Workers: 1, QueueDepth: 4},
		VerifyPassword: authd.PoolConfig{Workers: 1, QueueDepth: 4},
		VerifyEmail:    authd.PoolConfig{Workers: 1, QueueDepth: 4},
	}

	engine, err := authd.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithKeys(jwt.Config{PrivateKey: key, PublicKey: &key.PublicKey}).
		WithUserProvider(noUsers{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
	})
	return engine, mr
}

func requestWith(s *authd.Session, access, refresh bool) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if s == nil {
		return req
	}
	if access {
		req.AddCookie(&http.Cookie{Name: authd.AccessCookieName, Value: s.AccessToken})
	}
	if refresh {
		req.AddCookie(&http.Cookie{Name: authd.RefreshCookieName, Value: s.RefreshToken})
	}
	return req
}

func statusHandler(got *authd.AuthInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := AuthInfoFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		*got = info
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestResolverStoresClassification(t *testing.T) {
	engine, _ := newEngine(t)
	s, err := engine.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	tests := []struct {
		name    string
		access  bool
		refresh bool
		want    authd.AuthStatus
	}{
		{name: "none", want: authd.Unauthorized},
		{name: "access", access: true, want: authd.Authorized},
		{name: "refresh", refresh: true, want: authd.RefreshActive},
		{name: "both", access: true, refresh: true, want: authd.Authorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got authd.AuthInfo
			rec := httptest.NewRecorder()
			Resolver(engine)(statusHandler(&got)).ServeHTTP(rec, requestWith(s, tc.access, tc.refresh))

			if rec.Code != http.StatusNoContent {
				t.Fatalf("expected handler to run, got %d", rec.Code)
			}
			if got.Status != tc.want {
				t.Fatalf("got %v want %v", got.Status, tc.want)
			}
		})
	}
}

func TestResolverAcceptsBearerHeader(t *testing.T) {
	engine, _ := newEngine(t)
	s, err := engine.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)

	var got authd.AuthInfo
	Resolver(engine)(statusHandler(&got)).ServeHTTP(httptest.NewRecorder(), req)
	if got.Status != authd.Authorized || got.SubjectID() != "u1" {
		t.Fatalf("unexpected info: %+v", got)
	}
}

func TestRotatingResolverRotatesOnce(t *testing.T) {
	engine, _ := newEngine(t)
	s, err := engine.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	var got authd.AuthInfo
	rec := httptest.NewRecorder()
	RotatingResolver(engine)(statusHandler(&got)).ServeHTTP(rec, requestWith(s, false, true))

	if got.Status != authd.Authorized {
		t.Fatalf("expected rotation to authorize, got %v", got.Status)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 new cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Value == "" || c.MaxAge <= 0 {
			t.Fatalf("expected a fresh cookie, got %+v", c)
		}
	}

	// Same refresh token again: the marker is gone.
	rec = httptest.NewRecorder()
	RotatingResolver(engine)(statusHandler(&got)).ServeHTTP(rec, requestWith(s, false, true))
	if got.Status != authd.Unauthorized {
		t.Fatalf("expected replay to degrade to Unauthorized, got %v", got.Status)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Value != "" || c.MaxAge >= 0 {
			t.Fatalf("expected cleared cookie, got %+v", c)
		}
	}
}

func TestRotatingResolverDegradesOnBackendFailure(t *testing.T) {
	engine, mr := newEngine(t)
	s, err := engine.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	mr.Close()

	var got authd.AuthInfo
	rec := httptest.NewRecorder()
	RotatingResolver(engine)(statusHandler(&got)).ServeHTTP(rec, requestWith(s, false, true))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected the handler to run, got %d", rec.Code)
	}
	if got.Status != authd.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", got.Status)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("expected cookies untouched on a backend failure")
	}
}

func TestRequireAuthorized(t *testing.T) {
	engine, _ := newEngine(t)
	s, err := engine.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	var got authd.AuthInfo
	h := RequireAuthorized(engine)(statusHandler(&got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(s, true, false))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected access, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(s, false, true))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh-only, got %d", rec.Code)
	}

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Error != "Unauthorized" {
		t.Fatalf("unexpected body: %+v", body)
	}

	// JWT-only: a revoked session still passes.
	if err := engine.RevokeAll(context.Background(), "u1"); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(s, true, false))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected JWT-only guard to pass, got %d", rec.Code)
	}
}

func TestRequireLiveRejectsRevokedSession(t *testing.T) {
	engine, _ := newEngine(t)
	s, err := engine.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	var got authd.AuthInfo
	h := Resolver(engine)(RequireLive(engine)(statusHandler(&got)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(s, true, true))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected access, got %d", rec.Code)
	}

	if err := engine.RevokeAll(context.Background(), "u1"); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(s, true, true))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revocation, got %d", rec.Code)
	}
}

func TestRequireLiveBackendFailure(t *testing.T) {
	engine, mr := newEngine(t)
	s, err := engine.CreateSession(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	mr.Close()

	var got authd.AuthInfo
	rec := httptest.NewRecorder()
	RequireLive(engine)(statusHandler(&got)).ServeHTTP(rec, requestWith(s, true, false))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGuardNilEngine(t *testing.T) {
	var got authd.AuthInfo
	rec := httptest.NewRecorder()
	Guard(nil, ModeJWTOnly)(statusHandler(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
