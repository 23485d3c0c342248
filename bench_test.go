package authd

import (
	"context"
	"testing"
)

func BenchmarkResolve(b *testing.B) {
	env := newTestEnv(b, testConfig())
	s, err := env.engine.CreateSession(context.Background(), "u1")
	if err != nil {
		b.Fatalf("CreateSession failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if info := env.engine.Resolve(s.AccessToken, s.RefreshToken); info.Status != Authorized {
			b.Fatalf("status = %s", info.Status)
		}
	}
}

func BenchmarkIsLive(b *testing.B) {
	env := newTestEnv(b, testConfig())
	ctx := context.Background()
	s, err := env.engine.CreateSession(ctx, "u1")
	if err != nil {
		b.Fatalf("CreateSession failed: %v", err)
	}
	info := env.engine.Resolve(s.AccessToken, "")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		live, err := env.engine.IsLive(ctx, info.Access)
		if err != nil || !live {
			b.Fatalf("IsLive = %v, %v", live, err)
		}
	}
}

func BenchmarkRotateFromRefresh(b *testing.B) {
	cfg := testConfig()
	cfg.Security.EnableRefreshThrottle = false
	env := newTestEnv(b, cfg)
	ctx := context.Background()
	s, err := env.engine.CreateSession(ctx, "u1")
	if err != nil {
		b.Fatalf("CreateSession failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err = env.engine.Refresh(ctx, s.RefreshToken)
		if err != nil {
			b.Fatalf("Refresh failed: %v", err)
		}
	}
}
