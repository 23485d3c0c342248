package httpapi

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/middleware"
)

// TurnstileHeader carries the client's challenge token on create and login.
const TurnstileHeader = "CF-Turnstile-Response"

// Challenger verifies a bot-challenge token. *turnstile.Verifier implements it.
type Challenger interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Options wires the router. Engine is required; everything else is optional.
type Options struct {
	Engine *authd.Engine
	// Challenger, when set, is consulted on create and login.
	Challenger Challenger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Ready is checked by /healthz in addition to the token cache.
	Ready  func(ctx context.Context) error
	Logger *zap.Logger
	// RequestsPerMinute is the per-IP budget on /user routes; zero disables it.
	RequestsPerMinute int
}

type handler struct {
	engine     *authd.Engine
	challenger Challenger
	ready      func(ctx context.Context) error
	logger     *zap.Logger
}

// NewRouter returns the HTTP surface of the engine.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{
		engine:     opts.Engine,
		challenger: opts.Challenger,
		ready:      opts.Ready,
		logger:     logger,
	}
	limiter := NewRateLimiter(opts.RequestsPerMinute)

	r := chi.NewRouter()
	r.Use(chimw.RealIP, RequestLogger(logger), chimw.Recoverer)

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/user", func(r chi.Router) {
		r.Use(limiter.Handler, withClientIP, middleware.Resolver(opts.Engine))

		r.Post("/", h.create)
		r.Delete("/", h.delete)
		r.Patch("/verify", h.verify)
		r.Post("/login", h.login)
		r.Patch("/logout", h.logout)
		r.Patch("/refresh", h.refresh)
		r.With(middleware.RequireLive(opts.Engine)).Post("/session/extend", h.extend)
		r.With(middleware.RotatingResolver(opts.Engine), middleware.RequireLive(opts.Engine)).Get("/me", h.me)
	})

	return r
}

func withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(authd.WithClientIP(r.Context(), clientIP(r))))
	})
}

// clientIP strips the port from RemoteAddr. RealIP has already applied proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
