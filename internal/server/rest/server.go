// Package rest exposes the identity service as a JSON API on a chi router.
package rest

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/ratelimit"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options wires the server to its services. OAuthProvider and Limiter are
// optional; nil turns the feature off.
type Options struct {
	Users         *services.UserService
	Verifier      *services.SessionVerifier
	OAuth         *services.OAuthService
	OAuthProvider services.OAuthProvider
	Reset         *services.PasswordResetService
	Limiter       *ratelimit.Limiter
	Logger        logging.Logger

	// CookieSecret signs the short-lived OAuth state cookie.
	CookieSecret   []byte
	SecureCookies  bool
	FrontendURL    string
	AllowedOrigins []string

	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP replace the socket
	// address used for rate limiting and request logs.
	TrustProxyHeaders bool
}

type Server struct {
	users          *services.UserService
	verifier       *services.SessionVerifier
	oauth          *services.OAuthService
	provider       services.OAuthProvider
	reset          *services.PasswordResetService
	limiter        *ratelimit.Limiter
	logger         logging.Logger
	validate       *validator.Validate
	cookies        *sessions.CookieStore
	frontendURL    string
	allowedOrigins []string
	trustProxy     bool
}

func NewServer(o Options) *Server {
	store := sessions.NewCookieStore(o.CookieSecret)
	store.Options = &sessions.Options{
		Path:     "/auth/oauth",
		MaxAge:   10 * 60,
		HttpOnly: true,
		Secure:   o.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return &Server{
		users:          o.Users,
		verifier:       o.Verifier,
		oauth:          o.OAuth,
		provider:       o.OAuthProvider,
		reset:          o.Reset,
		limiter:        o.Limiter,
		logger:         o.Logger.With("module", "rest"),
		validate:       newValidator(),
		cookies:        store,
		frontendURL:    strings.TrimRight(o.FrontendURL, "/"),
		allowedOrigins: o.AllowedOrigins,
		trustProxy:     o.TrustProxyHeaders,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.logRequests)
	r.Use(recordMetrics)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.With(s.rateLimit("register")).Post("/register", s.handleRegister)
		r.With(s.rateLimit("login")).Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.With(s.rateLimit("forgot-password")).Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)
		r.Get("/oauth/start", s.handleOAuthStart)
		r.Get("/oauth/callback", s.handleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/me", s.handleMe)
			r.Get("/verify", s.handleVerify)
			r.Post("/logout", s.handleLogout)
			r.Put("/profile", s.handleUpdateProfile)
			r.Post("/change-password", s.handleChangePassword)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authenticate, s.requireRole(models.RoleAdmin))
		r.Get("/users/{id}", s.handleAdminGetUser)
		r.Put("/users/{id}/role", s.handleAdminSetRole)
	})

	return r
}
