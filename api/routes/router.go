package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomaskub292929/to-korea-sub000/api/controllers"
	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/internal/payments"
	"github.com/tomaskub292929/to-korea-sub000/internal/realtime"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
	"github.com/tomaskub292929/to-korea-sub000/pkg/metrics"
	"github.com/tomaskub292929/to-korea-sub000/pkg/redis"
)

// tokenService works on raw tokens and emailed action codes, none of which
// need a restored session.
type tokenService interface {
	Refresh(ctx context.Context, accessToken, refreshToken string) (*authprovider.Credential, error)
	SignOut(ctx context.Context, accessToken string) error
	ConfirmEmail(ctx context.Context, token string) (*authprovider.Account, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pingers map[string]controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	sessions middleware.SessionOpener,
	tokens tokenService,
	userManager *users.Manager,
	applicationService *applications.Service,
	paymentService *payments.Service,
	applicationHub *realtime.Hub[models.Application],
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.CORS),
	)

	// a nil *redis.Client must not reach the middlewares as a non-nil interface
	var (
		limiterStore     middleware.RateLimiterStore
		idempotencyStore redis.IdempotencyStore
	)
	if redisClient != nil {
		limiterStore = redisClient
		idempotencyStore = redisClient
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	resetPolicy := middleware.NewAuthRateLimitPolicy(
		"password_reset",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	loginLimit := middleware.AuthRateLimit(loginPolicy, limiterStore, logg)
	requireSession := middleware.Auth(sessions, logg)
	secureCookies := !cfg.App.IsDev()
	keepAlive := cfg.Realtime.StreamKeepAlive

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, limiterStore, logg), idempotent).Post("/register", controllers.AuthRegister(sessions, secureCookies, logg))
		r.With(loginLimit).Post("/login", controllers.AuthLogin(sessions, secureCookies, logg))
		r.With(loginLimit).Post("/google", controllers.AuthGoogle(sessions, secureCookies, logg))
		r.With(loginLimit).Post("/facebook", controllers.AuthFacebook(sessions, secureCookies, logg))
		r.Post("/refresh", controllers.AuthRefresh(tokens, secureCookies, logg))
		r.Post("/logout", controllers.AuthLogout(tokens, secureCookies, logg))
		r.With(requireSession).Post("/verify-email", controllers.AuthSendVerification(logg))
		r.Post("/verify-email/confirm", controllers.AuthConfirmEmail(tokens, userManager, logg))
		r.With(requireSession).Post("/reload", controllers.AuthReloadUser(logg))
		r.With(middleware.AuthRateLimit(resetPolicy, limiterStore, logg)).Post("/password-reset", controllers.AuthPasswordReset(sessions, logg))
		r.Post("/password-reset/confirm", controllers.AuthConfirmPasswordReset(tokens, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireSession)

		r.Get("/me", controllers.MeGet(logg))
		r.Patch("/me", controllers.MeUpdate(logg))

		r.Route("/applications", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.ApplicationCreate(applicationService, logg))
			r.Get("/", controllers.ApplicationListMine(applicationService, logg))
			r.Get("/stream", controllers.StreamMyApplications(applicationHub, keepAlive, logg))
			r.Route("/{applicationId}", func(r chi.Router) {
				r.Get("/", controllers.ApplicationGet(applicationService, logg))
				r.Get("/stream", controllers.StreamApplication(applicationHub, applicationService, keepAlive, logg))
				r.Patch("/steps/{step}", controllers.ApplicationUpdateStep(applicationService, logg))
				r.With(idempotent).Post("/submit", controllers.ApplicationSubmit(applicationService, logg))
				r.Post("/payment/quote", controllers.PaymentQuote(paymentService, logg))
				r.With(idempotent).Post("/payment", controllers.PaymentCharge(paymentService, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Route("/applications", func(r chi.Router) {
				r.Get("/", controllers.AdminListApplications(applicationService, logg))
				r.Get("/stream", controllers.StreamAllApplications(applicationHub, keepAlive, logg))
				r.With(idempotent).Patch("/{applicationId}/status", controllers.AdminUpdateApplicationStatus(applicationService, logg))
				r.Delete("/{applicationId}", controllers.AdminDeleteApplication(applicationService, logg))
			})
			r.Route("/users", func(r chi.Router) {
				r.Get("/", controllers.AdminListUsers(userManager, logg))
				r.Get("/admins", controllers.AdminListAdmins(userManager, logg))
				r.Delete("/{userId}", controllers.AdminDeleteUser(userManager, logg))
				r.With(middleware.RequireRole(enums.RoleSuperAdmin, logg), idempotent).Put("/{userId}/role", controllers.AdminAssignRole(userManager, logg))
			})
		})
	})

	return r
}
