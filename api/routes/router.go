package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perkpilot/backend/api/controllers"
	"github.com/perkpilot/backend/api/middleware"
	"github.com/perkpilot/backend/internal/auth"
	"github.com/perkpilot/backend/internal/forum"
	"github.com/perkpilot/backend/internal/licensing"
	"github.com/perkpilot/backend/internal/news"
	"github.com/perkpilot/backend/internal/payments"
	"github.com/perkpilot/backend/internal/templates"
	"github.com/perkpilot/backend/pkg/auth/session"
	"github.com/perkpilot/backend/pkg/config"
	"github.com/perkpilot/backend/pkg/enums"
	"github.com/perkpilot/backend/pkg/logger"
	"github.com/perkpilot/backend/pkg/metrics"
	"github.com/perkpilot/backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. Redis may be nil in tests;
// idempotency and rate limiting then pass through.
type Deps struct {
	Config            *config.Config
	Logger            *logger.Logger
	DB                controllers.Pinger
	Redis             *redis.Client
	Sessions          session.AccessSessionChecker
	AuthService       auth.Service
	LicensingService  licensing.Service
	LicenseKeySource  middleware.APIKeySource
	ForumService      forum.Service
	NewsService       news.Service
	TemplatesService  templates.Service
	PaymentsService   payments.Service
	ValidationMetrics *metrics.ValidationMetrics
	MetricsHandler    http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// Interface-typed nils misbehave downstream, so only hand redis over
	// when a client is actually present.
	var cache controllers.Pinger
	var idemStore redis.IdempotencyStore
	var limiter middleware.RateLimiterStore
	if deps.Redis != nil {
		cache = deps.Redis
		idemStore = deps.Redis
		limiter = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, deps.DB, cache))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/client/v1", func(r chi.Router) {
		validate := controllers.ValidateLicense(deps.LicensingService, deps.ValidationMetrics, logg)
		r.Get("/validate", validate)
		r.Post("/validate", validate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ClientAuth(deps.LicenseKeySource, logg))
			r.Get("/templates", controllers.ClientListTemplates(deps.TemplatesService, licensing.SystemClock(), logg))
		})
	})

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(deps.AuthService, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/forum", func(r chi.Router) {
			r.Get("/threads", controllers.ListForumThreads(deps.ForumService, logg))
			r.Post("/threads", controllers.CreateForumThread(deps.ForumService, logg))
			r.Get("/threads/{threadID}", controllers.GetForumThread(deps.ForumService, logg))
			r.Post("/threads/{threadID}/replies", controllers.ReplyForumThread(deps.ForumService, logg))
			r.With(requireAdmin(logg)).Post("/threads/{threadID}/lock", controllers.LockForumThread(deps.ForumService, logg))
			r.Delete("/posts/{postID}", controllers.DeleteForumPost(deps.ForumService, logg))
		})

		r.Route("/news", func(r chi.Router) {
			r.Get("/", controllers.ListNews(deps.NewsService, logg))
			r.Get("/{newsID}", controllers.GetNews(deps.NewsService, logg))
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", controllers.ListTemplates(deps.TemplatesService, logg))
			r.Get("/{templateID}", controllers.GetTemplate(deps.TemplatesService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(requireAdmin(logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/news", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateNews(deps.NewsService, logg))
			r.Put("/{newsID}", controllers.AdminUpdateNews(deps.NewsService, logg))
			r.Post("/{newsID}/publish", controllers.AdminPublishNews(deps.NewsService, logg))
			r.Delete("/{newsID}", controllers.AdminDeleteNews(deps.NewsService, logg))
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateTemplate(deps.TemplatesService, logg))
			r.Put("/{templateID}", controllers.AdminUpdateTemplate(deps.TemplatesService, logg))
			r.Patch("/{templateID}/active", controllers.AdminSetTemplateActive(deps.TemplatesService, logg))
			r.Delete("/{templateID}", controllers.AdminDeleteTemplate(deps.TemplatesService, logg))
		})

		r.Route("/users/{userID}/license", func(r chi.Router) {
			r.Get("/", controllers.AdminGetLicenseByUser(deps.LicensingService, logg))
			r.Post("/key", controllers.AdminIssueLicenseKey(deps.LicensingService, logg))
		})

		r.Route("/licenses", func(r chi.Router) {
			r.Get("/", controllers.AdminListLicenses(deps.LicensingService, logg))
			r.Post("/{licenseID}/revoke", controllers.AdminRevokeLicenseKey(deps.LicensingService, logg))
			r.Post("/{licenseID}/clear-binding", controllers.AdminClearLicenseBinding(deps.LicensingService, logg))
			r.Patch("/{licenseID}/role", controllers.AdminSetLicenseRole(deps.LicensingService, logg))
			r.Get("/{licenseID}/payments", controllers.AdminListPayments(deps.PaymentsService, logg))
			r.Post("/{licenseID}/payments", controllers.AdminRecordPayment(deps.PaymentsService, logg))
			r.Post("/{licenseID}/cancellation", controllers.AdminRecordCancellation(deps.PaymentsService, logg))
		})
	})

	return r
}

func requireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return middleware.RequireRole(enums.RoleAdmin.Label(), logg)
}
