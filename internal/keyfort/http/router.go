package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/keyfortlabs/keyfort/internal/keyfort/service"
	"github.com/keyfortlabs/keyfort/internal/keyfort/store"
	"github.com/keyfortlabs/keyfort/pkg/httpx"
	"github.com/keyfortlabs/keyfort/pkg/slogx"

	_ "github.com/keyfortlabs/keyfort/api/keyfort" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	UserService    *service.UserService
	PasskeyService *service.PasskeyService
	TOTPService    *service.TOTPService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerIdentity()
	r.registerPasskeys()
	r.registerTOTP()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			KeyFort Authentication Service API
//	@version		0.1.0
//	@description	Multi-factor authentication service combining a password factor with
//	@description	WebAuthn passkeys and TOTP one-time codes. Each factor verifies
//	@description	independently; session issuance is left to the caller.
//
//	@contact.name	KeyFort Labs
//	@contact.url	https://github.com/keyfortlabs/keyfort
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:3000
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerIdentity() {
	h := &IdentityHandler{UserService: r.UserService}

	// POST /register - moderate rate limit (account creation)
	r.Mux.Handle("POST /v1/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /login - strict rate limit (password guessing)
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerPasskeys() {
	h := &PasskeyHandler{PasskeyService: r.PasskeyService, UserService: r.UserService}

	// Begin endpoints only mint challenges - moderate limit
	r.Mux.Handle("POST /v1/passkeys/register/begin",
		httpx.Chain(http.HandlerFunc(h.HandleRegisterBegin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/passkeys/login/begin",
		httpx.Chain(http.HandlerFunc(h.HandleLoginBegin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Finish endpoints verify signatures - strict limit
	r.Mux.Handle("POST /v1/passkeys/register/finish",
		httpx.Chain(http.HandlerFunc(h.HandleRegisterFinish),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/passkeys/login/finish",
		httpx.Chain(http.HandlerFunc(h.HandleLoginFinish),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTOTP() {
	h := &TOTPHandler{TOTPService: r.TOTPService}

	// POST /totp/enroll - moderate rate limit (generates a fresh secret)
	r.Mux.Handle("POST /v1/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Code verification endpoints - strict rate limit (6 digits brute force easily)
	r.Mux.Handle("POST /v1/totp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/totp/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
