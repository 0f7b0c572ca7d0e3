// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	authapifeature "github.com/dalemusser/venturecamp/internal/app/features/authapi"
	errorsfeature "github.com/dalemusser/venturecamp/internal/app/features/errors"
	healthfeature "github.com/dalemusser/venturecamp/internal/app/features/health"
	homefeature "github.com/dalemusser/venturecamp/internal/app/features/home"
	sessionfeature "github.com/dalemusser/venturecamp/internal/app/features/session"
	"github.com/dalemusser/venturecamp/internal/app/store/audit"
	"github.com/dalemusser/venturecamp/internal/app/store/oauthstate"
	profilestore "github.com/dalemusser/venturecamp/internal/app/store/profiles"
	"github.com/dalemusser/venturecamp/internal/app/system/auditlog"
	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/dalemusser/venturecamp/internal/app/system/authclient"
	"github.com/dalemusser/venturecamp/internal/app/system/guard"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/metrics"
	"github.com/dalemusser/venturecamp/internal/app/system/ratelimit"
	"github.com/dalemusser/venturecamp/internal/app/system/routes"
	"github.com/dalemusser/venturecamp/internal/app/system/session"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// limiterIdleTTL is how long an idle client IP keeps its sign-in bucket.
const limiterIdleTTL = 10 * time.Minute

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// VentureCamp wires the identity backend, the session cookie issuer and the
// route guard, then mounts the auth API, the session endpoint, health,
// metrics, error pages and the signed-in home.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	idp, err := BuildIdentity(appCfg, logger)
	if err != nil {
		logger.Error("identity backend init failed", zap.Error(err))
		return nil, err
	}

	policy, err := authclient.ParseSessionPolicy(appCfg.SessionPolicy)
	if err != nil {
		return nil, err
	}
	mode, err := guard.ParseMode(appCfg.GuardMode)
	if err != nil {
		return nil, err
	}

	// Secure cookies are enabled in production mode.
	cookies := session.Cookies{
		Name:   appCfg.SessionCookieName,
		Domain: appCfg.SessionDomain,
		Secure: coreCfg.Env == "prod",
	}
	issuer := session.NewIssuer(idp.Verifier, cookies, rec)

	profiles := profilestore.New(deps.MongoDatabase)
	states := oauthstate.New(deps.MongoDatabase)
	providers := BuildProviders(appCfg)
	table := routes.Default()

	var limiter *ratelimit.Limiter
	if appCfg.SignInRatePerMinute > 0 {
		limiter = ratelimit.PerMinute(appCfg.SignInRatePerMinute, limiterIdleTTL)
		deps.bg.add(limiter.Stop)
	}

	sessions := auth.NewSessions(issuer, profiles, logger)
	auditLog := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{Auth: appCfg.AuditAuth})

	r := chi.NewRouter()

	if appCfg.TrustProxy {
		// Everything below, including the sign-in limiter, keys on RemoteAddr.
		r.Use(middleware.RealIP)
	}

	// The guard only looks for the cookie. LoadSessionUser verifies it and
	// makes the user available via auth.CurrentUser(r).
	r.Use(guard.New(mode, table, cookies, rec, logger).Middleware)
	r.Use(sessions.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	backendName := appCfg.IdentityBackend
	if appCfg.FirebaseAuthEmulatorHost != "" && backendName == BackendFirebase {
		backendName += "-emulator"
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, backendName, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", metrics.Handler(reg))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Session cookie mint and clear
	sessionHandler := sessionfeature.NewHandler(issuer, logger)
	r.Mount("/api/auth/session", sessionfeature.Routes(sessionHandler))

	authHandler := authapifeature.NewHandler(authapifeature.Config{
		Backend:   idp.Backend,
		Profiles:  profiles,
		States:    states,
		Providers: providers,
		Issuer:    issuer,
		Policy:    policy,
		Routes:    table,
		Limiter:   limiter,
		Public:    publicConfig(appCfg, providers.Configured()),
		Metrics:   rec,
		Audit:     auditLog,
		Log:       logger,
		StateKey:  []byte(appCfg.OAuthStateKey),
	})
	r.Mount("/api/auth", authapifeature.Routes(authHandler))

	// Error pages. Registered before "/" so the home subrouter inherits
	// the NotFound handler.
	errorsfeature.Mount(r, errorsfeature.NewHandler())

	homeHandler := homefeature.NewHandler(logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	logger.Info("handler built",
		zap.String("identity_backend", backendName),
		zap.String("session_policy", policy.String()),
		zap.String("guard_mode", mode.String()),
		zap.Int("federated_providers", len(providers.Configured())))

	return r, nil
}

func publicConfig(appCfg AppConfig, configured []identity.Provider) authapifeature.PublicConfig {
	names := make([]string, 0, len(configured))
	for _, p := range configured {
		names = append(names, p.String())
	}
	return authapifeature.PublicConfig{
		APIKey:            appCfg.FirebaseAPIKey,
		AuthDomain:        appCfg.FirebaseAuthDomain,
		ProjectID:         appCfg.FirebaseProjectID,
		StorageBucket:     appCfg.FirebaseStorageBucket,
		MessagingSenderID: appCfg.FirebaseMessagingSenderID,
		AppID:             appCfg.FirebaseAppID,
		EmulatorHost:      appCfg.FirebaseAuthEmulatorHost,
		Providers:         names,
	}
}
