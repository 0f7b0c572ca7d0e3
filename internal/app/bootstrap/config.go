// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/system/auditlog"
	"github.com/dalemusser/venturecamp/internal/app/system/authclient"
	"github.com/dalemusser/venturecamp/internal/app/system/guard"
	"github.com/dalemusser/venturecamp/internal/app/system/identity/firebase"
	"github.com/dalemusser/venturecamp/internal/app/system/session"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Identity backend names.
const (
	BackendFirebase = "firebase"
	BackendLocal    = "local"
)

// appConfigKeys defines the configuration keys for VentureCamp.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, identity_backend, etc.
//   - Environment variables: VENTURECAMP_MONGO_URI, VENTURECAMP_IDENTITY_BACKEND, etc.
//   - Command-line flags: --mongo_uri, --identity_backend, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "venturecamp", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "identity_backend", Default: BackendFirebase, Desc: "Identity backend: 'firebase' or 'local'"},

	// Public web client configuration
	{Name: "firebase_api_key", Default: "", Desc: "Firebase web API key"},
	{Name: "firebase_auth_domain", Default: "", Desc: "Firebase auth domain"},
	{Name: "firebase_project_id", Default: "", Desc: "Firebase project ID"},
	{Name: "firebase_storage_bucket", Default: "", Desc: "Firebase storage bucket"},
	{Name: "firebase_messaging_sender_id", Default: "", Desc: "Firebase messaging sender ID"},
	{Name: "firebase_app_id", Default: "", Desc: "Firebase app ID"},
	{Name: "firebase_auth_emulator_host", Default: "", Desc: "Firebase Auth emulator host:port (blank for production)"},

	// Admin credentials
	{Name: "firebase_admin_project_id", Default: "", Desc: "Service account project ID"},
	{Name: "firebase_admin_client_email", Default: "", Desc: "Service account client email"},
	{Name: "firebase_admin_private_key", Default: "", Desc: "Service account private key (\\n escapes allowed)"},

	{Name: "local_signing_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Signing key for the local identity backend"},

	// Session cookie and guard
	{Name: "session_cookie_name", Default: session.DefaultCookieName, Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_policy", Default: "warn", Desc: "Session cookie failure policy: 'warn' or 'block'"},
	{Name: "guard_mode", Default: "cookie", Desc: "Route guard: 'cookie' (require session cookie) or 'client'"},
	{Name: "oauth_state_key", Default: "", Desc: "Key for the OAuth state binding cookie (blank: random per process)"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "External base URL used for OAuth callbacks"},

	// Federated providers
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},
	{Name: "github_client_id", Default: "", Desc: "GitHub OAuth client ID"},
	{Name: "github_client_secret", Default: "", Desc: "GitHub OAuth client secret"},
	{Name: "facebook_client_id", Default: "", Desc: "Facebook app ID"},
	{Name: "facebook_client_secret", Default: "", Desc: "Facebook app secret"},

	{Name: "signin_rate_per_minute", Default: 10, Desc: "Password sign-in attempts per client IP per minute (0 disables)"},
	{Name: "trust_proxy", Default: false, Desc: "Take the client IP from True-Client-IP/X-Real-IP/X-Forwarded-For (only behind a proxy that sets them)"},
	{Name: "state_cleanup_interval", Default: "5m", Desc: "How often expired OAuth states are purged"},
	{Name: "store_timeout", Default: "5s", Desc: "Timeout for profile and state store calls"},
	{Name: "identity_timeout", Default: "10s", Desc: "Timeout for identity provider round trips"},
	{Name: "audit_auth", Default: "all", Desc: "Auth event audit log: 'all', 'db', 'log' or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, VENTURECAMP_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "VENTURECAMP", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		IdentityBackend: strings.ToLower(strings.TrimSpace(appValues.String("identity_backend"))),

		// Public client config
		FirebaseAPIKey:            appValues.String("firebase_api_key"),
		FirebaseAuthDomain:        appValues.String("firebase_auth_domain"),
		FirebaseProjectID:         appValues.String("firebase_project_id"),
		FirebaseStorageBucket:     appValues.String("firebase_storage_bucket"),
		FirebaseMessagingSenderID: appValues.String("firebase_messaging_sender_id"),
		FirebaseAppID:             appValues.String("firebase_app_id"),
		FirebaseAuthEmulatorHost:  appValues.String("firebase_auth_emulator_host"),

		// Admin credentials
		FirebaseAdminProjectID:   appValues.String("firebase_admin_project_id"),
		FirebaseAdminClientEmail: appValues.String("firebase_admin_client_email"),
		FirebaseAdminPrivateKey:  firebase.ExpandKey(appValues.String("firebase_admin_private_key")),

		LocalSigningKey: appValues.String("local_signing_key"),

		// Session and guard
		SessionCookieName: appValues.String("session_cookie_name"),
		SessionDomain:     appValues.String("session_domain"),
		SessionPolicy:     appValues.String("session_policy"),
		GuardMode:         appValues.String("guard_mode"),
		OAuthStateKey:     appValues.String("oauth_state_key"),

		BaseURL: appValues.String("base_url"),

		// Providers
		GoogleClientID:       appValues.String("google_client_id"),
		GoogleClientSecret:   appValues.String("google_client_secret"),
		GitHubClientID:       appValues.String("github_client_id"),
		GitHubClientSecret:   appValues.String("github_client_secret"),
		FacebookClientID:     appValues.String("facebook_client_id"),
		FacebookClientSecret: appValues.String("facebook_client_secret"),

		SignInRatePerMinute:  appValues.Int("signin_rate_per_minute"),
		TrustProxy:           appValues.Bool("trust_proxy"),
		StateCleanupInterval: appValues.Duration("state_cleanup_interval", 5*time.Minute),
		StoreTimeout:         appValues.Duration("store_timeout", 5*time.Second),
		IdentityTimeout:      appValues.Duration("identity_timeout", 10*time.Second),

		AuditAuth: appValues.String("audit_auth"),
	}

	// The admin project defaults to the public project.
	if appCfg.FirebaseAdminProjectID == "" {
		appCfg.FirebaseAdminProjectID = appCfg.FirebaseProjectID
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Missing admin credentials are fatal only in production; elsewhere the
// lazy verifier reports them on first use and the session endpoint answers
// 500.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if _, err := authclient.ParseSessionPolicy(appCfg.SessionPolicy); err != nil {
		return err
	}
	if _, err := guard.ParseMode(appCfg.GuardMode); err != nil {
		return err
	}
	if _, err := auditlog.ParseMode(appCfg.AuditAuth); err != nil {
		return err
	}

	switch appCfg.IdentityBackend {
	case BackendLocal:
		if len(appCfg.LocalSigningKey) < 16 {
			return fmt.Errorf("local_signing_key must be at least 16 characters")
		}
		if coreCfg.Env == "prod" {
			// Accounts live in process memory and federated emails are
			// trusted on the provider's word.
			return fmt.Errorf("identity_backend=local is for development and tests; use firebase in prod")
		}
	case BackendFirebase:
		if appCfg.FirebaseAPIKey == "" {
			return fmt.Errorf("identity_backend=firebase requires firebase_api_key")
		}
		if coreCfg.Env == "prod" && appCfg.FirebaseAuthEmulatorHost == "" &&
			(appCfg.FirebaseAdminProjectID == "" || appCfg.FirebaseAdminClientEmail == "" || appCfg.FirebaseAdminPrivateKey == "") {
			return fmt.Errorf("production requires firebase_admin_project_id, firebase_admin_client_email and firebase_admin_private_key")
		}
	default:
		return fmt.Errorf("unknown identity_backend %q (want firebase or local)", appCfg.IdentityBackend)
	}

	return nil
}
