// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig carries everything the auth core needs: the document store,
// the identity backend and its credentials, the session cookie, the route
// guard, and the federated providers.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Identity backend: "firebase" talks to Firebase Auth (or its emulator),
	// "local" is an in-process backend for development and tests.
	IdentityBackend string

	// Public web client configuration, exposed at /api/auth/config.
	FirebaseAPIKey            string
	FirebaseAuthDomain        string
	FirebaseProjectID         string
	FirebaseStorageBucket     string
	FirebaseMessagingSenderID string
	FirebaseAppID             string
	FirebaseAuthEmulatorHost  string // host:port; blank means production Firebase

	// Admin (service account) credentials used to verify tokens and mint
	// session cookies.
	FirebaseAdminProjectID   string
	FirebaseAdminClientEmail string
	FirebaseAdminPrivateKey  string // PEM; literal \n sequences are expanded

	LocalSigningKey string // HMAC key for the local backend

	// Session cookie and guard
	SessionCookieName string // default __session
	SessionDomain     string // blank means current host
	SessionPolicy     string // "warn" or "block"
	GuardMode         string // "cookie" or "client"
	OAuthStateKey     string // signs the federated state binding cookie

	// Externally visible origin, used for OAuth redirect URLs.
	BaseURL string

	// Federated providers (blank client id disables the provider)
	GoogleClientID       string
	GoogleClientSecret   string
	GitHubClientID       string
	GitHubClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string

	SignInRatePerMinute  int           // password sign-in attempts per client IP; 0 disables
	TrustProxy           bool          // rewrite RemoteAddr from proxy headers before routing
	StateCleanupInterval time.Duration // how often expired OAuth states are purged
	StoreTimeout         time.Duration
	IdentityTimeout      time.Duration

	AuditAuth string // auth event destination: all, db, log or off
}
