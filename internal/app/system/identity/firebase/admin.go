// internal/app/system/identity/firebase/admin.go
package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"google.golang.org/api/option"
)

// emulatorEnv is read by the admin SDK itself.
const emulatorEnv = "FIREBASE_AUTH_EMULATOR_HOST"

// ErrMissingCredentials is returned when the service account is incomplete.
var ErrMissingCredentials = errors.New("firebase admin: project id, client email and private key are required")

// AdminConfig carries the service account fields.
type AdminConfig struct {
	ProjectID   string
	ClientEmail string
	// PrivateKey may carry literal "\n" escapes, as env vars usually do.
	PrivateKey string
	// EmulatorHost points the SDK at a local auth emulator. Credentials are
	// not needed in that case.
	EmulatorHost string
}

// Admin is the identity.Verifier backed by the Firebase admin SDK.
type Admin struct {
	client *auth.Client
}

var _ identity.Verifier = (*Admin)(nil)

// NewAdmin initializes the admin SDK. Use it through identity.NewLazy so a
// failed init is retried instead of cached.
func NewAdmin(ctx context.Context, cfg AdminConfig) (*Admin, error) {
	var opts []option.ClientOption

	if cfg.EmulatorHost != "" {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("%w (emulator needs a project id)", ErrMissingCredentials)
		}
		if err := os.Setenv(emulatorEnv, cfg.EmulatorHost); err != nil {
			return nil, fmt.Errorf("firebase admin: set emulator host: %w", err)
		}
		opts = append(opts, option.WithoutAuthentication())
	} else {
		creds, err := serviceAccountJSON(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase admin: new app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase admin: auth client: %w", err)
	}
	return &Admin{client: client}, nil
}

func serviceAccountJSON(cfg AdminConfig) ([]byte, error) {
	if cfg.ProjectID == "" || cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		return nil, ErrMissingCredentials
	}
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   cfg.ProjectID,
		"client_email": cfg.ClientEmail,
		"private_key":  ExpandKey(cfg.PrivateKey),
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}

// ExpandKey turns literal "\n" sequences into newlines.
func ExpandKey(k string) string {
	return strings.ReplaceAll(k, `\n`, "\n")
}

func (a *Admin) VerifyIDToken(ctx context.Context, idToken string) (*identity.Token, error) {
	t, err := a.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, identity.NewError("verifyIdToken", idTokenCode(err), err)
	}
	return toToken(t), nil
}

func (a *Admin) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	c, err := a.client.SessionCookie(ctx, idToken, expiresIn)
	if err != nil {
		return "", identity.NewError("createSessionCookie", identity.CodeInternal, err)
	}
	return c, nil
}

func (a *Admin) VerifySessionCookie(ctx context.Context, cookie string) (*identity.Token, error) {
	t, err := a.client.VerifySessionCookie(ctx, cookie)
	if err != nil {
		return nil, identity.NewError("verifySessionCookie", sessionCookieCode(err), err)
	}
	return toToken(t), nil
}

// idTokenCode separates a rejected token from a verifier that could not
// check it, such as a failed certificate fetch.
func idTokenCode(err error) string {
	switch {
	case auth.IsUserDisabled(err):
		return identity.CodeUserDisabled
	case auth.IsIDTokenInvalid(err), auth.IsIDTokenExpired(err), auth.IsIDTokenRevoked(err):
		return identity.CodeInvalidIDToken
	}
	return identity.CodeInternal
}

func sessionCookieCode(err error) string {
	switch {
	case auth.IsUserDisabled(err):
		return identity.CodeUserDisabled
	case auth.IsSessionCookieInvalid(err), auth.IsSessionCookieExpired(err), auth.IsSessionCookieRevoked(err):
		return identity.CodeInvalidIDToken
	}
	return identity.CodeInternal
}

func toToken(t *auth.Token) *identity.Token {
	email, _ := t.Claims["email"].(string)
	return &identity.Token{
		UID:            t.UID,
		Email:          email,
		SignInProvider: t.Firebase.SignInProvider,
		IssuedAt:       time.Unix(t.IssuedAt, 0),
		ExpiresAt:      time.Unix(t.Expires, 0),
		Claims:         t.Claims,
	}
}
