// internal/app/bootstrap/identity.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/venturecamp/internal/app/system/federated"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/identity/firebase"
	"github.com/dalemusser/venturecamp/internal/app/system/identity/local"
	"go.uber.org/zap"
)

// Identity is the pair of identity roles the app needs.
type Identity struct {
	Backend  identity.Backend
	Verifier identity.Verifier
}

// BuildIdentity selects the identity backend named in appCfg. The firebase
// admin verifier is created lazily on first use, so missing credentials
// surface as a failed session request instead of a failed boot.
func BuildIdentity(appCfg AppConfig, logger *zap.Logger) (Identity, error) {
	switch appCfg.IdentityBackend {
	case BackendLocal:
		b, err := local.New([]byte(appCfg.LocalSigningKey))
		if err != nil {
			return Identity{}, err
		}
		logger.Info("identity backend: local")
		return Identity{Backend: b, Verifier: b}, nil

	case BackendFirebase:
		opts := []firebase.Option{firebase.WithRequestURI(appCfg.BaseURL)}
		if appCfg.FirebaseAuthEmulatorHost != "" {
			opts = append(opts, firebase.WithEmulator(appCfg.FirebaseAuthEmulatorHost))
		}
		client, err := firebase.NewClient(context.Background(), appCfg.FirebaseAPIKey, opts...)
		if err != nil {
			return Identity{}, err
		}

		adminCfg := firebase.AdminConfig{
			ProjectID:    appCfg.FirebaseAdminProjectID,
			ClientEmail:  appCfg.FirebaseAdminClientEmail,
			PrivateKey:   appCfg.FirebaseAdminPrivateKey,
			EmulatorHost: appCfg.FirebaseAuthEmulatorHost,
		}
		verifier := identity.NewLazy(func(ctx context.Context) (identity.Verifier, error) {
			a, err := firebase.NewAdmin(ctx, adminCfg)
			if err != nil {
				logger.Error("firebase admin init failed", zap.Error(err))
				return nil, err
			}
			logger.Info("firebase admin initialized", zap.String("project_id", adminCfg.ProjectID))
			return a, nil
		})

		logger.Info("identity backend: firebase",
			zap.String("project_id", appCfg.FirebaseProjectID),
			zap.String("emulator", appCfg.FirebaseAuthEmulatorHost))
		return Identity{Backend: client, Verifier: verifier}, nil
	}
	return Identity{}, fmt.Errorf("unknown identity_backend %q", appCfg.IdentityBackend)
}

// BuildProviders registers an OAuth flow for every provider with credentials.
func BuildProviders(appCfg AppConfig) *federated.Registry {
	return federated.NewRegistry(appCfg.BaseURL, map[identity.Provider]federated.Credentials{
		identity.Google:   {ClientID: appCfg.GoogleClientID, ClientSecret: appCfg.GoogleClientSecret},
		identity.GitHub:   {ClientID: appCfg.GitHubClientID, ClientSecret: appCfg.GitHubClientSecret},
		identity.Facebook: {ClientID: appCfg.FacebookClientID, ClientSecret: appCfg.FacebookClientSecret},
	})
}
