// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/venturecamp/internal/app/store/oauthstate"
	"github.com/dalemusser/venturecamp/internal/app/system/timeouts"
	"github.com/dalemusser/venturecamp/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It applies
// the configured timeouts and starts the OAuth state cleanup worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Store:    appCfg.StoreTimeout,
		Identity: appCfg.IdentityTimeout,
	}, logger)

	if appCfg.StateCleanupInterval > 0 && deps.MongoDatabase != nil {
		w := workers.NewStateCleanup(oauthstate.New(deps.MongoDatabase), logger, appCfg.StateCleanupInterval)
		w.Start()
		deps.bg.add(w.Stop)
	}
	return nil
}
