// Package di provides dependency injection configuration for the mirrord daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/mirrordapp/mirrord-server/internal/config"
	"github.com/mirrordapp/mirrord-server/internal/di/providers"
	"github.com/mirrordapp/mirrord-server/internal/engine"
	"github.com/mirrordapp/mirrord-server/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Event stream
	do.Provide(injector, providers.ProvideSSEManager)

	// Sync engine
	do.Provide(injector, providers.ProvideEngine)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns once the daemon is serving.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	cfg := do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	eng := do.MustInvoke[*engine.Engine](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	// Start syncing right away when the configuration names a source.
	// Otherwise the daemon idles until a start request arrives over the
	// control API.
	if cfg.Sync.SourceDir != "" {
		started := eng.Start(engine.Config{
			SourceDir:           cfg.Sync.SourceDir,
			TargetDir:           cfg.Sync.TargetDir,
			Extensions:          cfg.Sync.Extensions,
			AllowDeletion:       cfg.Sync.AllowDeletion,
			IncludeHidden:       cfg.Sync.IncludeHidden,
			UsePolling:          cfg.Sync.UsePolling,
			SyncImportArtifacts: cfg.Sync.SyncImportArtifacts,
		})
		if !started {
			log.Warn("Sync engine did not start; fix the configuration or start it via the API",
				"source_dir", cfg.Sync.SourceDir,
				"target_dir", cfg.Sync.TargetDir,
			)
		}
	} else {
		log.Info("No source directory configured, engine idle until started via the API")
	}

	return nil
}
