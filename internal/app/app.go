package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vk/pointyflow/internal/config"
	"github.com/vk/pointyflow/internal/ctxlog"
	"github.com/vk/pointyflow/internal/executorpool"
	"github.com/vk/pointyflow/internal/manifest"
	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/remoteexec"
)

// AppConfig holds everything a CLI entrypoint gathers from flags before an
// App can run: where the Pointy-Lang source lives, where task manifests
// live, and the engine tuning knobs that have no sane compiled-in default.
type AppConfig struct {
	SourcePath      string
	ManifestsPath   string
	EngineConfig    string // path to an engine.hcl; empty uses config.Default()
	HealthcheckPort int
	LogFormat       string
	LogLevel        string
}

// App encapsulates the application's dependencies, configuration, and
// lifecycle: one App runs exactly one Pointy-Lang program to completion.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	registry   *registry.Registry
	engineCfg  *config.Config
	httpServer *http.Server
}

// NewApp constructs a fully initialized App: it loads task manifests,
// registers every compiled-in Go module (or the given override list), and
// validates that manifests and registered handlers agree before a single
// node of any graph is built.
func NewApp(ctx context.Context, outW io.Writer, appConfig *AppConfig, modules ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("logger configured")

	engineCfg := config.Default()
	if appConfig.EngineConfig != "" {
		loaded, err := config.Load(appConfig.EngineConfig)
		if err != nil {
			return nil, fmt.Errorf("app: loading engine config: %w", err)
		}
		engineCfg = loaded
	}
	if appConfig.ManifestsPath != "" {
		engineCfg.ManifestsPath = appConfig.ManifestsPath
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("go modules registered", "count", len(modules))

	manifests, err := manifest.Load(ctx, engineCfg.ManifestsPath)
	if err != nil {
		return nil, fmt.Errorf("app: loading task manifests: %w", err)
	}
	manifests.RegisterRemotes(reg)

	if err := reg.ValidateAgainstManifest(manifests.Declared()); err != nil {
		return nil, fmt.Errorf("app: registry/manifest mismatch: %w", err)
	}
	logger.Debug("task manifests validated against registry", "task_count", len(manifests.Tasks))

	return &App{
		outW:      outW,
		logger:    logger,
		registry:  reg,
		engineCfg: engineCfg,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// remoteTransport builds the remoteexec.Transport named by the engine
// config, or remoteexec.NoTransport if the config names neither "http" nor
// "socketio".
func (a *App) remoteTransport() remoteexec.Transport {
	switch a.engineCfg.RemoteTransport {
	case "http":
		return remoteexec.NewHTTPTransport(a.engineCfg.RemoteEndpoint)
	case "socketio":
		return remoteexec.NewSocketIOTransport(a.engineCfg.RemoteEndpoint, "/")
	default:
		return remoteexec.NoTransport{}
	}
}

func (a *App) executorPools() *executorpool.Pools {
	return executorpool.New(a.engineCfg.Pools)
}

func (a *App) deadline() time.Duration { return a.engineCfg.Deadline }
