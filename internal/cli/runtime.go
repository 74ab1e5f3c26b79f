package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kortex/kortex/internal/agent"
	"github.com/kortex/kortex/internal/audit"
	"github.com/kortex/kortex/internal/config"
	"github.com/kortex/kortex/internal/memory"
	"github.com/kortex/kortex/internal/observer"
	"github.com/kortex/kortex/internal/provider"
	"github.com/kortex/kortex/internal/skills"
	"github.com/kortex/kortex/internal/telemetry"
	"github.com/kortex/kortex/internal/timeline"
	"github.com/kortex/kortex/internal/tools"
)

const timelineFile = "timeline.db"

// runtime holds the wired services shared by the commands.
type runtime struct {
	cfg          *config.Config
	gateway      *provider.Gateway
	catalog      *skills.Catalog
	retriever    *memory.Retriever
	loopTools    *tools.Registry
	mcpTools     *tools.Registry
	timeline     *timeline.TimelineService
	observer     *observer.Observer
	orchestrator *agent.Orchestrator

	closers []func(context.Context) error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupTelemetry configures slog and OpenTelemetry from cfg.
func setupTelemetry(cfg *config.Config) (telemetry.ShutdownFunc, error) {
	telemetry.ConfigureSlog(os.Stderr, cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat)
	return telemetry.Init("kortex", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		OTLPInsecure: cfg.Telemetry.Insecure,
	})
}

// newRuntime loads config and wires every service. Missing provider
// credentials are not an error here: they surface on the first model call.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg}

	shutdown, err := setupTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.closers = append(rt.closers, shutdown)

	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		rt.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	embedder, err := provider.BuildEmbedder(ctx, cfg)
	if err != nil {
		slog.Warn("Embeddings unavailable, memory recall uses substring search", "error", err)
		embedder = nil
	}
	rt.gateway = provider.NewGateway(provider.GatewayOptions{
		DefaultProvider: cfg.Model.Provider,
		Resolve:         provider.ConfigResolver(cfg),
		Embedder:        embedder,
		EmbedModel:      cfg.Memory.EmbedModel,
		MaxTokens:       cfg.Model.MaxTokens,
		Temperature:     cfg.Model.Temperature,
	})

	store, err := rt.openMemoryStore(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	var embed memory.EmbedFunc
	if embedder != nil {
		embed = rt.gateway.Embed
	}
	rt.retriever = memory.NewRetriever(store, embed)

	rt.catalog = newCatalog(cfg)

	exec := tools.NewCommandExecutor(cfg.Paths.Root, cfg.Tools.Exec.Timeout, cfg.Tools.Exec.MaxOutputBytes, cfg.Tools.Exec.DenyExtra)
	rt.loopTools = tools.NewBuiltinRegistry(exec, cfg.Tools.WritableGlobs)
	rt.mcpTools = tools.NewBuiltinRegistry(exec, cfg.Tools.WritableGlobs)
	tools.RegisterMemoryTools(rt.mcpTools, rt.retriever)

	rt.timeline, err = timeline.NewTimelineService(filepath.Join(cfg.Paths.DataDir, timelineFile))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open timeline: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return rt.timeline.Close() })

	publisher, err := newPublisher(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return publisher.Close() })

	rt.observer = observer.New(observer.Config{
		Provider: cfg.Model.Provider,
		Model:    classifierModel(cfg),
	}, rt.timeline, publisher, rt.gateway)

	loop := agent.NewExecutor(agent.ExecutorOptions{
		Gateway:  rt.gateway,
		Tools:    rt.loopTools,
		Provider: cfg.Model.Provider,
		Model:    cfg.Model.Name,
		MaxSteps: cfg.Model.MaxSteps,
		Spans:    rt.timeline,
	})
	rt.orchestrator = agent.NewOrchestrator(
		agent.NewClassifier(rt.gateway, rt.retriever, rt.catalog, cfg.Model.Provider, classifierModel(cfg)),
		agent.NewDispatcher(loop, rt.catalog, rt.retriever, rt.gateway),
		rt.catalog,
		rt.observer,
	)
	return rt, nil
}

// Close releases everything in reverse order of creation.
func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			slog.Debug("Close failed", "error", err)
		}
	}
	rt.closers = nil
}

func (rt *runtime) openMemoryStore(ctx context.Context) (memory.Store, error) {
	cfg := rt.cfg.Memory
	dim := provider.EmbedDimension(rt.cfg)
	switch cfg.Backend {
	case "qdrant":
		store, err := memory.NewQdrantStore(cfg.QdrantAddr, cfg.Collection, dim)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return store.Close() })
		ensureCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.EnsureCollection(ensureCtx); err != nil {
			slog.Warn("Qdrant collection unavailable", "addr", cfg.QdrantAddr, "error", err)
		}
		return store, nil
	default:
		if err := config.EnsureDir(filepath.Dir(cfg.DBPath)); err != nil {
			return nil, fmt.Errorf("create memory dir: %w", err)
		}
		store, err := memory.OpenSQLiteVecStore(ctx, cfg.DBPath, dim)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return store.Close() })
		return store, nil
	}
}

func newPublisher(cfg *config.Config) (audit.Publisher, error) {
	if !cfg.Audit.Enabled {
		return audit.Nop{}, nil
	}
	p, err := audit.NewKafkaPublisher(cfg.Audit.Brokers, cfg.Audit.Topic)
	if err != nil {
		return nil, fmt.Errorf("audit feed: %w", err)
	}
	slog.Info("Audit feed enabled", "topic", cfg.Audit.Topic)
	return p, nil
}

func newCatalog(cfg *config.Config) *skills.Catalog {
	return skills.NewCatalog(
		cfg.ResolvePath(cfg.Paths.SkillsIndex),
		cfg.ResolvePath(cfg.Paths.SkillsDir),
		skills.NewOverlay(cfg.ResolvePath(cfg.Paths.SkillsConfig)),
	)
}

func classifierModel(cfg *config.Config) string {
	if cfg.Model.ClassifierModel != "" {
		return cfg.Model.ClassifierModel
	}
	return cfg.Model.Name
}
