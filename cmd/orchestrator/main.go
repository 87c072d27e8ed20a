// Command orchestrator runs the autonomous goal-driven control plane as a
// single long-lived process: the C10 Goal Monitor, C11 Task Executor, and
// C9 Health Manager (driven from the Monitor's reconciliation loop) all run
// as cooperative controllers against one Store. There is no transport layer
// here by design (spec §1 non-goals) — this binary's only job is to keep
// those controllers alive and shut them down in order on SIGINT/SIGTERM,
// using signal.NotifyContext in place of the signal channel of the teacher's
// example/cmd/assistant.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime/httpruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/config"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/cooldown"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/cooldown/memcooldown"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/cooldown/rediscooldown"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/deliverable"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/engine"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/engine/inmem"
	enginetemporal "github.com/potentialgenie/ai-team-orchestrator-sub002/internal/engine/temporal"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/executor"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/health"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/monitor"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/planner"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/recovery"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/mongostore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/thinking"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/toolregistry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/validator"
	temporalclient "go.temporal.io/sdk/client"
)

// services bundles every constructed component so shutdown can walk them in
// reverse dependency order, matching the teacher's practice of an explicit
// root struct instead of package-level globals.
type services struct {
	store    store.Store
	tel      telemetry.Telemetry
	executor *executor.Executor
	monitor  *monitor.Monitor
	engine   engine.Engine
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		os.Exit(1)
	}

	logger := svc.tel.Logger()
	logger.Info(ctx, "orchestrator starting",
		"store_backend", string(cfg.StoreBackend), "engine_backend", string(cfg.EngineBackend))

	if !cfg.DisableTaskExecutor {
		if err := svc.executor.Start(ctx); err != nil {
			logger.Error(ctx, "executor start failed", "error", err)
			os.Exit(1)
		}
	}
	if cfg.EnableGoalDrivenSystem {
		if err := svc.monitor.Start(ctx); err != nil {
			logger.Error(ctx, "monitor start failed", "error", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	logger.Info(context.Background(), "orchestrator shutting down")

	if cfg.EnableGoalDrivenSystem {
		svc.monitor.Stop()
	}
	if !cfg.DisableTaskExecutor {
		svc.executor.Stop()
	}
}

// build constructs every component named in spec §2/§6, wiring backends
// selected by cfg. It returns as soon as construction succeeds; Start/Stop
// lifecycle is the caller's responsibility.
func build(ctx context.Context, cfg config.Config) (*services, error) {
	st, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	tel, err := buildTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	runtime := httpruntime.New(cfg.AgentRuntimeBaseURL, nil)

	cooldowns, err := buildCooldowns(cfg)
	if err != nil {
		return nil, fmt.Errorf("cooldowns: %w", err)
	}

	eng, err := buildEngine(cfg, tel)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	deliv := deliverable.New(st, runtime, tel, cfg.ArtifactApprovalThreshold,
		cfg.GoalMonitorCacheMaxEntries, cfg.GoalMonitorCacheTTL)

	plan := planner.New(st, runtime, tel, cooldowns, deliv,
		cfg.CorrectiveTaskCooldown, cfg.MaxGoalDrivenTasksPerCycle)

	think := thinking.New(st, tel)
	analyser := recovery.New(st, tel, runtime, cfg.EnableAIRecoveryDecisions)

	tools := toolregistry.NoopRegistry{}

	exec := executor.New(st, runtime, tel, think, analyser, deliv, tools,
		cfg.MaxConcurrentTasks, cfg.MaxRecoveryAttemptsPerTask)

	var activitySource health.ActivitySource
	if cfg.EnableHealthMonitor {
		activitySource = exec
	}
	healthMgr := health.New(st, tel, activitySource, cfg.WorkspaceLockTTL, cfg.RecentActivityWindow)

	validate := validator.New(st, tel, plan)

	mon := monitor.New(st, tel, healthMgr, validate, plan, exec, cfg.GoalValidationInterval)

	if err := registerBootstrapWorkflow(ctx, eng, exec); err != nil {
		return nil, fmt.Errorf("engine bootstrap workflow: %w", err)
	}

	return &services{store: st, tel: tel, executor: exec, monitor: mon, engine: eng}, nil
}

func buildStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return mongostore.New(ctx, mongostore.Options{
			Client: client, Database: cfg.MongoDatabase, Timeout: cfg.MongoTimeout,
		})
	default:
		return memstore.New(), nil
	}
}

func buildTelemetry(cfg config.Config) (telemetry.Telemetry, error) {
	var logger telemetry.Logger
	switch cfg.LogBackend {
	case config.LogBackendZap:
		zapLogger, err := telemetry.NewZapLogger()
		if err != nil {
			return nil, fmt.Errorf("zap logger: %w", err)
		}
		logger = zapLogger
	case config.LogBackendNoop:
		logger = telemetry.NewNoopLogger()
	default:
		logger = telemetry.NewClueLogger()
	}

	var metrics telemetry.Metrics
	switch cfg.MetricsBackend {
	case config.MetricsBackendPrometheus:
		metrics = telemetry.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	case config.MetricsBackendNoop:
		metrics = telemetry.NewNoopMetrics()
	default:
		metrics = telemetry.NewOTELMetrics("orchestrator")
	}

	tracer := telemetry.NewOTELTracer("orchestrator")
	bus := telemetry.NewBus(logger)
	return telemetry.New(logger, metrics, tracer, bus), nil
}

func buildCooldowns(cfg config.Config) (cooldown.Cooldowns, error) {
	switch cfg.CooldownBackend {
	case config.CooldownBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return rediscooldown.New(client, cfg.RedisPrefix), nil
	default:
		return memcooldown.New(cfg.CooldownMemMaxEntries), nil
	}
}

func buildEngine(cfg config.Config, tel telemetry.Telemetry) (engine.Engine, error) {
	switch cfg.EngineBackend {
	case config.EngineBackendTemporal:
		return enginetemporal.New(enginetemporal.Options{
			ClientOptions: &temporalclient.Options{
				HostPort:  cfg.TemporalHostPort,
				Namespace: cfg.TemporalNamespace,
			},
			TaskQueue: cfg.TemporalTaskQueue,
			Logger:    tel.Logger(),
		})
	default:
		return inmem.New(), nil
	}
}

// registerBootstrapWorkflow gives the optional durable-execution engine a
// concrete, exercised use: a single-activity workflow wrapping the
// Executor's initial-task bootstrap, so an external caller with access to
// the Engine (e.g. a future admin command) can kick off a workspace without
// going through the Monitor's interval.
func registerBootstrapWorkflow(ctx context.Context, eng engine.Engine, exec *executor.Executor) error {
	err := eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "bootstrap_workspace",
		Handler: func(actCtx context.Context, input any) (any, error) {
			workspaceID, _ := input.(string)
			task, err := exec.TriggerInitial(actCtx, workspaceID)
			if err != nil {
				return nil, err
			}
			return task, nil
		},
	})
	if err != nil {
		return err
	}
	return eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "bootstrap_workspace",
		Handler: func(wctx engine.WorkflowContext, input any) (any, error) {
			var task domain.Task
			if err := wctx.ExecuteActivity(wctx.Context(), engine.ActivityRequest{
				Name: "bootstrap_workspace", Input: input,
			}, &task); err != nil {
				return nil, err
			}
			return task, nil
		},
	})
}
