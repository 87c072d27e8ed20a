// Package config loads the orchestrator's environment-sourced tunables into a
// single typed struct, following the grouped-registry shape used by
// codeready-toolchain/tarsy's pkg/config (one struct returned by Load,
// accessed throughout the process rather than read ad hoc from os.Getenv).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LogBackend selects which telemetry.Logger implementation to construct.
type LogBackend string

const (
	LogBackendClue LogBackend = "clue"
	LogBackendZap  LogBackend = "zap"
	LogBackendNoop LogBackend = "noop"
)

// MetricsBackend selects which telemetry.Metrics implementation to construct.
type MetricsBackend string

const (
	MetricsBackendOTEL       MetricsBackend = "otel"
	MetricsBackendPrometheus MetricsBackend = "prometheus"
	MetricsBackendNoop       MetricsBackend = "noop"
)

// StoreBackend selects the C1 Store adapter.
type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendMongo  StoreBackend = "mongo"
)

// CooldownBackend selects the cooldown.Cooldowns adapter.
type CooldownBackend string

const (
	CooldownBackendMemory CooldownBackend = "memory"
	CooldownBackendRedis  CooldownBackend = "redis"
)

// EngineBackend selects the optional durable-execution engine.Engine adapter
// wired behind the Executor's worker pool.
type EngineBackend string

const (
	EngineBackendInmem    EngineBackend = "inmem"
	EngineBackendTemporal EngineBackend = "temporal"
)

// Config is the umbrella object for every environment tunable named in spec
// §6. Zero-valued Config is invalid; always construct via Load.
type Config struct {
	MaxConcurrentTasks             int
	GoalValidationInterval         time.Duration
	GoalCompletionThreshold        float64
	MaxGoalDrivenTasksPerCycle     int
	MaxRecoveryAttemptsPerTask     int
	RecoveryConfidenceThreshold    float64
	ImmediateRetryConfidenceThresh float64
	CorrectiveTaskCooldown         time.Duration
	GoalMonitorCacheMaxEntries     int
	GoalMonitorCacheTTL            time.Duration

	EnableAIRecoveryDecisions   bool
	EnableContentAwareLearning  bool
	EnableGoalDrivenSystem      bool
	EnableHealthMonitor         bool
	DisableTaskExecutor         bool

	AIEnhancementModel string
	LogBackend         LogBackend
	MetricsBackend     MetricsBackend

	// ArtifactApprovalThreshold gates Artifact.Status == ArtifactApproved
	// (spec §3 Artifact invariant). Not independently named in spec §6 but
	// required to make that invariant operable; defaults conservatively.
	ArtifactApprovalThreshold float64

	// WorkspaceLockTTL and RecentActivityWindow feed the C9 Health Manager's
	// "task-creation lock exceeded its TTL" and "recent executor activity"
	// factors (spec §4.8); not independently named in spec §6 but required
	// to make those checks operable.
	WorkspaceLockTTL     time.Duration
	RecentActivityWindow time.Duration

	// StoreBackend/MongoURI/MongoDatabase/MongoTimeout select and configure
	// the C1 Store adapter (internal/store/mongostore as the durable
	// alternative to the default in-memory store).
	StoreBackend  StoreBackend
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration

	// CooldownMemMaxEntries bounds the in-process memcooldown LRU; only
	// consulted when CooldownBackend is CooldownBackendMemory.
	CooldownMemMaxEntries int

	// CooldownBackend/RedisAddr/RedisPrefix select and configure the
	// cooldown.Cooldowns adapter (internal/cooldown/rediscooldown as the
	// shared-state alternative to the default in-process LRU).
	CooldownBackend CooldownBackend
	RedisAddr       string
	RedisPrefix     string

	// EngineBackend selects the optional durable-execution engine.Engine
	// adapter; Temporal settings are only consulted when EngineBackend is
	// EngineBackendTemporal.
	EngineBackend     EngineBackend
	TemporalHostPort  string
	TemporalNamespace string
	TemporalTaskQueue string

	// AgentRuntimeBaseURL configures the default httpruntime.Runtime
	// AgentRuntime adapter (the sibling HTTP agent-execution service).
	AgentRuntimeBaseURL string
}

// Load reads every tunable from the environment, applying the defaults from
// spec §6. An optional .env file (godotenv, matching the teacher's and
// haricheung-agentic-shell's convention) is loaded first for local/dev runs;
// real environment variables always take precedence over .env contents.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		MaxConcurrentTasks:             envInt("MAX_CONCURRENT_TASKS", 3),
		GoalValidationInterval:         envMinutes("GOAL_VALIDATION_INTERVAL_MINUTES", 20),
		GoalCompletionThreshold:        envFloat("GOAL_COMPLETION_THRESHOLD", 80),
		MaxGoalDrivenTasksPerCycle:     envInt("MAX_GOAL_DRIVEN_TASKS_PER_CYCLE", 5),
		MaxRecoveryAttemptsPerTask:     envInt("MAX_RECOVERY_ATTEMPTS_PER_TASK", 3),
		RecoveryConfidenceThreshold:    envFloat("RECOVERY_CONFIDENCE_THRESHOLD", 0.7),
		ImmediateRetryConfidenceThresh: envFloat("IMMEDIATE_RETRY_CONFIDENCE_THRESHOLD", 0.9),
		CorrectiveTaskCooldown:         envSeconds("CORRECTIVE_TASK_COOLDOWN_SECONDS", 300),
		GoalMonitorCacheMaxEntries:     envInt("GOAL_MONITOR_CACHE_MAX_ENTRIES", 100),
		GoalMonitorCacheTTL:            envSeconds("GOAL_MONITOR_CACHE_TTL_SECONDS", 1800),

		EnableAIRecoveryDecisions:  envBool("ENABLE_AI_RECOVERY_DECISIONS", true),
		EnableContentAwareLearning: envBool("ENABLE_CONTENT_AWARE_LEARNING", true),
		EnableGoalDrivenSystem:     envBool("ENABLE_GOAL_DRIVEN_SYSTEM", true),
		EnableHealthMonitor:        envBool("ENABLE_HEALTH_MONITOR", true),
		DisableTaskExecutor:        envBool("DISABLE_TASK_EXECUTOR", false),

		AIEnhancementModel:        envStr("AI_ENHANCEMENT_MODEL", "gpt-4o-mini"),
		LogBackend:                LogBackend(envStr("LOG_BACKEND", string(LogBackendClue))),
		MetricsBackend:            MetricsBackend(envStr("METRICS_BACKEND", string(MetricsBackendOTEL))),
		ArtifactApprovalThreshold: envFloat("ARTIFACT_APPROVAL_THRESHOLD", 70),

		WorkspaceLockTTL:     envMinutes("WORKSPACE_LOCK_TTL_MINUTES", 10),
		RecentActivityWindow: envMinutes("RECENT_ACTIVITY_WINDOW_MINUTES", 15),

		StoreBackend:  StoreBackend(envStr("STORE_BACKEND", string(StoreBackendMemory))),
		MongoURI:      envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: envStr("MONGO_DATABASE", "orchestrator"),
		MongoTimeout:  envSeconds("MONGO_TIMEOUT_SECONDS", 10),

		CooldownMemMaxEntries: envInt("COOLDOWN_MEM_MAX_ENTRIES", 1000),
		CooldownBackend:       CooldownBackend(envStr("COOLDOWN_BACKEND", string(CooldownBackendMemory))),
		RedisAddr:             envStr("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:           envStr("REDIS_PREFIX", "orchestrator:cooldown:"),

		EngineBackend:     EngineBackend(envStr("ENGINE_BACKEND", string(EngineBackendInmem))),
		TemporalHostPort:  envStr("TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalNamespace: envStr("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue: envStr("TEMPORAL_TASK_QUEUE", "orchestrator"),

		AgentRuntimeBaseURL: envStr("AGENT_RUNTIME_BASE_URL", "http://localhost:8081"),
	}
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func envSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(envInt(key, defSeconds)) * time.Second
}

func envMinutes(key string, defMinutes int) time.Duration {
	return time.Duration(envInt(key, defMinutes)) * time.Minute
}
