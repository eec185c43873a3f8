package config

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr       = ":8080"
	defaultDBPath           = "clusterwork.db"
	defaultTaskTimeout      = 30 * time.Second
	defaultRole             = "compute"
	defaultRefreshInterval  = 5 * time.Second
	defaultMaxRoutees       = 1000
	defaultMaxTasks         = 10000
	defaultWorkerListenAddr = ":7070"
	defaultRegistrationTTL  = 30 * time.Second
	defaultMaxDelay         = 500 * time.Millisecond

	envListenAddr      = "CLUSTERWORK_LISTEN_ADDR"
	envDBPath          = "CLUSTERWORK_DB_PATH"
	envLogLevel        = "CLUSTERWORK_LOG_LEVEL"
	envTaskTimeout     = "CLUSTERWORK_TASK_TIMEOUT"
	envWorkers         = "CLUSTERWORK_WORKERS"
	envRole            = "CLUSTERWORK_ROLE"
	envRefreshInterval = "CLUSTERWORK_REFRESH_INTERVAL"
	envMaxRoutees      = "CLUSTERWORK_MAX_ROUTEES"
	envMaxTasks        = "CLUSTERWORK_MAX_TASKS"
	envRedisAddr       = "CLUSTERWORK_REDIS_ADDR"
	envRedisPassword   = "CLUSTERWORK_REDIS_PASSWORD"
	envRedisDB         = "CLUSTERWORK_REDIS_DB"

	envWorkerListenAddr = "CLUSTERWORK_WORKER_LISTEN_ADDR"
	envWorkerID         = "CLUSTERWORK_WORKER_ID"
	envWorkerAdvertise  = "CLUSTERWORK_WORKER_ADVERTISE_ADDR"
	envWorkerRoles      = "CLUSTERWORK_WORKER_ROLES"
	envWorkerMinDelay   = "CLUSTERWORK_WORKER_MIN_DELAY"
	envWorkerMaxDelay   = "CLUSTERWORK_WORKER_MAX_DELAY"
	envWorkerFailRate   = "CLUSTERWORK_WORKER_FAILURE_RATE"
	envRegistrationTTL  = "CLUSTERWORK_REGISTRATION_TTL"
)

// Redis holds connection settings for the membership registry. An empty
// Addr disables it.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Config holds front-end configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	LogLevel        slog.Level
	TaskTimeout     time.Duration
	Workers         string
	Role            string
	RefreshInterval time.Duration
	MaxRoutees      int
	MaxTasks        int
	Redis           Redis
}

// Load reads front-end configuration from environment variables with
// sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		TaskTimeout:     defaultTaskTimeout,
		Role:            defaultRole,
		RefreshInterval: defaultRefreshInterval,
		MaxRoutees:      defaultMaxRoutees,
		MaxTasks:        defaultMaxTasks,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envRole); v != "" {
		cfg.Role = v
	}
	cfg.Workers = os.Getenv(envWorkers)

	var err error
	if cfg.TaskTimeout, err = durationEnv(envTaskTimeout, cfg.TaskTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval, err = durationEnv(envRefreshInterval, cfg.RefreshInterval); err != nil {
		return Config{}, err
	}
	if cfg.MaxRoutees, err = intEnv(envMaxRoutees, cfg.MaxRoutees); err != nil {
		return Config{}, err
	}
	if cfg.MaxTasks, err = intEnv(envMaxTasks, cfg.MaxTasks); err != nil {
		return Config{}, err
	}
	// Task indices are sent to workers as int32.
	if cfg.MaxTasks <= 0 || cfg.MaxTasks > math.MaxInt32 {
		return Config{}, fmt.Errorf("%s: want a number in [1,%d], got %d", envMaxTasks, math.MaxInt32, cfg.MaxTasks)
	}
	if cfg.Redis, err = loadRedis(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// WorkerConfig holds worker-node configuration loaded from environment
// variables.
type WorkerConfig struct {
	ListenAddr      string
	ID              string
	AdvertiseAddr   string
	Roles           []string
	LogLevel        slog.Level
	TaskTimeout     time.Duration
	MinDelay        time.Duration
	MaxDelay        time.Duration
	FailureRate     float64
	RegistrationTTL time.Duration
	Redis           Redis
}

// LoadWorker reads worker configuration from environment variables. The
// advertised address defaults to the listen address.
func LoadWorker() (WorkerConfig, error) {
	cfg := WorkerConfig{
		ListenAddr:      defaultWorkerListenAddr,
		Roles:           []string{defaultRole},
		LogLevel:        slog.LevelInfo,
		TaskTimeout:     defaultTaskTimeout,
		MaxDelay:        defaultMaxDelay,
		RegistrationTTL: defaultRegistrationTTL,
	}

	if v := os.Getenv(envWorkerListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	cfg.ID = os.Getenv(envWorkerID)
	cfg.AdvertiseAddr = cmp.Or(os.Getenv(envWorkerAdvertise), cfg.ListenAddr)
	if v := os.Getenv(envWorkerRoles); v != "" {
		cfg.Roles = splitList(v)
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	var err error
	if cfg.TaskTimeout, err = durationEnv(envTaskTimeout, cfg.TaskTimeout); err != nil {
		return WorkerConfig{}, err
	}
	if cfg.MinDelay, err = durationEnv(envWorkerMinDelay, cfg.MinDelay); err != nil {
		return WorkerConfig{}, err
	}
	if cfg.MaxDelay, err = durationEnv(envWorkerMaxDelay, cfg.MaxDelay); err != nil {
		return WorkerConfig{}, err
	}
	if cfg.MaxDelay < cfg.MinDelay {
		return WorkerConfig{}, fmt.Errorf("%s (%s) is below %s (%s)", envWorkerMaxDelay, cfg.MaxDelay, envWorkerMinDelay, cfg.MinDelay)
	}
	if cfg.RegistrationTTL, err = durationEnv(envRegistrationTTL, cfg.RegistrationTTL); err != nil {
		return WorkerConfig{}, err
	}
	if v := os.Getenv(envWorkerFailRate); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 || rate > 1 {
			return WorkerConfig{}, fmt.Errorf("%s: want a number in [0,1], got %q", envWorkerFailRate, v)
		}
		cfg.FailureRate = rate
	}
	if cfg.Redis, err = loadRedis(); err != nil {
		return WorkerConfig{}, err
	}

	return cfg, nil
}

func loadRedis() (Redis, error) {
	r := Redis{
		Addr:     os.Getenv(envRedisAddr),
		Password: os.Getenv(envRedisPassword),
	}
	db, err := intEnv(envRedisDB, 0)
	if err != nil {
		return Redis{}, err
	}
	r.DB = db
	return r, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, d)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
