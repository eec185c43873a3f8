package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"slices"
	"testing"
	"time"
)

// clearEnv unsets every variable Load and LoadWorker read.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envListenAddr, envDBPath, envLogLevel, envTaskTimeout, envWorkers, envRole,
		envRefreshInterval, envMaxRoutees, envMaxTasks, envRedisAddr, envRedisPassword, envRedisDB,
		envWorkerListenAddr, envWorkerID, envWorkerAdvertise, envWorkerRoles,
		envWorkerMinDelay, envWorkerMaxDelay, envWorkerFailRate, envRegistrationTTL,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.TaskTimeout != 30*time.Second {
		t.Errorf("TaskTimeout = %v, want 30s", cfg.TaskTimeout)
	}
	if cfg.Role != "compute" {
		t.Errorf("Role = %q, want compute", cfg.Role)
	}
	if cfg.MaxRoutees != 1000 {
		t.Errorf("MaxRoutees = %d, want 1000", cfg.MaxRoutees)
	}
	if cfg.MaxTasks != 10000 {
		t.Errorf("MaxTasks = %d, want 10000", cfg.MaxTasks)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty", cfg.Redis.Addr)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envTaskTimeout, "5s")
	t.Setenv(envWorkers, "h1:7070,h2:7070")
	t.Setenv(envRefreshInterval, "250ms")
	t.Setenv(envRedisAddr, "redis:6379")
	t.Setenv(envRedisDB, "2")
	t.Setenv(envMaxTasks, "64")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.TaskTimeout != 5*time.Second {
		t.Errorf("TaskTimeout = %v, want 5s", cfg.TaskTimeout)
	}
	if cfg.Workers != "h1:7070,h2:7070" {
		t.Errorf("Workers = %q", cfg.Workers)
	}
	if cfg.RefreshInterval != 250*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want 250ms", cfg.RefreshInterval)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.MaxTasks != 64 {
		t.Errorf("MaxTasks = %d, want 64", cfg.MaxTasks)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{envTaskTimeout, "soon"},
		{envTaskTimeout, "-1s"},
		{envRefreshInterval, "often"},
		{envMaxRoutees, "many"},
		{envMaxTasks, "lots"},
		{envMaxTasks, "0"},
		{envMaxTasks, "-5"},
		{envMaxTasks, "2147483648"},
		{envRedisDB, "zero"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load succeeded with %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadWorkerDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker: %v", err)
	}

	if cfg.ListenAddr != defaultWorkerListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultWorkerListenAddr)
	}
	if cfg.AdvertiseAddr != cfg.ListenAddr {
		t.Errorf("AdvertiseAddr = %q, want listen address", cfg.AdvertiseAddr)
	}
	if !slices.Equal(cfg.Roles, []string{"compute"}) {
		t.Errorf("Roles = %v, want [compute]", cfg.Roles)
	}
	if cfg.FailureRate != 0 {
		t.Errorf("FailureRate = %v, want 0", cfg.FailureRate)
	}
}

func TestLoadWorkerFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envWorkerListenAddr, "vsock://:7070")
	t.Setenv(envWorkerAdvertise, "vsock://3:7070")
	t.Setenv(envWorkerID, "w-1")
	t.Setenv(envWorkerRoles, "compute, gpu")
	t.Setenv(envWorkerMinDelay, "10ms")
	t.Setenv(envWorkerMaxDelay, "20ms")
	t.Setenv(envWorkerFailRate, "0.25")

	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker: %v", err)
	}

	if cfg.ListenAddr != "vsock://:7070" || cfg.AdvertiseAddr != "vsock://3:7070" || cfg.ID != "w-1" {
		t.Errorf("addresses = %+v", cfg)
	}
	if !slices.Equal(cfg.Roles, []string{"compute", "gpu"}) {
		t.Errorf("Roles = %v", cfg.Roles)
	}
	if cfg.MinDelay != 10*time.Millisecond || cfg.MaxDelay != 20*time.Millisecond {
		t.Errorf("delays = %v..%v", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.FailureRate != 0.25 {
		t.Errorf("FailureRate = %v, want 0.25", cfg.FailureRate)
	}
}

func TestLoadWorkerInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"rate above one", map[string]string{envWorkerFailRate: "1.5"}},
		{"rate not a number", map[string]string{envWorkerFailRate: "often"}},
		{"max below min", map[string]string{envWorkerMinDelay: "2s", envWorkerMaxDelay: "1s"}},
		{"bad ttl", map[string]string{envRegistrationTTL: "forever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadWorker(); err == nil {
				t.Error("LoadWorker succeeded, want error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
