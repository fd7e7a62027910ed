package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every key Load reads; viper treats empty variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "STORE_DRIVER", "DATABASE_URL",
		"REDIS_URL", "BOLT_PATH", "JWT_SECRET", "REFRESH_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
		"MUTATION_RATE_LIMIT", "MUTATION_BURST", idemTTLSecondsEnvVar, idemTTLDurEnvVar,
		shutdownSecondsEnvVar, shutdownDurationEnvVar, configFileEnvVar} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Fatalf("expected memory driver, got %s", cfg.StoreDriver)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if cfg.ShutdownPeriod != defaultShutdownDelay {
		t.Fatalf("unexpected shutdown period %s", cfg.ShutdownPeriod)
	}
	if cfg.AccessTokenTTL != defaultAccessTokenTTL {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTokenTTL)
	}
	if cfg.MutationBurst != defaultMutationBurst {
		t.Fatalf("unexpected burst %d", cfg.MutationBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STORE_DRIVER", "bolt")
	t.Setenv("BOLT_PATH", "/tmp/ledger.db")
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(idemTTLDurEnvVar, "90m")
	t.Setenv("ACCESS_TOKEN_TTL", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected lowercase log level, got %s", cfg.LogLevel)
	}
	if cfg.StoreDriver != DriverBolt || cfg.BoltPath != "/tmp/ledger.db" {
		t.Fatalf("unexpected store config %+v", cfg)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("unexpected shutdown period %s", cfg.ShutdownPeriod)
	}
	if cfg.IdempotencyTTL != 90*time.Minute {
		t.Fatalf("unexpected idempotency ttl %s", cfg.IdempotencyTTL)
	}
	if cfg.AccessTokenTTL != 2*time.Minute {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTokenTTL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":       {"APP_ENV": "development", "STORE_DRIVER": "mongo"},
		"postgres without url": {"APP_ENV": "development", "STORE_DRIVER": "postgres"},
		"bad shutdown seconds": {"APP_ENV": "development", shutdownSecondsEnvVar: "ten"},
		"production secrets":   {"APP_ENV": "production", "REDIS_URL": "redis://localhost:6379"},
		"production redis":     {"APP_ENV": "production", "JWT_SECRET": "a", "REFRESH_SECRET": "b"},
		"shared secrets":       {"APP_ENV": "production", "JWT_SECRET": "a", "REFRESH_SECRET": "a", "REDIS_URL": "redis://localhost:6379"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"APP_NAME: FileLedger",
		"STORE_DRIVER: postgres",
		"DATABASE_URL: postgres://ledger@localhost/ledger",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t)
	t.Setenv("APP_ENV", "development")
	t.Setenv(configFileEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppName != "FileLedger" || cfg.StoreDriver != DriverPostgres {
		t.Fatalf("config file values not applied: %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://ledger@localhost/ledger" {
		t.Fatalf("unexpected database url %s", cfg.DatabaseURL)
	}
}
