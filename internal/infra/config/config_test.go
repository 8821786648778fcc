package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"API_ID", "API_HASH", "PROFILE_NAME", "DEVICE_MODEL", "SYSTEM_VERSION", "APP_VERSION",
	"LANG_CODE", "SYSTEM_LANG_CODE", "LANG_PACK", "TEST_DC", "LOG_LEVEL", "LOG_FILE",
	"LOG_FILE_LEVEL", "LOG_FILE_MAX_SIZE_MB", "LOG_FILE_MAX_BACKUPS", "LOG_FILE_MAX_AGE_DAYS",
	"LOG_FILE_COMPRESS", "VALIDATE_TIMEOUT_SEC", "VALIDATE_RPS", "CHECK_WORKERS",
	"CHECK_CACHE_FILE", "CHECK_CACHE_TTL_HOURS",
}

// clearEnv удаляет переменные на время теста: godotenv не перезаписывает уже заданные.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func writeEnv(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	env := cfg.Env
	if env.APIID != 0 || env.LogLevel != defaultLogLevel || env.CheckWorkers != defaultCheckWorkers {
		t.Fatalf("unexpected defaults: %+v", env)
	}
	if env.CheckCacheFile != defaultCheckCacheFile || !env.LogFileCompress {
		t.Fatalf("unexpected defaults: %+v", env)
	}
	if env.Profile().HasCredentials() {
		t.Fatalf("profile without API_ID must not have credentials")
	}
	if len(cfg.warnings) < 2 {
		t.Fatalf("warnings = %v, want missing .env and API_ID", cfg.warnings)
	}
}

func TestLoadConfigReadsValues(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t,
		"API_ID=12345",
		"API_HASH=0123456789abcdef",
		"DEVICE_MODEL=Pixel 8",
		"LANG_PACK=android",
		"TEST_DC=true",
		"LOG_LEVEL=DEBUG",
		"VALIDATE_RPS=0.5",
		"CHECK_WORKERS=8",
		"CHECK_CACHE_TTL_HOURS=0",
	)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	p := cfg.Env.Profile()
	if p.APIID != 12345 || p.APIHash != "0123456789abcdef" || !p.HasCredentials() {
		t.Fatalf("credentials not loaded: %+v", p)
	}
	if p.DeviceModel != "Pixel 8" || p.LangPack != "android" || !p.TestDC {
		t.Fatalf("profile not loaded: %+v", p)
	}
	if p.SystemVersion != defaultSystemVersion {
		t.Fatalf("SystemVersion = %q, want default", p.SystemVersion)
	}
	if cfg.Env.LogLevel != "debug" || cfg.Env.ValidateRPS != 0.5 || cfg.Env.CheckWorkers != 8 || cfg.Env.CheckCacheTTLHours != 0 {
		t.Fatalf("env not loaded: %+v", cfg.Env)
	}
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t,
		"LOG_LEVEL=verbose",
		"CHECK_WORKERS=0",
		"VALIDATE_RPS=-1",
		"LOG_FILE_COMPRESS=maybe",
	)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Env.LogLevel != defaultLogLevel || cfg.Env.CheckWorkers != defaultCheckWorkers ||
		cfg.Env.ValidateRPS != defaultValidateRPS || cfg.Env.LogFileCompress != defaultLogFileCompress {
		t.Fatalf("fallbacks not applied: %+v", cfg.Env)
	}
	// API_ID + 4 некорректных значения
	if len(cfg.warnings) != 5 {
		t.Fatalf("warnings = %v, want 5", cfg.warnings)
	}
}

func TestLoadConfigRejectsBrokenCredentials(t *testing.T) {
	cases := map[string][]string{
		"notInteger":  {"API_ID=abc", "API_HASH=x"},
		"negative":    {"API_ID=-5", "API_HASH=x"},
		"missingHash": {"API_ID=5"},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, err := loadConfig(writeEnv(t, lines...)); err == nil {
				t.Fatalf("loadConfig() error = nil, want error")
			}
		})
	}
}
