// Пакет config отвечает за сбор и предоставление конфигурации конвертера сессий.
// Он:
//  1. читает переменные окружения из .env (через godotenv),
//  2. нормализует и валидирует входные значения, подставляя значения по умолчанию,
//  3. копит предупреждения о подставленных значениях для вывода после инициализации логгера,
//  4. собирает профиль клиента (sessions.Profile) для сетевых команд.
//
// Конвертация работает офлайн, поэтому отсутствие .env и API_ID/API_HASH не является
// ошибкой: эти значения нужны только командам validate/check/login.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"telegram-session-converter/internal/domain/sessions"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// EnvConfig описывает параметры, приходящие из окружения (.env).
//
// NB: значения уже проходят минимальную валидацию и нормализацию в loadConfig.
type EnvConfig struct {
	APIID          int
	APIHash        string
	ProfileName    string
	DeviceModel    string
	SystemVersion  string
	AppVersion     string
	LangCode       string
	SystemLangCode string
	LangPack       string
	TestDC         bool
	LogLevel       string
	// Файловое логирование
	LogFile           string
	LogFileLevel      string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool
	// Сетевая проверка
	ValidateTimeoutSec int
	ValidateRPS        float64
	CheckWorkers       int
	CheckCacheFile     string
	CheckCacheTTLHours int
}

// Config хранит конфигурацию среды.
type Config struct {
	Env      EnvConfig
	warnings []string     // предупреждения, накопленные при чтении окружения
	mu       sync.RWMutex // защита конкурентного доступа к конфигурации
}

// Значения по умолчанию для параметров окружения.
const (
	defaultLogLevel       = "info"
	defaultProfileName    = "desktop"
	defaultDeviceModel    = "Desktop"
	defaultSystemVersion  = "Windows 10"
	defaultAppVersion     = "4.16.8 x64"
	defaultLangCode       = "en"
	defaultSystemLangCode = "en-US"
	defaultLangPack       = "tdesktop"
	// Файловое логирование (LOG_FILE не имеет дефолта - должен быть явно указан для активации)
	defaultLogFileLevel      = "debug"
	defaultLogFileMaxSize    = 50
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 7
	defaultLogFileCompress   = true
	// Сетевая проверка
	defaultValidateTimeoutSec = 20
	defaultValidateRPS        = 1.0
	defaultCheckWorkers       = 4
	defaultCheckCacheFile     = "data/check_cache.bbolt"
	defaultCheckCacheTTLHours = 24
)

var (
	cfgInstance *Config
	cfgDone     bool
)

// Load — точка входа для инициализации глобальной конфигурации.
// Повторный вызов запрещен (возвращается ошибка), чтобы избежать гонок
// конфигурации на старте.
func Load(envPath string) error {
	if cfgDone {
		return errors.New("config already loaded")
	}
	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance = newCfg
	cfgDone = true
	return nil
}

// loadConfig выполняет фактическую загрузку/валидацию без установки глобального
// состояния. Удобно для тестов: можно собрать временный Config и проверить его.
func loadConfig(envPath string) (*Config, error) {
	var warnings []string

	if err := godotenv.Load(envPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
		appendWarningf(&warnings, ".env file %q not found; using process environment", envPath)
	}

	apiID, err := parseOptionalInt("API_ID")
	if err != nil {
		return nil, err
	}
	apiHash := strings.TrimSpace(os.Getenv("API_HASH"))
	if apiID > 0 && apiHash == "" {
		return nil, errors.New("env API_HASH must be set when API_ID is set")
	}
	if apiID == 0 {
		appendWarningf(&warnings, "env API_ID is not set; network commands are disabled")
	}

	env := EnvConfig{
		APIID:          apiID,
		APIHash:        apiHash,
		ProfileName:    sanitizeString("PROFILE_NAME", defaultProfileName),
		DeviceModel:    sanitizeString("DEVICE_MODEL", defaultDeviceModel),
		SystemVersion:  sanitizeString("SYSTEM_VERSION", defaultSystemVersion),
		AppVersion:     sanitizeString("APP_VERSION", defaultAppVersion),
		LangCode:       sanitizeString("LANG_CODE", defaultLangCode),
		SystemLangCode: sanitizeString("SYSTEM_LANG_CODE", defaultSystemLangCode),
		LangPack:       sanitizeString("LANG_PACK", defaultLangPack),
		TestDC:         strings.EqualFold(strings.TrimSpace(os.Getenv("TEST_DC")), "true"),
		LogLevel:       sanitizeLogLevel("LOG_LEVEL", defaultLogLevel, &warnings),
		// Файловое логирование
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		LogFileLevel:      sanitizeLogLevel("LOG_FILE_LEVEL", defaultLogFileLevel, &warnings),
		LogFileMaxSize:    parseIntDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero, &warnings),
		LogFileMaxBackups: parseIntDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative, &warnings),
		LogFileMaxAge:     parseIntDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative, &warnings),
		LogFileCompress:   parseBoolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, &warnings),
		// Сетевая проверка
		ValidateTimeoutSec: parseIntDefault("VALIDATE_TIMEOUT_SEC", defaultValidateTimeoutSec, greaterThanZero, &warnings),
		ValidateRPS:        parseFloatDefault("VALIDATE_RPS", defaultValidateRPS, &warnings),
		CheckWorkers:       parseIntDefault("CHECK_WORKERS", defaultCheckWorkers, greaterThanZero, &warnings),
		CheckCacheFile:     sanitizeString("CHECK_CACHE_FILE", defaultCheckCacheFile),
		CheckCacheTTLHours: parseIntDefault("CHECK_CACHE_TTL_HOURS", defaultCheckCacheTTLHours, nonNegative, &warnings),
	}

	return &Config{Env: env, warnings: warnings}, nil
}

// Warnings возвращает накопленные предупреждения, возникшие при загрузке .env
// (например, когда подставлено значение по умолчанию). Возвращается копия.
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env возвращает EnvConfig из глобального singleton.
func Env() EnvConfig {
	return cfgInstance.Env
}

// Profile собирает профиль клиента из текущего окружения.
func Profile() sessions.Profile {
	return cfgInstance.Env.Profile()
}

// Profile переводит настройки окружения в описание клиентского приложения.
func (e EnvConfig) Profile() sessions.Profile {
	return sessions.Profile{
		Name:           e.ProfileName,
		APIID:          e.APIID,
		APIHash:        e.APIHash,
		DeviceModel:    e.DeviceModel,
		SystemVersion:  e.SystemVersion,
		AppVersion:     e.AppVersion,
		LangCode:       e.LangCode,
		SystemLangCode: e.SystemLangCode,
		LangPack:       e.LangPack,
		TestDC:         e.TestDC,
	}
}

// parseOptionalInt читает необязательную целочисленную переменную окружения name.
// Пустое значение даёт 0, некорректное — ошибку.
func parseOptionalInt(name string) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env %s must be a valid integer: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("env %s must not be negative", name)
	}
	return v, nil
}

// parseIntDefault читает name как int. Если пусто/некорректно/не проходит
// дополнительную проверку validator — возвращает defaultVal и пишет предупреждение.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

// parseFloatDefault читает name как положительное число с плавающей точкой.
func parseFloatDefault(name string, defaultVal float64, warnings *[]string) float64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v <= 0 {
		appendWarningf(warnings, "env %s value %q is not a positive number; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// appendWarningf — служебная функция для накопления предупреждений о некорректных
// переменных окружения. Список затем доступен через Warnings().
func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }

// parseBoolDefault читает name как bool. Если некорректно — возвращает defaultVal и пишет предупреждение.
func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// sanitizeLogLevel нормализует уровень логирования и ограничивает значения набором
// {debug, info, warn, error}. Всё остальное превращается в defaultVal.
func sanitizeLogLevel(name, defaultVal string, warnings *[]string) string {
	raw := os.Getenv(name)
	lvl := strings.ToLower(strings.TrimSpace(raw))
	if lvl == "" {
		return defaultVal
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env %s value %q is invalid; using default %q", name, raw, defaultVal)
		return defaultVal
	}
}

// sanitizeString возвращает значение name или fallback, если переменная пуста.
func sanitizeString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}
