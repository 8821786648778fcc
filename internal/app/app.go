// Package app — верхний уровень сборки конвертера сессий.
// Здесь связываются конфигурация, файловый лог, сетевой проверяющий (validator)
// с кэшем результатов и команды CLI. Отсюда запускается разовая команда или shell.
package app

import (
	"context"
	"time"

	"telegram-session-converter/internal/adapters/cli"
	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/infra/config"
	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/telegram/checkcache"
	"telegram-session-converter/internal/infra/telegram/client"
	"telegram-session-converter/internal/infra/telegram/validator"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// App агрегирует зависимости конвертера и управляет их связью.
type App struct {
	env        config.EnvConfig
	mainCtx    context.Context    // Контекст жизненного цикла приложения.
	mainCancel context.CancelFunc // Инициирует отмену mainCtx.
	cache      *checkcache.Cache  // Кэш результатов проверок; nil, если выключен.
	cmds       *cli.Commands
}

// NewApp создаёт пустой каркас приложения. Фактическая инициализация выполняется в Init().
func NewApp() *App {
	return &App{}
}

// Init собирает зависимости по загруженной конфигурации.
// Без API_ID/API_HASH сетевой проверяющий не создаётся: работают только офлайн-команды.
func (a *App) Init(ctx context.Context, cancel context.CancelFunc) error {
	a.mainCtx, a.mainCancel = ctx, cancel
	a.env = config.Env()

	logger.SetFile(logger.FileOptions{
		Path:       a.env.LogFile,
		Level:      a.env.LogFileLevel,
		MaxSizeMB:  a.env.LogFileMaxSize,
		MaxBackups: a.env.LogFileMaxBackups,
		MaxAgeDays: a.env.LogFileMaxAge,
		Compress:   a.env.LogFileCompress,
	})

	clientCfg := client.Config{
		Profile: config.Profile(),
		RPS:     a.env.ValidateRPS,
	}

	var checker sessions.Checker
	if clientCfg.Profile.HasCredentials() {
		checker = validator.New(clientCfg, time.Duration(a.env.ValidateTimeoutSec)*time.Second)
		if a.env.CheckCacheFile != "" {
			cache, err := checkcache.Open(a.env.CheckCacheFile, time.Duration(a.env.CheckCacheTTLHours)*time.Hour)
			if err != nil {
				return errors.Wrap(err, "open check cache")
			}
			a.cache = cache
			if removed, err := cache.Prune(); err != nil {
				logger.Warnf("check cache prune failed: %v", err)
			} else if removed > 0 {
				logger.Debug("check cache pruned", zap.Int("removed", removed))
			}
			checker = checkcache.Wrap(cache, checker)
		}
	}

	a.cmds = cli.NewCommands(cli.Options{
		Client:  clientCfg,
		Checker: checker,
		Workers: a.env.CheckWorkers,
		RPS:     a.env.ValidateRPS,
	})
	return nil
}

// Run выполняет команду args. "shell" (или пустой args) запускает интерактивную консоль
// и блокируется до exit или сигнала.
func (a *App) Run(args []string) error {
	if a.cmds == nil {
		return errors.New("app is not initialized")
	}
	defer a.close()

	if len(args) == 0 || args[0] == "shell" {
		return NewRunner(a.mainCtx, a.mainCancel, a.cmds).Run()
	}
	return a.cmds.Execute(a.mainCtx, args)
}

func (a *App) close() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Close(); err != nil {
		logger.Errorf("close check cache: %v", err)
	}
	a.cache = nil
}
