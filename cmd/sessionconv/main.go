package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"telegram-session-converter/internal/adapters/cli"
	"telegram-session-converter/internal/app"
	"telegram-session-converter/internal/infra/config"
	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/pr"

	"github.com/go-faster/errors"
)

func main() {
	// envPath определяет расположение .env с api_id/api_hash и настройками логов.
	envPath := flag.String("env", "assets/.env", "path to .env file")
	flag.Usage = usage
	flag.Parse()

	// config.Load загружает конфигурацию из .env и окружения процесса.
	if err := config.Load(*envPath); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Логи идут в stderr: stdout занят строками сессий, которые читают конвейеры.
	logger.Init(config.Env().LogLevel)
	logger.SetWriters(pr.Stderr(), pr.Stderr())
	for _, msg := range config.Warnings() {
		logger.Warn(msg)
	}

	// Контекст с обработкой системных сигналов (Ctrl+C/SIGTERM). Важно: stop() нужно вызвать, чтобы снять подписку.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := app.NewApp()
	if iniErr := a.Init(ctx, stop); iniErr != nil {
		stop()
		logger.Fatal("app init failed", zap.Error(iniErr))
	}

	runErr := a.Run(flag.Args())
	stop()
	pr.Close()
	_ = logger.Logger().Sync()

	switch {
	case runErr == nil:
	case errors.Is(runErr, cli.ErrInvalidSession):
		os.Exit(1)
	case errors.Is(runErr, cli.ErrUnknownCommand):
		pr.ErrPrintln(runErr)
		usage()
		os.Exit(2) //nolint:mnd // код ошибки использования
	default:
		pr.ErrPrintln("error:", runErr)
		os.Exit(1)
	}
}

func usage() {
	pr.ErrPrintln("usage: sessionconv [-env path] <command> [flags]")
	pr.ErrPrintln("Run without a command to start the interactive console.")
	cli.PrintUsage(pr.Stderr())
}
