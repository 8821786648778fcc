package app

import (
	"context"

	"telegram-session-converter/internal/adapters/cli"
	"telegram-session-converter/internal/infra/logger"
)

// Runner оркестрирует интерактивный режим: запускает консоль и гасит её
// по команде exit, Ctrl-C на пустой строке или сигналу процесса.
type Runner struct {
	mainCtx    context.Context    // Внешний контекст процесса: отменяется по Ctrl+C/сигналам.
	mainCancel context.CancelFunc // Инициирует общий shutdown (exit в консоли).
	cmds       *cli.Commands
	cliService *cli.Service
}

// NewRunner подготавливает Runner для консоли поверх cmds.
func NewRunner(mainCtx context.Context, mainCancel context.CancelFunc, cmds *cli.Commands) *Runner {
	return &Runner{mainCtx: mainCtx, mainCancel: mainCancel, cmds: cmds}
}

// Run блокируется до отмены mainCtx.
func (r *Runner) Run() error {
	logger.Debug("starting service cli")
	r.cliService = cli.NewService(r.cmds, r.mainCancel)
	r.cliService.Start(r.mainCtx)
	logger.Debug("service cli started")

	<-r.mainCtx.Done()

	logger.Debug("stopping service cli")
	r.cliService.Stop()
	logger.Debug("service cli stopped")
	return nil
}
