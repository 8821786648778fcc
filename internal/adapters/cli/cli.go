// Package cli — команды конвертера сессий и интерактивная консоль (shell).
// Команды исполняются либо один раз из main, либо построчно из readline-цикла
// Service. Start/Stop сервиса идемпотентны и встраиваются в жизненный цикл приложения.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/pr"

	"github.com/go-faster/errors"
)

// commandDescriptor описывает одну CLI-команду: её имя и краткое описание для help.
type commandDescriptor struct {
	name        string
	description string
}

// commandDescriptors — реестр доступных команд. Рендерится в help и подсказки.
// Важно: имена должны совпадать с кейсами в Commands.Execute() и handleCommand().
var (
	commandDescriptors = []commandDescriptor{
		{name: "help", description: "Show available commands with short descriptions"},
		{name: "convert", description: "Convert a session: [-in S] [-from F] [-to F] [-out PATH]"},
		{name: "inspect", description: "Print DC, key id and user id of a session [-show-key]"},
		{name: "validate", description: "Ask Telegram whether a session is still authorized"},
		{name: "check", description: "Validate every session file in a directory [-workers N] <dir>"},
		{name: "login", description: "Log in by phone and print the new session [-phone P] [-to F]"},
		{name: "version", description: "Print converter version"},
		{name: "shell", description: "Start the interactive console"},
		{name: "exit", description: "Leave the interactive console"},
	}
)

// Service — интерактивная консоль поверх Commands.
// Имеет собственный cancel, запускает цикл чтения команд в отдельной горутине
// и синхронно закрывается через Stop().
type Service struct {
	cmds      *Commands
	stopApp   context.CancelFunc // внешняя отмена приложения (exit, Ctrl-C на пустой строке)
	cancel    context.CancelFunc // локальная отмена run-цикла
	wg        sync.WaitGroup
	onceStart sync.Once
	onceStop  sync.Once
}

// NewService создаёт консоль. stopApp вызывается при exit и Ctrl-C на пустой строке.
func NewService(cmds *Commands, stopApp context.CancelFunc) *Service {
	return &Service{cmds: cmds, stopApp: stopApp}
}

// Start запускает основной цикл в отдельной горутине. Повторные вызовы игнорируются.
func (s *Service) Start(ctx context.Context) {
	s.onceStart.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Go(func() {
			s.run(runCtx)
		})
	})
}

// Stop прерывает readline, отменяет локальный контекст и дожидается завершения run-цикла.
func (s *Service) Stop() {
	s.onceStop.Do(func() {
		if s.stopApp != nil {
			s.stopApp()
		}
		pr.InterruptReadline()
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

// run — основной цикл консоли. Печатает подсказки, устанавливает обработчики
// клавиш и в цикле читает команды построчно, передавая их в handleCommand().
func (s *Service) run(ctx context.Context) {
	logger.Debug("CLI run started")
	// Выход из цикла по любой причине завершает приложение.
	defer func() {
		if s.stopApp != nil {
			s.stopApp()
		}
	}()
	if err := pr.Init(); err != nil {
		logger.Errorf("CLI: readline init failed: %v", err)
		return
	}
	logger.SetWriters(pr.Stdout(), pr.Stderr())
	defer func() {
		pr.Close()
		logger.SetWriters(pr.Stderr(), pr.Stderr())
	}()

	pr.SetPrompt("> ")
	pr.Println("Session console. Enter commands:", joinCommandNames(commandDescriptors))
	pr.Println("Press '?' or type 'help' for detailed descriptions.")
	installKeyHandlers(s.stopApp)

	for {
		if ctx.Err() != nil {
			logger.Debug("CLI: context canceled")
			return
		}

		rl := pr.Rl()
		if rl == nil {
			return
		}
		line, err := rl.Readline()
		if err != nil {
			logger.Debug("CLI: deactivated (io.EOF)")
			return
		}
		// Команды вроде login меняют приглашение; возвращаем своё.
		pr.SetPrompt("> ")

		cmd := strings.TrimSpace(line)
		if s.handleCommand(ctx, cmd) {
			logger.Debugf("CLI: command %q requested exit", cmd)
			return
		}
	}
}

// installKeyHandlers подключает обработчики специальных клавиш для readline:
//   - '?' — печать help без отправки символа в текущую строку;
//   - Ctrl-C на пустой строке — остановка (stop) и прерывание readline;
//   - Ctrl-C на непустой строке — очистка текущей строки.
func installKeyHandlers(stop context.CancelFunc) {
	rl := pr.Rl()
	if rl == nil || rl.Config == nil {
		return
	}

	prev := rl.Config.Listener
	rl.Config.SetListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
		if key == '?' {
			printCommandHelp()
			if pos > 0 && pos <= len(line) {
				trimmed := append([]rune{}, line[:pos-1]...)
				trimmed = append(trimmed, line[pos:]...)
				return trimmed, pos - 1, true
			}
			return line, pos, true
		}
		if key == 3 { //nolint: mnd // Ctrl-C (ETX, rune value 3)
			if strings.TrimSpace(string(line)) != "" {
				return []rune{}, 0, true
			}
			if stop != nil {
				stop()
			}
			pr.InterruptReadline()
			return line, pos, true
		}
		if prev != nil {
			return prev.OnChange(line, pos, key)
		}
		return nil, 0, false
	})
}

// printCommandHelp печатает список поддерживаемых команд и их описания.
func printCommandHelp() {
	for _, text := range buildCommandHelpLines(commandDescriptors) {
		pr.Println(text)
	}
}

// PrintUsage печатает справку по командам в w (для -h и ошибок разбора в main).
func PrintUsage(w io.Writer) {
	for _, text := range buildCommandHelpLines(commandDescriptors) {
		fmt.Fprintln(w, text)
	}
}

// handleCommand разбирает введённую строку и выполняет команду.
// Возвращает true, если команда завершает консоль ("exit").
func (s *Service) handleCommand(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "exit":
		if s.stopApp != nil {
			s.stopApp()
		}
		return true
	case "shell":
		pr.Println("Already in the interactive console.")
		return false
	}

	err := s.cmds.Execute(ctx, args)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownCommand):
		pr.Println("unknown command:", args[0])
	case errors.Is(err, ErrInvalidSession):
		// Результат уже напечатан командой.
	default:
		pr.ErrPrintln(args[0], "error:", err)
	}
	return false
}

// joinCommandNames собирает строку имён команд, разделённых запятыми, для короткой подсказки.
func joinCommandNames(descriptors []commandDescriptor) string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.name)
	}
	return strings.Join(names, ", ")
}

// buildCommandHelpLines генерирует строки помощи вида "<name> - <description>".
func buildCommandHelpLines(descriptors []commandDescriptor) []string {
	lines := make([]string, 0, len(descriptors)+1)
	lines = append(lines, "Available commands:")
	for _, descriptor := range descriptors {
		lines = append(lines, fmt.Sprintf("  %-8s - %s", descriptor.name, descriptor.description))
	}
	return lines
}
