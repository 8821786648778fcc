// Package logger — общий zap-логгер конвертера.
// Консольное ядро пишет в сменяемый writer (stderr для разовых команд, readline в shell),
// необязательное файловое ядро пишет JSON с ротацией через lumberjack.
// Уровни консоли и файла независимы; смена writer’ов и файла пересобирает логгер под mu.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions описывает файловый sink с ротацией. Пустой Path — файла нет.
type FileOptions struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// sinks — текущие приёмники логов. Меняется только под mu.
type sinks struct {
	out      zapcore.WriteSyncer
	errOut   zapcore.WriteSyncer
	color    bool
	file     *lumberjack.Logger
	fileCore zapcore.Core
}

var (
	mu    sync.Mutex
	log   *zap.Logger
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cur   = sinks{
		out:    zapcore.Lock(os.Stderr),
		errOut: zapcore.Lock(os.Stderr),
		color:  isTerminal(os.Stderr),
	}
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// consoleEncoderConfig — короткий человекочитаемый формат; цвет только для терминала.
func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

// rebuildLocked собирает логгер из cur. Вызывается под mu.
func rebuildLocked() {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig(cur.color)), cur.out, level)
	if cur.fileCore != nil {
		core = zapcore.NewTee(core, cur.fileCore)
	}
	if log != nil {
		_ = log.Sync()
	}
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.ErrorOutput(cur.errOut))
}

// Init задаёт уровень консоли: debug, info (по умолчанию), warn, error.
func Init(lvl string) {
	mu.Lock()
	defer mu.Unlock()
	level.SetLevel(parseLevel(lvl))
	rebuildLocked()
}

// parseLevel переводит строковый уровень в zapcore.Level; неизвестное значение — Info.
func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// SetFile включает JSON-лог в файл с ротацией или выключает его при пустом Path.
// Предыдущий файл закрывается.
func SetFile(opts FileOptions) {
	mu.Lock()
	defer mu.Unlock()

	if cur.file != nil {
		_ = cur.file.Close()
	}
	cur.file, cur.fileCore = nil, nil

	if strings.TrimSpace(opts.Path) != "" {
		cur.file = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		cfg := consoleEncoderConfig(false)
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cur.fileCore = zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(cur.file), parseLevel(opts.Level))
	}
	rebuildLocked()
}

// SetWriters меняет консольные приёмники. nil — os.Stderr.
func SetWriters(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if stdout == nil {
		stdout = os.Stderr
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	cur.out = zapcore.Lock(zapcore.AddSync(stdout))
	cur.errOut = zapcore.Lock(zapcore.AddSync(stderr))
	cur.color = isTerminal(stdout)
	rebuildLocked()
}

// Logger возвращает текущий zap.Logger.
func Logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		rebuildLocked()
	}
	return log
}

// IsDebugEnabled сообщает, пишет ли debug хотя бы одно ядро (консоль или файл).
func IsDebugEnabled() bool {
	return Logger().Level() <= zap.DebugLevel
}

func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Logger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Logger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }

// Fatal пишет сообщение, сбрасывает буферы и завершает процесс с кодом 1.
func Fatal(msg string, fields ...zap.Field) {
	l := Logger()
	l.Error(msg, fields...)
	_ = l.Sync()
	os.Exit(1)
}

// Форматирующие варианты. Для новых мест предпочтительны поля zap.

func Debugf(msg string, a ...any) { Logger().Debug(fmt.Sprintf(msg, a...)) }
func Infof(msg string, a ...any)  { Logger().Info(fmt.Sprintf(msg, a...)) }
func Warnf(msg string, a ...any)  { Logger().Warn(fmt.Sprintf(msg, a...)) }
func Errorf(msg string, a ...any) { Logger().Error(fmt.Sprintf(msg, a...)) }
