// Package pr — тонкая обёртка для унифицированного вывода в интерактивной CLI-среде.
// До Init() печать идёт прямо в os.Stdout/os.Stderr, что подходит для разовых команд
// и конвейеров. Init() поднимает readline с отменяемым stdin и переназначает
// stdout/stderr на его буферы, чтобы логи не ломали строку ввода в shell и login.
// Конкурентность: мьютекс защищает только смену целевых writer’ов; сами записи в writer
// не сериализуются здесь и должны быть потокобезопасны на стороне целевого writer’а.

package pr

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/go-faster/errors"
	"github.com/kr/pretty"
	"golang.org/x/term"
)

var (
	// rl — активный инстанс readline. Появляется после Init(). Может быть nil до инициализации.
	rl *readline.Instance
	// out — текущий поток стандартного вывода. До Init() указывает на os.Stdout; после Init() — на rl.Stdout().
	out io.Writer = os.Stdout
	// errOut — поток вывода ошибок. До Init() — os.Stderr; после Init() — rl.Stderr().
	errOut io.Writer = os.Stderr
	// mu защищает замену ссылок на writer’ы и cancelableIn. Не сериализует сами операции записи.
	mu sync.Mutex

	// cancelableIn — дескриптор stdin, который можно закрыть для прерывания чтения (io.EOF в readline).
	cancelableIn interface{ Close() error }
)

// Init настраивает readline и перенаправляет внутренние потоки вывода на его stdout/stderr.
// Повторный вызов ничего не делает.
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if rl != nil {
		return nil
	}

	// Закрытие cs приведёт к io.EOF у readline и аккуратному выходу из ожидания ввода.
	cs := readline.NewCancelableStdin(os.Stdin)
	newRl, err := readline.NewEx(&readline.Config{Stdin: cs})
	if err != nil {
		_ = cs.Close()
		return err
	}
	rl = newRl
	cancelableIn = cs
	out = rl.Stdout()
	errOut = rl.Stderr()
	return nil
}

// Close закрывает readline и возвращает вывод в os.Stdout/os.Stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if rl != nil {
		_ = rl.Close()
		rl = nil
	}
	cancelableIn = nil
	out = os.Stdout
	errOut = os.Stderr
}

// InterruptReadline закрывает cancelable stdin: Readline() получает io.EOF и возвращается.
// Идемпотентна: повторное закрытие проигнорируется реализацией.
func InterruptReadline() {
	mu.Lock()
	in := cancelableIn
	mu.Unlock()
	if in != nil {
		_ = in.Close()
	}
}

// SetPrompt задаёт строку приглашения. Без Init() ничего не делает.
func SetPrompt(prompt string) {
	if r := Rl(); r != nil {
		r.SetPrompt(prompt)
	}
}

// Rl возвращает текущий инстанс readline (может быть nil, если Init() не вызывался).
func Rl() *readline.Instance {
	mu.Lock()
	defer mu.Unlock()
	return rl
}

// ReadLine выводит приглашение, читает строку и обрезает пробелы по краям.
func ReadLine(prompt string) (string, error) {
	r := Rl()
	if r == nil {
		return "", errors.New("readline is not initialized")
	}
	r.SetPrompt(prompt)
	line, err := r.Readline()
	return strings.TrimSpace(line), err
}

// ReadSecret читает строку без эха (ключи, строки сессий, пароль 2FA).
// Если stdin не терминал, читается обычная строка через readline.
func ReadSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ReadLine(prompt)
	}
	Print(prompt)
	secret, err := term.ReadPassword(fd)
	// Возвращаем курсор на новую строку после скрытого ввода.
	Println()
	if err != nil {
		return "", errors.Wrap(err, "read secret")
	}
	return strings.TrimSpace(string(secret)), nil
}

// Stdout возвращает текущий writer стандартного вывода. Блокировка защищает только чтение ссылки.
func Stdout() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// Stderr возвращает текущий writer ошибок. Аналогично Stdout: защита только на чтение ссылки.
func Stderr() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return errOut
}

// SetOutput подменяет writer’ы (nil — os.Stdout/os.Stderr). Используется в тестах команд.
func SetOutput(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out, errOut = stdout, stderr
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
}

// Print печатает значения в Stdout без перевода строки.
func Print(a ...any) {
	fmt.Fprint(Stdout(), a...)
}

// Println печатает значения в Stdout и добавляет перевод строки.
func Println(a ...any) {
	fmt.Fprintln(Stdout(), a...)
}

// Printf форматирует строку и печатает её в Stdout.
func Printf(format string, a ...any) {
	fmt.Fprintf(Stdout(), format, a...)
}

// ErrPrintln печатает значения в Stderr и добавляет перевод строки.
func ErrPrintln(a ...any) {
	fmt.Fprintln(Stderr(), a...)
}

// ErrPrintf форматирует строку и печатает её в Stderr.
func ErrPrintf(format string, a ...any) {
	fmt.Fprintf(Stderr(), format, a...)
}

// PP pretty-печатает значение в Stdout.
func PP(v any) {
	fmt.Fprintf(Stdout(), "%# v\n", pretty.Formatter(v))
}

// Pf возвращает pretty-строку значения.
func Pf(v any) string {
	return fmt.Sprintf("%# v\n", pretty.Formatter(v))
}
