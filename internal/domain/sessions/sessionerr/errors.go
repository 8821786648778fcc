// Package sessionerr — общие виды ошибок конвертера сессий.
// Три категории:
//   - ErrValidation — файл сессии не прошёл проверку схемы или содержимого;
//   - DecodeError — строка сессии не соответствует ни одному известному формату;
//   - ConnectionError — сетевая проверка сессии не удалась (используется только валидатором).
package sessionerr

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrValidation сигнализирует, что файл сессии отвергнут: схема не совпала,
// файл не является базой SQLite или в таблице sessions нет корректной строки.
var ErrValidation = errors.New("session file validation failed")

// ErrUnauthorized — ключ не привязан к аккаунту или отозван сервером.
// Является частным случаем ErrValidation.
var ErrUnauthorized = errors.Wrap(ErrValidation, "session is not authorized")

// ErrDecode — корневая ошибка для всех DecodeError. Позволяет проверять
// errors.Is(err, sessionerr.ErrDecode) без приведения типа.
var ErrDecode = errors.New("session string decode failed")

// DecodeError описывает строку, которую не удалось разобрать.
type DecodeError struct {
	Format string // telethon | pyrogram | gotd
	Length int    // длина входа (символы строки или байты после base64)
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s session (len %d): %s", e.Format, e.Length, e.Reason)
}

// Is связывает DecodeError с ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Decodef — короткий конструктор DecodeError.
func Decodef(format string, length int, reason string, args ...any) error {
	return &DecodeError{Format: format, Length: length, Reason: fmt.Sprintf(reason, args...)}
}

// Validationf оборачивает ErrValidation уточнением причины.
func Validationf(format string, args ...any) error {
	return errors.Wrap(ErrValidation, fmt.Sprintf(format, args...))
}

// ConnectionError — сбой соединения или RPC при проверке сессии в сети.
type ConnectionError struct {
	DC  int
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("dc %d: connection check failed: %v", e.DC, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
