package sessions

import (
	"context"
	"strings"

	"telegram-session-converter/internal/domain/sessions/pyrogram"
	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/domain/sessions/telethon"

	"github.com/go-faster/errors"
)

// Format — конвенция библиотеки, в которой записана сессия.
type Format int

const (
	FormatUnknown Format = iota
	FormatTelethon
	FormatPyrogram
)

func (f Format) String() string {
	switch f {
	case FormatTelethon:
		return "telethon"
	case FormatPyrogram:
		return "pyrogram"
	default:
		return "unknown"
	}
}

// ParseFormat разбирает имя формата без учёта регистра.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "telethon", "a":
		return FormatTelethon, nil
	case "pyrogram", "b":
		return FormatPyrogram, nil
	default:
		return FormatUnknown, errors.Errorf("unknown session format %q", name)
	}
}

// DetectString определяет формат строки попыткой декодирования. Длины строк
// Telethon (353/369 символов с маркером и паддингом) и Pyrogram (351/356/362) не пересекаются,
// поэтому результат однозначен.
func DetectString(str string) Format {
	if _, err := telethon.Decode(str); err == nil {
		return FormatTelethon
	}
	if _, err := pyrogram.Decode(str); err == nil {
		return FormatPyrogram
	}
	return FormatUnknown
}

// DetectFile определяет формат файла сессии по схеме SQLite.
func DetectFile(ctx context.Context, path string) Format {
	switch {
	case telethon.Validate(ctx, path):
		return FormatTelethon
	case pyrogram.Validate(ctx, path):
		return FormatPyrogram
	default:
		return FormatUnknown
	}
}

// FromString разбирает строку сессии любого известного формата.
func FromString(str string, profile Profile) (*Manager, Format, error) {
	switch format := DetectString(str); format {
	case FormatTelethon:
		m, err := FromTelethonString(str, profile)
		return m, format, err
	case FormatPyrogram:
		m, err := FromPyrogramString(str, profile)
		return m, format, err
	default:
		return nil, FormatUnknown, sessionerr.Decodef("any", len(strings.TrimSpace(str)), "not a telethon or pyrogram session string")
	}
}

// FromFile читает файл сессии любого известного формата.
func FromFile(ctx context.Context, path string, profile Profile) (*Manager, Format, error) {
	switch format := DetectFile(ctx, path); format {
	case FormatTelethon:
		m, err := FromTelethonFile(ctx, path, profile)
		return m, format, err
	case FormatPyrogram:
		m, err := FromPyrogramFile(ctx, path, profile)
		return m, format, err
	default:
		return nil, FormatUnknown, sessionerr.Validationf("%s is not a telethon or pyrogram session file", path)
	}
}

// ToString кодирует сессию строкой формата format.
func (m *Manager) ToString(format Format) (string, error) {
	switch format {
	case FormatTelethon:
		return m.ToTelethonString()
	case FormatPyrogram:
		return m.ToPyrogramString()
	default:
		return "", errors.Errorf("cannot encode to %s format", format)
	}
}

// ToFile записывает файл сессии формата format.
func (m *Manager) ToFile(ctx context.Context, format Format, path string) error {
	switch format {
	case FormatTelethon:
		return m.ToTelethonFile(ctx, path)
	case FormatPyrogram:
		return m.ToPyrogramFile(ctx, path)
	default:
		return errors.Errorf("cannot write %s format", format)
	}
}
