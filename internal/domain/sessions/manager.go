package sessions

import (
	"context"
	"encoding/hex"
	"sync"

	"telegram-session-converter/internal/domain/sessions/pyrogram"
	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/domain/sessions/telethon"
	"telegram-session-converter/internal/infra/logger"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Account — минимальные сведения о владельце сессии, полученные из сети.
type Account struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Phone     string
	Bot       bool
}

var errNoChecker = errors.New("no network checker configured")

// Checker выполняет запрос «кто я» от имени сессии. Реализация открывает
// собственное соединение на время вызова и закрывает его перед возвратом.
type Checker interface {
	WhoAmI(ctx context.Context, id Identity, profile Profile) (Account, error)
}

// Manager хранит одну каноническую сессию и конвертирует её между форматами.
// Identity неизменна; меняется только флаг валидности и кэш пользователя.
type Manager struct {
	id      Identity
	profile Profile

	mu      sync.Mutex
	checked bool
	valid   bool
	account *Account
}

// NewManager создаёт менеджер из готовой Identity.
func NewManager(id Identity, profile Profile) (*Manager, error) {
	if err := id.Check(); err != nil {
		return nil, errors.Wrap(err, "identity")
	}
	return &Manager{id: id, profile: profile}, nil
}

// FromTelethonString разбирает строку Telethon. user_id в этом формате не хранится.
func FromTelethonString(str string, profile Profile) (*Manager, error) {
	s, err := telethon.FromString(str)
	if err != nil {
		return nil, err
	}
	return NewManager(liftTelethon(s), profile)
}

// FromTelethonFile читает файл сессии Telethon.
func FromTelethonFile(ctx context.Context, path string, profile Profile) (*Manager, error) {
	s, err := telethon.FromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewManager(liftTelethon(s), profile)
}

// FromPyrogramString разбирает строку Pyrogram любой из трёх раскладок.
func FromPyrogramString(str string, profile Profile) (*Manager, error) {
	s, err := pyrogram.FromString(str)
	if err != nil {
		return nil, err
	}
	return NewManager(liftPyrogram(s), profile)
}

// FromPyrogramFile читает файл сессии Pyrogram.
func FromPyrogramFile(ctx context.Context, path string, profile Profile) (*Manager, error) {
	s, err := pyrogram.FromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewManager(liftPyrogram(s), profile)
}

func liftTelethon(s telethon.Session) Identity {
	return Identity{DC: s.DC, AuthKey: s.AuthKey}
}

// liftPyrogram переносит user_id, кроме заглушки 9999: её Pyrogram пишет вместо неизвестного значения.
func liftPyrogram(s pyrogram.Session) Identity {
	id := Identity{DC: s.DC, AuthKey: s.AuthKey, UserID: s.UserID, IsBot: s.IsBot}
	if id.UserID == pyrogram.PlaceholderUserID {
		id.UserID = 0
	}
	return id
}

// Identity возвращает каноническую сессию.
func (m *Manager) Identity() Identity { return m.id }

// Profile возвращает профиль клиента, с которым создан менеджер.
func (m *Manager) Profile() Profile { return m.profile }

// Telethon проецирует сессию в формат Telethon. Адрес и порт берутся из таблицы дата-центров при записи.
func (m *Manager) Telethon() telethon.Session {
	return telethon.Session{DC: m.id.DC, AuthKey: m.id.AuthKey}
}

// Pyrogram проецирует сессию в формат Pyrogram: test_mode=false, api_id неизвестен.
func (m *Manager) Pyrogram() pyrogram.Session {
	return pyrogram.Session{
		DC:      m.id.DC,
		APIID:   pyrogram.UnknownAPIID,
		AuthKey: m.id.AuthKey,
		UserID:  m.id.UserID,
		IsBot:   m.id.IsBot,
	}
}

// ToTelethonString кодирует сессию строкой Telethon.
func (m *Manager) ToTelethonString() (string, error) { return m.Telethon().ToString() }

// ToTelethonFile записывает файл сессии Telethon.
func (m *Manager) ToTelethonFile(ctx context.Context, path string) error {
	return m.Telethon().ToFile(ctx, path)
}

// ToPyrogramString кодирует сессию строкой Pyrogram (текущая раскладка).
func (m *Manager) ToPyrogramString() (string, error) { return m.Pyrogram().ToString() }

// ToPyrogramFile записывает файл сессии Pyrogram.
func (m *Manager) ToPyrogramFile(ctx context.Context, path string) error {
	return m.Pyrogram().ToFile(ctx, path)
}

// AuthKeyHex — ключ авторизации в hex. Секрет: не логировать.
func (m *Manager) AuthKeyHex() string { return hex.EncodeToString(m.id.AuthKey[:]) }

// AuthKeyID — идентификатор ключа в hex.
func (m *Manager) AuthKeyID() string { return m.id.KeyID() }

// Validate проверяет сессию запросом «кто я». Любая ошибка (сеть, таймаут,
// отозванный ключ) даёт false и пишется в лог; наружу не пробрасывается.
func (m *Manager) Validate(ctx context.Context, checker Checker) bool {
	_, err := m.Check(ctx, checker)
	if err != nil {
		logSessionCheckFailure(m.id, err)
		return false
	}
	return true
}

// Check выполняет ту же проверку, что и Validate, но возвращает ошибку как есть:
// отозванный ключ даёт sessionerr.ErrUnauthorized, сбой сети — *sessionerr.ConnectionError.
// Без checker проверка считается сетевым сбоем.
func (m *Manager) Check(ctx context.Context, checker Checker) (Account, error) {
	var (
		acc Account
		err error
	)
	if checker == nil {
		err = &sessionerr.ConnectionError{DC: m.id.DC, Err: errNoChecker}
	} else {
		acc, err = checker.WhoAmI(ctx, m.id, m.profile)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = true
	m.valid = err == nil
	if err != nil {
		return Account{}, err
	}
	m.account = &acc
	return acc, nil
}

// Valid возвращает результат последней проверки и признак того, что проверка была.
func (m *Manager) Valid() (valid, checked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid, m.checked
}

// Account возвращает владельца, полученного последней успешной проверкой.
func (m *Manager) Account() (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == nil {
		return Account{}, false
	}
	return *m.account, true
}

// UserIDOrFetch возвращает известный user_id, а если его нет — запрашивает его из сети.
// Для отозванного ключа ошибка удовлетворяет errors.Is(err, sessionerr.ErrValidation),
// сетевые сбои приходят как *sessionerr.ConnectionError.
func (m *Manager) UserIDOrFetch(ctx context.Context, checker Checker) (int64, error) {
	if m.id.UserID != 0 {
		return m.id.UserID, nil
	}
	if acc, ok := m.Account(); ok {
		return acc.ID, nil
	}
	acc, err := m.Check(ctx, checker)
	if err != nil {
		return 0, errors.Wrap(err, "fetch user id")
	}
	return acc.ID, nil
}

func logSessionCheckFailure(id Identity, err error) {
	fields := []zap.Field{zap.Int("dc", id.DC), zap.String("auth_key_id", id.KeyID()), zap.Error(err)}
	var connErr *sessionerr.ConnectionError
	switch {
	case errors.Is(err, sessionerr.ErrUnauthorized):
		logger.Info("session is not authorized", fields...)
	case errors.As(err, &connErr):
		logger.Warn("session check: connection failed", fields...)
	default:
		logger.Warn("session check failed", fields...)
	}
}
