// Package validator — сетевая проверка сессии запросом «кто я» (users.getUsers с inputUserSelf).
// Каждый вызов открывает собственное соединение, делает один запрос и закрывает его;
// общих изменяемых данных между вызовами нет, поэтому Checker безопасен для параллельного использования.
package validator

import (
	"context"
	"time"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/telegram/client"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

// DefaultTimeout ограничивает подключение вместе с запросом.
const DefaultTimeout = 20 * time.Second

// unauthorizedTypes — ответы сервера, означающие, что ключ больше не даёт доступа к аккаунту.
var unauthorizedTypes = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"AUTH_KEY_PERM_EMPTY",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"USER_DEACTIVATED",
	"USER_DEACTIVATED_BAN",
}

// Checker реализует sessions.Checker поверх gotd.
type Checker struct {
	cfg     client.Config
	timeout time.Duration
}

var _ sessions.Checker = (*Checker)(nil)

// New создаёт Checker. cfg.Profile используется, когда у проверяемой сессии нет своих api_id/api_hash.
func New(cfg client.Config, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.Storage = nil
	cfg.Updates = false
	return &Checker{cfg: cfg, timeout: timeout}
}

// WhoAmI подключается с ключом id и запрашивает текущего пользователя.
// Отозванный ключ даёт ошибку с sessionerr.ErrUnauthorized, остальные сбои — *sessionerr.ConnectionError.
func (c *Checker) WhoAmI(ctx context.Context, id sessions.Identity, profile sessions.Profile) (sessions.Account, error) {
	cfg := c.cfg
	if profile.HasCredentials() {
		cfg.Profile = profile
	}

	cl, err := client.New(ctx, cfg, &id)
	if err != nil {
		return sessions.Account{}, errors.Wrap(err, "build client")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var acc sessions.Account
	started := time.Now()
	err = cl.Run(ctx, func(ctx context.Context) error {
		self, err := cl.Self(ctx)
		if err != nil {
			return err
		}
		acc = sessions.Account{
			ID:        self.ID,
			Username:  self.Username,
			FirstName: self.FirstName,
			LastName:  self.LastName,
			Phone:     self.Phone,
			Bot:       self.Bot,
		}
		return nil
	})
	logger.Debug("who am i finished",
		zap.Int("dc", id.DC),
		zap.String("auth_key_id", id.KeyID()),
		zap.Duration("took", time.Since(started)),
		zap.Bool("ok", err == nil),
	)
	if err != nil {
		return sessions.Account{}, classify(id.DC, err)
	}
	return acc, nil
}

// classify разделяет отказ сервера в авторизации и сбои соединения.
func classify(dc int, err error) error {
	if rpcErr, ok := tgerr.As(err); ok {
		if rpcErr.Code == 401 || rpcErr.IsOneOf(unauthorizedTypes...) {
			return errors.Wrap(sessionerr.ErrUnauthorized, rpcErr.Type)
		}
	}
	return &sessionerr.ConnectionError{DC: dc, Err: err}
}
