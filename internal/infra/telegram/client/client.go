// Package client — явная фабрика MTProto-клиентов gotd.
// Получает простую запись Config и каноническую сессию, возвращает клиент,
// готовый к Run. Никакого глобального состояния: каждый вызов New создаёт
// независимый клиент со своим хранилищем сессии и middleware.
package client

import (
	"context"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/telegram/datacenter"
	"telegram-session-converter/internal/infra/telegram/session"

	"github.com/go-faster/errors"
	"golang.org/x/time/rate"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"

	tdsession "github.com/gotd/td/session"
)

// Config — всё, что нужно для сборки клиента.
type Config struct {
	Profile sessions.Profile
	// RPS ограничивает частоту RPC; 0 — без ограничения.
	RPS float64
	// Storage — хранилище сессии gotd; nil — память процесса.
	Storage tdsession.Storage
	// Updates включает приём апдейтов; для разовых проверок не нужен.
	Updates bool
}

// Client — gotd-клиент вместе с обработчиком FLOOD_WAIT и хранилищем его сессии.
type Client struct {
	*telegram.Client
	waiter  *floodwait.Waiter
	storage tdsession.Storage
}

// New собирает клиент по cfg. Если задан id, хранилище заполняется этой сессией
// и клиент подключится сразу к её дата-центру без новой авторизации.
func New(ctx context.Context, cfg Config, id *sessions.Identity) (*Client, error) {
	if !cfg.Profile.HasCredentials() {
		return nil, errors.New("api_id and api_hash are required")
	}

	storage := cfg.Storage
	if storage == nil {
		storage = new(tdsession.StorageMemory)
	}
	if id != nil {
		data, err := session.FromIdentity(*id, datacenter.For(cfg.Profile.TestDC))
		if err != nil {
			return nil, err
		}
		loader := tdsession.Loader{Storage: storage}
		if err := loader.Save(ctx, data); err != nil {
			return nil, errors.Wrap(err, "prefill session")
		}
	}

	waiter := floodwait.NewWaiter()
	middlewares := []telegram.Middleware{waiter}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS * 2) //nolint:mnd // burst = 2*rate
		if burst < 1 {
			burst = 1
		}
		middlewares = append(middlewares, ratelimit.New(rate.Limit(cfg.RPS), burst))
	}

	options := telegram.Options{
		SessionStorage: storage,
		Middlewares:    middlewares,
		NoUpdates:      !cfg.Updates,
		Device:         Device(cfg.Profile),
	}
	if cfg.Profile.TestDC {
		options.DCList = dcs.Test()
	}
	if logger.IsDebugEnabled() {
		options.Logger = logger.Logger().Named("mtproto")
	}

	return &Client{
		Client:  telegram.NewClient(cfg.Profile.APIID, cfg.Profile.APIHash, options),
		waiter:  waiter,
		storage: storage,
	}, nil
}

// Device переводит профиль в паспорт устройства gotd. Пустые поля gotd заполнит сам.
func Device(p sessions.Profile) telegram.DeviceConfig {
	return telegram.DeviceConfig{
		DeviceModel:    p.DeviceModel,
		SystemVersion:  p.SystemVersion,
		AppVersion:     p.AppVersion,
		SystemLangCode: p.SystemLangCode,
		LangPack:       p.LangPack,
		LangCode:       p.LangCode,
	}
}

// Run подключается, выполняет f и закрывает соединение. FLOOD_WAIT внутри f
// обрабатывается ожиданием, а не ошибкой.
func (c *Client) Run(ctx context.Context, f func(ctx context.Context) error) error {
	return c.waiter.Run(ctx, func(ctx context.Context) error {
		return c.Client.Run(ctx, f)
	})
}

// Identity читает из хранилища текущую сессию клиента (например, после авторизации).
func (c *Client) Identity(ctx context.Context) (sessions.Identity, error) {
	loader := tdsession.Loader{Storage: c.storage}
	data, err := loader.Load(ctx)
	if err != nil {
		return sessions.Identity{}, errors.Wrap(err, "load client session")
	}
	return session.ToIdentity(data)
}
