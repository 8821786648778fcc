package session

import (
	"context"
	"net"
	"strconv"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/infra/telegram/datacenter"

	"github.com/go-faster/errors"
	"github.com/gotd/td/crypto"

	tdsession "github.com/gotd/td/session"
)

// FromIdentity собирает tdsession.Data: адрес дата-центра берётся из r,
// AuthKeyID вычисляется из ключа. Config остаётся пустым: gotd запросит его при подключении.
func FromIdentity(id sessions.Identity, r datacenter.Resolver) (*tdsession.Data, error) {
	if err := id.Check(); err != nil {
		return nil, err
	}
	addr, port, err := r.Resolve(id.DC)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve dc %d", id.DC)
	}
	keyID := id.AuthKey.ID()
	return &tdsession.Data{
		DC:        id.DC,
		Addr:      net.JoinHostPort(addr, strconv.Itoa(port)),
		AuthKey:   append([]byte(nil), id.AuthKey[:]...),
		AuthKeyID: keyID[:],
	}, nil
}

// ToIdentity извлекает Identity из сессии gotd. user_id в ней не хранится.
func ToIdentity(data *tdsession.Data) (sessions.Identity, error) {
	if data == nil {
		return sessions.Identity{}, errors.New("nil session data")
	}
	var key crypto.Key
	if len(data.AuthKey) != len(key) {
		return sessions.Identity{}, errors.Errorf("auth key is %d bytes, want %d", len(data.AuthKey), len(key))
	}
	copy(key[:], data.AuthKey)
	dc := data.DC
	if dc == 0 {
		dc = data.Config.ThisDC
	}
	id := sessions.Identity{DC: dc, AuthKey: key}
	if err := id.Check(); err != nil {
		return sessions.Identity{}, err
	}
	return id, nil
}

// ReadFile читает JSON-файл сессии gotd.
func ReadFile(ctx context.Context, path string) (sessions.Identity, error) {
	loader := tdsession.Loader{Storage: &File{Path: path}}
	data, err := loader.Load(ctx)
	if err != nil {
		return sessions.Identity{}, errors.Wrapf(err, "load gotd session %s", path)
	}
	return ToIdentity(data)
}

// WriteFile записывает Identity в JSON-файл сессии gotd.
func WriteFile(ctx context.Context, path string, id sessions.Identity, r datacenter.Resolver) error {
	data, err := FromIdentity(id, r)
	if err != nil {
		return err
	}
	loader := tdsession.Loader{Storage: &File{Path: path}}
	if err := loader.Save(ctx, data); err != nil {
		return errors.Wrapf(err, "save gotd session %s", path)
	}
	return nil
}
