// Package datacenter сопоставляет номер дата-центра Telegram адресу и порту по умолчанию.
// Источник адресов — встроенные списки gotd (dcs.Prod/dcs.Test), те же, которыми
// пользуется MTProto-клиент при первом подключении.
package datacenter

import (
	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
)

// Resolver возвращает адрес и порт дата-центра dc.
type Resolver interface {
	Resolve(dc int) (addr string, port int, err error)
}

// ListResolver выбирает адрес из статического списка опций дата-центров.
// Берётся первая IPv4 (или IPv6, если задан IPv6) опция с нужным ID, не CDN и не media-only.
type ListResolver struct {
	List dcs.List
	IPv6 bool
}

var _ Resolver = ListResolver{}

// Production — резолвер боевых дата-центров по IPv4.
func Production() ListResolver { return ListResolver{List: dcs.Prod()} }

// Test — резолвер тестовых дата-центров по IPv4.
func Test() ListResolver { return ListResolver{List: dcs.Test()} }

// For выбирает боевой или тестовый список.
func For(testMode bool) ListResolver {
	if testMode {
		return Test()
	}
	return Production()
}

// Resolve реализует Resolver.
func (r ListResolver) Resolve(dc int) (string, int, error) {
	for _, opt := range r.List.Options {
		if usable(opt, dc, r.IPv6) {
			return opt.IPAddress, opt.Port, nil
		}
	}
	return "", 0, errors.Errorf("unknown data center %d", dc)
}

func usable(opt tg.DCOption, dc int, ipv6 bool) bool {
	return opt.ID == dc && opt.Ipv6 == ipv6 && !opt.MediaOnly && !opt.CDN
}
