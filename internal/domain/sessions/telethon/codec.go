// Package telethon — формат сессий Telethon: строка StringSession и файл *.session (SQLite).
//
// Строка: символ версии '1' + base64url( dc_id:u8 | ip:4 или 16 байт | port:u16 BE | auth_key:256 ).
// Ширина IP определяется по длине декодированных данных: 263 байта — IPv4, 275 — IPv6.
package telethon

import (
	"encoding/base64"
	"encoding/binary"
	"net/netip"
	"strings"

	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/infra/telegram/datacenter"

	"github.com/go-faster/errors"
	"github.com/gotd/td/crypto"
)

const (
	// Version — маркер текущей версии строки StringSession.
	Version = '1'

	formatName = "telethon"
	keySize    = len(crypto.Key{})
	ipv4Size   = 1 + 4 + 2 + keySize
	ipv6Size   = 1 + 16 + 2 + keySize
)

// DefaultResolver подставляет адрес дата-центра, если в сессии его нет.
var DefaultResolver datacenter.Resolver = datacenter.Production()

// Session — сессия в представлении Telethon.
type Session struct {
	DC            int
	ServerAddress string // пусто — адрес берётся из резолвера при записи
	Port          int
	AuthKey       crypto.Key
	TakeoutID     int64 // 0 — takeout-сессии нет
}

// Decode разбирает строку StringSession. Неверная версия, base64 или длина — DecodeError.
func Decode(str string) (Session, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return Session{}, sessionerr.Decodef(formatName, 0, "empty string")
	}
	if str[0] != Version {
		return Session{}, sessionerr.Decodef(formatName, len(str), "unsupported version %q", str[0])
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(str[1:], "="))
	if err != nil {
		return Session{}, sessionerr.Decodef(formatName, len(str), "base64: %v", err)
	}

	var ipLen int
	switch len(raw) {
	case ipv4Size:
		ipLen = 4
	case ipv6Size:
		ipLen = 16
	default:
		return Session{}, sessionerr.Decodef(formatName, len(raw), "want %d or %d decoded bytes", ipv4Size, ipv6Size)
	}

	ip := raw[1 : 1+ipLen]
	var addr netip.Addr
	if ipLen == 4 {
		addr = netip.AddrFrom4([4]byte(ip))
	} else {
		addr = netip.AddrFrom16([16]byte(ip))
	}

	s := Session{
		DC:            int(raw[0]),
		ServerAddress: addr.String(),
		Port:          int(binary.BigEndian.Uint16(raw[1+ipLen:])),
	}
	copy(s.AuthKey[:], raw[3+ipLen:])
	return s, nil
}

// Encode кодирует сессию, при необходимости беря адрес из DefaultResolver.
func Encode(s Session) (string, error) {
	return EncodeWith(s, DefaultResolver)
}

// EncodeWith кодирует сессию с явным резолвером дата-центров.
func EncodeWith(s Session, r datacenter.Resolver) (string, error) {
	s, err := s.withAddress(r)
	if err != nil {
		return "", err
	}
	addr, err := netip.ParseAddr(s.ServerAddress)
	if err != nil {
		return "", errors.Wrapf(err, "parse server address %q", s.ServerAddress)
	}
	if addr.Zone() != "" {
		return "", errors.Errorf("server address %q has zone", s.ServerAddress)
	}

	var ip []byte
	if addr.Is4() {
		v4 := addr.As4()
		ip = v4[:]
	} else {
		v16 := addr.As16()
		ip = v16[:]
	}

	buf := make([]byte, 0, 1+len(ip)+2+keySize)
	buf = append(buf, byte(s.DC))
	buf = append(buf, ip...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(s.Port))
	buf = append(buf, s.AuthKey[:]...)

	return string(Version) + base64.URLEncoding.EncodeToString(buf), nil
}

// withAddress проверяет поля, которые упаковываются в фиксированную ширину,
// и заполняет адрес/порт из резолвера, если адрес не задан.
func (s Session) withAddress(r datacenter.Resolver) (Session, error) {
	if s.DC <= 0 || s.DC > 0xff {
		return s, errors.Errorf("dc %d out of range", s.DC)
	}
	if s.ServerAddress == "" {
		if r == nil {
			return s, errors.New("server address is empty and no resolver given")
		}
		addr, port, err := r.Resolve(s.DC)
		if err != nil {
			return s, errors.Wrap(err, "resolve data center")
		}
		s.ServerAddress, s.Port = addr, port
	}
	if s.Port <= 0 || s.Port > 0xffff {
		return s, errors.Errorf("port %d out of range", s.Port)
	}
	return s, nil
}
