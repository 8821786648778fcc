// Package pyrogram — формат сессий Pyrogram: строка session_string и файл *.session (SQLite).
//
// Строка — base64url без паддинга поверх одной из трёх раскладок (см. Layout).
// Запись всегда ведётся в LayoutCurrent; чтение принимает все три.
package pyrogram

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"

	"telegram-session-converter/internal/domain/sessions/sessionerr"

	"github.com/go-faster/errors"
	"github.com/gotd/td/crypto"
)

const (
	formatName = "pyrogram"
	keySize    = len(crypto.Key{})

	// PlaceholderUserID пишется вместо неизвестного user_id, как это делает сам Pyrogram.
	PlaceholderUserID int64 = 9999
	// UnknownAPIID — api_id legacy-строк. Кодируется как 0: другого «пустого» значения
	// поле u32 не допускает, а Pyrogram считает 0 отсутствием api_id.
	UnknownAPIID = 0
)

// Session — сессия в представлении Pyrogram.
type Session struct {
	DC       int
	APIID    int // UnknownAPIID, если строка legacy или значение не задано
	TestMode bool
	AuthKey  crypto.Key
	UserID   int64 // 0 — неизвестен; при записи подставляется PlaceholderUserID
	IsBot    bool

	// Layout — раскладка, из которой сессия декодирована. При записи игнорируется.
	Layout Layout
}

// Decode разбирает session_string. Отсутствующий паддинг base64 допускается.
func Decode(str string) (Session, error) {
	str = strings.TrimRight(strings.TrimSpace(str), "=")
	if str == "" {
		return Session{}, sessionerr.Decodef(formatName, 0, "empty string")
	}
	padded := str + strings.Repeat("=", (4-len(str)%4)%4)
	raw, err := base64.URLEncoding.DecodeString(padded)
	if err != nil {
		return Session{}, sessionerr.Decodef(formatName, len(str), "base64: %v", err)
	}

	layout, ok := ClassifyLength(len(raw))
	if !ok {
		return Session{}, sessionerr.Decodef(formatName, len(raw), "want %d, %d or %d decoded bytes",
			legacyNarrowSize, legacyWideSize, currentSize)
	}

	var s Session
	switch {
	case layout.HasAPIID():
		s = decodeCurrent(raw)
	case layout == LayoutLegacyNarrow:
		s = decodeLegacy(raw, 4)
	default:
		s = decodeLegacy(raw, 8)
	}
	if s.UserID < 0 {
		return Session{}, sessionerr.Decodef(formatName, len(raw), "user_id %d does not fit int64", uint64(s.UserID))
	}
	s.Layout = layout
	return s, nil
}

// decodeLegacy: dc | test_mode | auth_key | user_id(u32|u64) | is_bot.
func decodeLegacy(raw []byte, userIDWidth int) Session {
	s := Session{
		DC:       int(raw[0]),
		APIID:    UnknownAPIID,
		TestMode: raw[1] != 0,
	}
	copy(s.AuthKey[:], raw[2:2+keySize])
	rest := raw[2+keySize:]
	if userIDWidth == 4 {
		s.UserID = int64(binary.BigEndian.Uint32(rest))
	} else {
		s.UserID = int64(binary.BigEndian.Uint64(rest))
	}
	s.IsBot = rest[userIDWidth] != 0
	return s
}

// decodeCurrent: dc | api_id | test_mode | auth_key | user_id(u64) | is_bot.
func decodeCurrent(raw []byte) Session {
	s := Session{
		DC:       int(raw[0]),
		APIID:    int(binary.BigEndian.Uint32(raw[1:5])),
		TestMode: raw[5] != 0,
	}
	copy(s.AuthKey[:], raw[6:6+keySize])
	rest := raw[6+keySize:]
	s.UserID = int64(binary.BigEndian.Uint64(rest))
	s.IsBot = rest[8] != 0
	return s
}

// Encode упаковывает сессию в LayoutCurrent и возвращает base64url без паддинга.
func Encode(s Session) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	buf := make([]byte, 0, currentSize)
	buf = append(buf, byte(s.DC))
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.APIID))
	buf = append(buf, boolByte(s.TestMode))
	buf = append(buf, s.AuthKey[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(s.userIDOrPlaceholder()))
	buf = append(buf, boolByte(s.IsBot))
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s Session) check() error {
	if s.DC <= 0 || s.DC > math.MaxUint8 {
		return errors.Errorf("dc %d out of range", s.DC)
	}
	if s.APIID < 0 || int64(s.APIID) > math.MaxUint32 {
		return errors.Errorf("api_id %d out of range", s.APIID)
	}
	if s.UserID < 0 {
		return errors.Errorf("user_id %d is negative", s.UserID)
	}
	return nil
}

func (s Session) userIDOrPlaceholder() int64 {
	if s.UserID == 0 {
		return PlaceholderUserID
	}
	return s.UserID
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
