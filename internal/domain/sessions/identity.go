// Package sessions — каноническое представление сессии Telegram, не зависящее от
// конвенций конкретной клиентской библиотеки, и конвертация между форматами.
package sessions

import (
	"encoding/hex"
	"math"

	"github.com/go-faster/errors"
	"github.com/gotd/td/crypto"
)

// Identity — канонические данные авторизации: дата-центр, ключ и, если известен, владелец.
// Адрес сервера, test_mode и api_id сюда не входят: они восстанавливаются при проекции
// в конкретный формат.
type Identity struct {
	DC      int
	AuthKey crypto.Key
	UserID  int64 // 0 — неизвестен
	IsBot   bool
}

// Check проверяет инварианты Identity.
func (id Identity) Check() error {
	if id.DC <= 0 || id.DC > math.MaxUint8 {
		return errors.Errorf("dc %d out of range", id.DC)
	}
	if id.UserID < 0 {
		return errors.Errorf("user_id %d is negative", id.UserID)
	}
	return nil
}

// KeyID — идентификатор ключа (младшие 8 байт SHA1) в hex. Безопасен для логов.
func (id Identity) KeyID() string {
	keyID := id.AuthKey.ID()
	return hex.EncodeToString(keyID[:])
}

// Profile — описание клиентского приложения, от имени которого открывается соединение.
type Profile struct {
	Name           string
	APIID          int
	APIHash        string
	DeviceModel    string
	SystemVersion  string
	AppVersion     string
	LangCode       string
	SystemLangCode string
	LangPack       string
	TestDC         bool
}

// HasCredentials сообщает, задана ли пара api_id/api_hash, без которой сеть недоступна.
func (p Profile) HasCredentials() bool {
	return p.APIID > 0 && p.APIHash != ""
}
