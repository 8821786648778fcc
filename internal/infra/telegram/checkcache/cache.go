// Package checkcache — персистентный кэш результатов сетевой проверки сессий на bbolt.
// Ключ — идентификатор ключа авторизации (hex), значение — JSON с итогом проверки.
// Кэшируются только ответы сервера (ключ жив или отозван); сетевые сбои не сохраняются,
// чтобы повторный запуск проверил такие сессии заново.
package checkcache

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/storage"

	"github.com/go-faster/errors"
	"go.etcd.io/bbolt"
)

const (
	resultsBucketName             = "check_results"
	dbOpenTimeout                 = time.Second
	dbFileMode        os.FileMode = 0o600
)

var resultsBucket = []byte(resultsBucketName)

// Entry — сохранённый итог проверки одной сессии.
type Entry struct {
	Valid     bool      `json:"valid"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Bot       bool      `json:"bot,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Cache хранит результаты проверок с ограниченным сроком жизни.
type Cache struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open открывает (или создаёт) файл кэша. ttl <= 0 — записи не устаревают.
func Open(path string, ttl time.Duration) (*Cache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("checkcache: db path is empty")
	}
	if err := storage.EnsureDir(path); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "checkcache: open db")
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "checkcache: create bucket")
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Close закрывает файл базы данных.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get возвращает запись по идентификатору ключа. Устаревшая или повреждённая запись считается отсутствующей.
func (c *Cache) Get(keyID string) (Entry, bool, error) {
	var data []byte
	if err := c.db.View(func(tx *bbolt.Tx) error {
		if value := tx.Bucket(resultsBucket).Get([]byte(keyID)); len(value) > 0 {
			data = append(data, value...)
		}
		return nil
	}); err != nil {
		return Entry{}, false, errors.Wrap(err, "checkcache: get")
	}
	if len(data) == 0 {
		return Entry{}, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warnf("checkcache: drop corrupted entry %s: %v", keyID, err)
		return Entry{}, false, nil
	}
	if c.ttl > 0 && c.now().Sub(entry.CheckedAt) > c.ttl {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put сохраняет запись. Пустой CheckedAt заполняется текущим временем.
func (c *Cache) Put(keyID string, entry Entry) error {
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = c.now()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "checkcache: marshal")
	}
	if err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(resultsBucket).Put([]byte(keyID), payload)
	}); err != nil {
		return errors.Wrap(err, "checkcache: put")
	}
	return nil
}

// Prune удаляет устаревшие записи и возвращает их количество.
func (c *Cache) Prune() (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(resultsBucket)
		var stale [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var entry Entry
			if json.Unmarshal(v, &entry) != nil || c.now().Sub(entry.CheckedAt) > c.ttl {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "checkcache: prune")
	}
	return removed, nil
}

// Checker оборачивает next: свежий результат берётся из кэша, новый — сохраняется.
type Checker struct {
	cache *Cache
	next  sessions.Checker
}

var _ sessions.Checker = (*Checker)(nil)

// Wrap создаёт кэширующий Checker.
func Wrap(cache *Cache, next sessions.Checker) *Checker {
	return &Checker{cache: cache, next: next}
}

// WhoAmI реализует sessions.Checker.
func (c *Checker) WhoAmI(ctx context.Context, id sessions.Identity, profile sessions.Profile) (sessions.Account, error) {
	keyID := id.KeyID()
	entry, ok, err := c.cache.Get(keyID)
	if err != nil {
		logger.Warnf("checkcache: %v", err)
	}
	if ok {
		logger.Debugf("checkcache: hit %s (valid=%t)", keyID, entry.Valid)
		if !entry.Valid {
			return sessions.Account{}, errors.Wrap(sessionerr.ErrUnauthorized, "cached")
		}
		return sessions.Account{
			ID:        entry.UserID,
			Username:  entry.Username,
			FirstName: entry.FirstName,
			LastName:  entry.LastName,
			Bot:       entry.Bot,
		}, nil
	}

	acc, err := c.next.WhoAmI(ctx, id, profile)
	switch {
	case err == nil:
		c.store(keyID, Entry{
			Valid:     true,
			UserID:    acc.ID,
			Username:  acc.Username,
			FirstName: acc.FirstName,
			LastName:  acc.LastName,
			Bot:       acc.Bot,
		})
	case errors.Is(err, sessionerr.ErrUnauthorized):
		c.store(keyID, Entry{Valid: false})
	}
	return acc, err
}

func (c *Checker) store(keyID string, entry Entry) {
	if err := c.cache.Put(keyID, entry); err != nil {
		logger.Warnf("checkcache: %v", err)
	}
}
