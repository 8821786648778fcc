package telethon

import (
	"context"
	"database/sql"

	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/infra/storage"

	"github.com/go-faster/errors"
)

// schemaVersion — версия схемы, которую ожидает SQLiteSession текущего Telethon.
const schemaVersion = 7

const schemaScript = `
CREATE TABLE version (version integer primary key);

CREATE TABLE sessions (
    dc_id integer primary key,
    server_address text,
    port integer,
    auth_key blob,
    takeout_id integer
);

CREATE TABLE entities (
    id integer primary key,
    hash integer not null,
    username text,
    phone integer,
    name text,
    date integer
);

CREATE TABLE sent_files (
    md5_digest blob,
    file_size integer,
    type integer,
    id integer,
    hash integer,
    primary key(md5_digest, file_size, type)
);

CREATE TABLE update_state (
    id integer primary key,
    pts integer,
    qts integer,
    date integer,
    seq integer
);
`

// Schema — точный набор таблиц и колонок файла сессии Telethon.
var Schema = storage.Schema{
	"sessions":     {"dc_id", "server_address", "port", "auth_key", "takeout_id"},
	"entities":     {"id", "hash", "username", "phone", "name", "date"},
	"sent_files":   {"md5_digest", "file_size", "type", "id", "hash"},
	"update_state": {"id", "pts", "qts", "date", "seq"},
	"version":      {"version"},
}

const loadQuery = "SELECT dc_id, server_address, port, auth_key, takeout_id FROM sessions LIMIT 1"

// Validate сообщает, является ли path файлом сессии Telethon. Любая ошибка — false.
func Validate(ctx context.Context, path string) bool {
	return Schema.MatchFile(ctx, path, nil)
}

// Load читает единственную строку таблицы sessions. Файл предварительно
// проверяется Validate; несовпадение схемы — ErrValidation.
func Load(ctx context.Context, path string) (Session, error) {
	if !Validate(ctx, path) {
		return Session{}, sessionerr.Validationf("%s is not a telethon session file", path)
	}

	db, err := storage.OpenExistingSQLite(ctx, path)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = db.Close() }()

	var (
		dc      int
		addr    sql.NullString
		port    sql.NullInt64
		key     []byte
		takeout sql.NullInt64
	)
	err = db.QueryRowContext(ctx, loadQuery).Scan(&dc, &addr, &port, &key, &takeout)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, sessionerr.Validationf("%s: sessions table is empty", path)
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "read sessions row")
	}
	if len(key) != keySize {
		return Session{}, sessionerr.Validationf("%s: auth key is %d bytes, want %d", path, len(key), keySize)
	}

	s := Session{
		DC:            dc,
		ServerAddress: addr.String,
		Port:          int(port.Int64),
		TakeoutID:     takeout.Int64,
	}
	copy(s.AuthKey[:], key)
	return s, nil
}

// Save создаёт по пути path новый файл сессии Telethon с одной строкой в sessions.
// Существующий файл заменяется целиком. Адрес без явного значения берётся из DefaultResolver.
func Save(ctx context.Context, s Session, path string) error {
	s, err := s.withAddress(DefaultResolver)
	if err != nil {
		return err
	}
	return storage.WriteSQLite(ctx, path, schemaScript, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO version VALUES (?)", schemaVersion); err != nil {
			return errors.Wrap(err, "insert version")
		}
		var takeout sql.NullInt64
		if s.TakeoutID != 0 {
			takeout = sql.NullInt64{Int64: s.TakeoutID, Valid: true}
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO sessions VALUES (?, ?, ?, ?, ?)",
			s.DC, s.ServerAddress, s.Port, s.AuthKey[:], takeout)
		if err != nil {
			return errors.Wrap(err, "insert session")
		}
		return nil
	})
}

// FromString — адаптер: строка StringSession → Session.
func FromString(str string) (Session, error) { return Decode(str) }

// FromFile — адаптер: файл *.session → Session.
func FromFile(ctx context.Context, path string) (Session, error) { return Load(ctx, path) }

// ToString — адаптер: Session → строка StringSession.
func (s Session) ToString() (string, error) { return Encode(s) }

// ToFile — адаптер: Session → файл *.session.
func (s Session) ToFile(ctx context.Context, path string) error { return Save(ctx, s, path) }
