package pyrogram

import (
	"context"
	"database/sql"

	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/infra/storage"

	"github.com/go-faster/errors"
)

// schemaVersion — номер версии хранилища Pyrogram 2.x со столбцом api_id.
const schemaVersion = 3

const schemaScript = `
CREATE TABLE sessions (
    dc_id     INTEGER PRIMARY KEY,
    api_id    INTEGER,
    test_mode INTEGER,
    auth_key  BLOB,
    date      INTEGER NOT NULL,
    user_id   INTEGER,
    is_bot    INTEGER
);

CREATE TABLE peers (
    id             INTEGER PRIMARY KEY,
    access_hash    INTEGER,
    type           INTEGER NOT NULL,
    username       TEXT,
    phone_number   TEXT,
    last_update_on INTEGER NOT NULL DEFAULT (CAST(STRFTIME('%s', 'now') AS INTEGER))
);

CREATE TABLE version (
    number INTEGER PRIMARY KEY
);

CREATE INDEX idx_peers_id ON peers (id);
CREATE INDEX idx_peers_username ON peers (username);
CREATE INDEX idx_peers_phone_number ON peers (phone_number);

CREATE TRIGGER trg_peers_last_update_on
    AFTER UPDATE
    ON peers
BEGIN
    UPDATE peers
    SET last_update_on = CAST(STRFTIME('%s', 'now') AS INTEGER)
    WHERE id = NEW.id;
END;
`

// Schema — набор таблиц и колонок файла сессии Pyrogram без необязательного api_id.
var Schema = storage.Schema{
	"sessions": {"dc_id", "test_mode", "auth_key", "date", "user_id", "is_bot"},
	"peers":    {"id", "access_hash", "type", "username", "phone_number", "last_update_on"},
	"version":  {"number"},
}

// optionalColumns: файлы старых версий Pyrogram не содержат api_id.
var optionalColumns = map[string][]string{"sessions": {"api_id"}}

// Validate сообщает, является ли path файлом сессии Pyrogram (с api_id или без). Любая ошибка — false.
func Validate(ctx context.Context, path string) bool {
	return Schema.MatchFile(ctx, path, optionalColumns)
}

// Load читает единственную строку таблицы sessions. Без колонки api_id
// (или при NULL) APIID остаётся UnknownAPIID.
func Load(ctx context.Context, path string) (Session, error) {
	if !Validate(ctx, path) {
		return Session{}, sessionerr.Validationf("%s is not a pyrogram session file", path)
	}

	db, err := storage.OpenExistingSQLite(ctx, path)
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = db.Close() }()

	hasAPIID, err := storage.HasColumn(ctx, db, "sessions", "api_id")
	if err != nil {
		return Session{}, err
	}
	apiIDExpr := "NULL"
	if hasAPIID {
		apiIDExpr = "api_id"
	}
	query := "SELECT dc_id, " + apiIDExpr + ", test_mode, auth_key, user_id, is_bot FROM sessions LIMIT 1"

	var (
		dc       int
		apiID    sql.NullInt64
		testMode sql.NullInt64
		key      []byte
		userID   sql.NullInt64
		isBot    sql.NullInt64
	)
	err = db.QueryRowContext(ctx, query).Scan(&dc, &apiID, &testMode, &key, &userID, &isBot)
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
		DC:       dc,
		APIID:    int(apiID.Int64),
		TestMode: testMode.Int64 != 0,
		UserID:   userID.Int64,
		IsBot:    isBot.Int64 != 0,
	}
	copy(s.AuthKey[:], key)
	return s, nil
}

// Save создаёт по пути path новый файл сессии Pyrogram с одной строкой в sessions.
// UnknownAPIID записывается как NULL, неизвестный user_id — как PlaceholderUserID.
func Save(ctx context.Context, s Session, path string) error {
	if err := s.check(); err != nil {
		return err
	}
	return storage.WriteSQLite(ctx, path, schemaScript, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO version VALUES (?)", schemaVersion); err != nil {
			return errors.Wrap(err, "insert version")
		}
		var apiID sql.NullInt64
		if s.APIID != UnknownAPIID {
			apiID = sql.NullInt64{Int64: int64(s.APIID), Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO sessions (dc_id, api_id, test_mode, auth_key, date, user_id, is_bot) VALUES (?, ?, ?, ?, ?, ?, ?)",
			s.DC, apiID, s.TestMode, s.AuthKey[:], 0, s.userIDOrPlaceholder(), s.IsBot)
		if err != nil {
			return errors.Wrap(err, "insert session")
		}
		return nil
	})
}

// FromString — адаптер: session_string → Session.
func FromString(str string) (Session, error) { return Decode(str) }

// FromFile — адаптер: файл *.session → Session.
func FromFile(ctx context.Context, path string) (Session, error) { return Load(ctx, path) }

// ToString — адаптер: Session → session_string.
func (s Session) ToString() (string, error) { return Encode(s) }

// ToFile — адаптер: Session → файл *.session.
func (s Session) ToFile(ctx context.Context, path string) error { return Save(ctx, s, path) }
