package storage

// Работа с однофайловыми базами SQLite, в которых библиотеки Telegram-клиентов
// хранят сессии. Используется чистый Go-драйвер modernc.org/sqlite (без cgo).
// Здесь только общая механика: открыть файл, снять фактическую схему, сравнить её
// с ожидаемой и атомарно собрать новый файл по SQL-скрипту.

import (
	"context"
	"database/sql"
	"os"
	"slices"

	"telegram-session-converter/internal/infra/logger"

	"github.com/go-faster/errors"

	_ "modernc.org/sqlite" // регистрирует драйвер "sqlite"
)

const sqliteDriver = "sqlite"

// Schema — ожидаемый набор таблиц и их колонок. Порядок значения не имеет.
type Schema map[string][]string

// OpenSQLite открывает (или создаёт) базу по пути path. Соединение одно:
// файл сессии принадлежит одному процессу и одной операции.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return db, nil
}

// OpenExistingSQLite открывает только уже существующий обычный файл.
// Драйвер SQLite молча создаёт отсутствующую базу, поэтому проверка наличия
// выполняется заранее: проверка схемы не должна оставлять пустых файлов.
func OpenExistingSQLite(ctx context.Context, path string) (*sql.DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat session file")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Errorf("%s is not a regular file", path)
	}
	return OpenSQLite(ctx, path)
}

// ReadSchema возвращает фактические таблицы базы и множества их колонок.
// Индексы и триггеры в результат не попадают.
func ReadSchema(ctx context.Context, db *sql.DB) (map[string]map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, errors.Wrap(err, "scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Close(); err != nil {
		return nil, errors.Wrap(err, "close tables cursor")
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list tables")
	}

	result := make(map[string]map[string]struct{}, len(tables))
	for _, table := range tables {
		cols, err := tableColumns(ctx, db, table)
		if err != nil {
			return nil, err
		}
		result[table] = cols
	}
	return result, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, errors.Wrapf(err, "table_info %q", table)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrapf(err, "scan column of %q", table)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

// Match сравнивает фактическую схему с ожидаемой как множества: набор таблиц
// должен совпасть точно, и для каждой таблицы — набор колонок. Колонки из
// optional[table] исключаются из фактического набора перед сравнением, то есть
// их наличие и отсутствие одинаково допустимы.
func (s Schema) Match(actual map[string]map[string]struct{}, optional map[string][]string) bool {
	if len(actual) != len(s) {
		return false
	}
	for table, want := range s {
		got, ok := actual[table]
		if !ok {
			return false
		}
		got = without(got, optional[table])
		if len(got) != len(want) {
			return false
		}
		for _, col := range want {
			if _, ok := got[col]; !ok {
				return false
			}
		}
	}
	return true
}

func without(set map[string]struct{}, drop []string) map[string]struct{} {
	if len(drop) == 0 {
		return set
	}
	out := make(map[string]struct{}, len(set))
	for k := range set {
		if !slices.Contains(drop, k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// MatchFile открывает path и сверяет его схему с ожидаемой. Любая ошибка
// открытия или чтения (нет файла, не база SQLite, повреждённый заголовок)
// трактуется как несовпадение: функция закрыта по умолчанию.
func (s Schema) MatchFile(ctx context.Context, path string, optional map[string][]string) bool {
	db, err := OpenExistingSQLite(ctx, path)
	if err != nil {
		logger.Debugf("schema check %s: %v", path, err)
		return false
	}
	defer func() { _ = db.Close() }()

	actual, err := ReadSchema(ctx, db)
	if err != nil {
		logger.Debugf("schema check %s: %v", path, err)
		return false
	}
	return s.Match(actual, optional)
}

// WriteSQLite атомарно собирает новую базу по пути path: выполняет DDL-скрипт
// script, затем fill в одной транзакции. Предыдущее содержимое path заменяется
// целиком, независимо от его схемы.
func WriteSQLite(ctx context.Context, path, script string, fill func(ctx context.Context, tx *sql.Tx) error) error {
	return AtomicReplace(path, func(tmpPath string) error {
		db, err := OpenSQLite(ctx, tmpPath)
		if err != nil {
			return err
		}
		if err := buildSQLite(ctx, db, script, fill); err != nil {
			_ = db.Close()
			return err
		}
		if err := db.Close(); err != nil {
			return errors.Wrap(err, "close sqlite")
		}
		return nil
	})
}

func buildSQLite(ctx context.Context, db *sql.DB, script string, fill func(ctx context.Context, tx *sql.Tx) error) error {
	if _, err := db.ExecContext(ctx, script); err != nil {
		return errors.Wrap(err, "create schema")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fill(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// HasColumn сообщает, есть ли в таблице table колонка column.
func HasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return false, err
	}
	_, ok := cols[column]
	return ok, nil
}
