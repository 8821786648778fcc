// Package storage — утилиты безопасной работы с локальными файлами сессий.
// В этом файле реализованы:
//   - EnsureDir — гарантирует наличие директории для целевого пути;
//   - AtomicReplace — сборка файла во временной копии и атомарная подмена целевого;
//   - AtomicWriteFile — атомарная запись байтов поверх AtomicReplace.
//
// Файлы сессий содержат ключ авторизации, поэтому частично записанный файл
// недопустим, а права ограничены владельцем процесса.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"telegram-session-converter/internal/infra/logger"
)

// DefaultFilePerm — права итогового файла сессии.
const DefaultFilePerm = 0o600

// EnsureDir гарантирует наличие каталога для указанного файла.
// Если путь не содержит директорию ("." или пустая строка), ничего не делает.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// AtomicReplace создаёт пустой временный файл рядом с path, передаёт его имя в build,
// затем fsync → chmod(DefaultFilePerm) → rename → fsync(dir).
//
// build может как писать в файл напрямую, так и открыть его как базу SQLite:
// к моменту вызова файл существует и пуст. Если build вернул ошибку, временный файл
// удаляется, а прежнее содержимое path остаётся нетронутым. os.Rename атомарен
// только в пределах одного тома, поэтому temp создаётся в том же каталоге.
func AtomicReplace(path string, build func(tmpPath string) error) error {
	clean := filepath.Clean(path)
	if err := EnsureDir(clean); err != nil {
		return err
	}
	dir := filepath.Dir(clean)

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := build(tmpName); err != nil {
		return err
	}

	if err := syncFile(tmpName); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, DefaultFilePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, clean); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	if dirFile, err := os.Open(dir); err == nil {
		if errSync := dirFile.Sync(); errSync != nil {
			logger.Warnf("AtomicReplace: dir sync error: %v", errSync) // best-effort для Windows/некоторых FS
		}
		_ = dirFile.Close()
	}
	return nil
}

// AtomicWriteFile атомарно записывает байты в файл path.
func AtomicWriteFile(path string, data []byte) error {
	return AtomicReplace(path, func(tmpPath string) error {
		if err := os.WriteFile(tmpPath, data, DefaultFilePerm); err != nil {
			return fmt.Errorf("write temp file: %w", err)
		}
		return nil
	})
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}
