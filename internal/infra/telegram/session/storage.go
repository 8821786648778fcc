// Package session связывает каноническую сессию с нативным форматом gotd:
//   - File — tdsession.Storage в одном JSON-файле с атомарной записью;
//   - FromIdentity/ToIdentity — перевод Identity в tdsession.Data и обратно;
//   - ReadFile/WriteFile — чтение и запись файла сессии gotd через tdsession.Loader.
package session

import (
	"bytes"
	"context"
	"os"
	"sync"

	"telegram-session-converter/internal/infra/logger"
	"telegram-session-converter/internal/infra/storage"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	tdsession "github.com/gotd/td/session"
)

// File хранит сессию gotd в файле Path. Отсутствующий или пустой файл
// означает отсутствие сессии (tdsession.ErrNotFound).
type File struct {
	Path string
	mu   sync.Mutex
}

var _ tdsession.Storage = (*File)(nil)

// LoadSession реализует tdsession.Storage.
func (f *File) LoadSession(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, tdsession.ErrNotFound
	case err != nil:
		return nil, errors.Wrapf(err, "read gotd session %s", f.Path)
	case len(bytes.TrimSpace(data)) == 0:
		return nil, tdsession.ErrNotFound
	}
	return data, nil
}

// StoreSession реализует tdsession.Storage. Запись атомарная, права 0600.
func (f *File) StoreSession(_ context.Context, data []byte) error {
	if len(data) == 0 {
		return errors.New("refusing to store empty gotd session")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := storage.AtomicWriteFile(f.Path, data); err != nil {
		return errors.Wrapf(err, "write gotd session %s", f.Path)
	}
	logger.Debug("gotd session stored", zap.String("path", f.Path), zap.Int("bytes", len(data)))
	return nil
}
