package telethon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/domain/sessions/telethon"
	"telegram-session-converter/internal/infra/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() telethon.Session {
	return telethon.Session{DC: 2, ServerAddress: "149.154.167.51", Port: 443, AuthKey: filledKey(0x5A)}
}

func execSQL(t *testing.T, path string, statements ...string) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "account.session")

	want := sampleSession()
	want.TakeoutID = 42
	require.NoError(t, telethon.Save(ctx, want, path))
	require.True(t, telethon.Validate(ctx, path))

	got, err := telethon.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(storage.DefaultFilePerm), info.Mode().Perm())
}

func TestSaveWritesVersionRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "account.session")
	require.NoError(t, telethon.Save(ctx, sampleSession(), path))

	db, err := storage.OpenExistingSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT version FROM version").Scan(&version))
	assert.Equal(t, 7, version)
}

func TestSaveReplacesIncompatibleFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "account.session")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0o600))

	require.NoError(t, telethon.Save(ctx, sampleSession(), path))
	got, err := telethon.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, sampleSession(), got)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		name  string
		setup func(t *testing.T, path string)
	}{
		{
			name:  "missingFile",
			setup: func(*testing.T, string) {},
		},
		{
			name: "emptyFile",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, nil, 0o600))
			},
		},
		{
			name: "notDatabase",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("plain text, not a database file at all"), 0o600))
			},
		},
		{
			name: "extraTable",
			setup: func(t *testing.T, path string) {
				require.NoError(t, telethon.Save(ctx, sampleSession(), path))
				execSQL(t, path, "CREATE TABLE extra (id integer)")
			},
		},
		{
			name: "missingColumn",
			setup: func(t *testing.T, path string) {
				execSQL(t, path,
					"CREATE TABLE version (version integer primary key)",
					"CREATE TABLE sessions (dc_id integer primary key, server_address text, port integer, auth_key blob)",
					"CREATE TABLE entities (id integer primary key, hash integer not null, username text, phone integer, name text, date integer)",
					"CREATE TABLE sent_files (md5_digest blob, file_size integer, type integer, id integer, hash integer)",
					"CREATE TABLE update_state (id integer primary key, pts integer, qts integer, date integer, seq integer)",
				)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "account.session")
			tc.setup(t, path)

			assert.False(t, telethon.Validate(ctx, path))
			_, err := telethon.Load(ctx, path)
			require.ErrorIs(t, err, sessionerr.ErrValidation)
		})
	}
}

func TestValidateDoesNotCreateFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "absent.session")

	require.False(t, telethon.Validate(context.Background(), path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestLoadRejectsEmptySessionsTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "account.session")
	require.NoError(t, telethon.Save(ctx, sampleSession(), path))
	execSQL(t, path, "DELETE FROM sessions")

	require.True(t, telethon.Validate(ctx, path))
	_, err := telethon.Load(ctx, path)
	require.ErrorIs(t, err, sessionerr.ErrValidation)
}
