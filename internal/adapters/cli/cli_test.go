package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/infra/pr"
	"telegram-session-converter/internal/infra/telegram/client"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	mu      sync.Mutex
	results map[string]error
	account sessions.Account
}

func (c *scriptedChecker) WhoAmI(_ context.Context, id sessions.Identity, _ sessions.Profile) (sessions.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.results[id.KeyID()]; err != nil {
		return sessions.Account{}, err
	}
	return c.account, nil
}

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	pr.SetOutput(&out, &errOut)
	t.Cleanup(func() { pr.SetOutput(nil, nil) })
	return &out, &errOut
}

func testManager(t *testing.T, fill byte, userID int64) *sessions.Manager {
	t.Helper()
	id := sessions.Identity{DC: 2, UserID: userID}
	for i := range id.AuthKey {
		id.AuthKey[i] = fill + byte(i)
	}
	m, err := sessions.NewManager(id, sessions.Profile{})
	require.NoError(t, err)
	return m
}

func newCommands(checker sessions.Checker) *Commands {
	opts := Options{Client: client.Config{Profile: sessions.Profile{}}, Workers: 2}
	if checker != nil {
		opts.Checker = checker
	}
	return NewCommands(opts)
}

func TestConvertStringRoundTrip(t *testing.T) {
	out, _ := captureOutput(t)
	ctx := context.Background()
	cmds := newCommands(nil)

	m := testManager(t, 1, 0)
	telethonStr, err := m.ToTelethonString()
	require.NoError(t, err)

	require.NoError(t, cmds.Execute(ctx, []string{"convert", telethonStr}))
	pyroStr := strings.TrimSpace(out.String())
	converted, err := sessions.FromPyrogramString(pyroStr, sessions.Profile{})
	require.NoError(t, err)
	assert.Equal(t, m.Identity().AuthKey, converted.Identity().AuthKey)
	assert.Equal(t, 2, converted.Identity().DC)

	out.Reset()
	require.NoError(t, cmds.Execute(ctx, []string{"convert", "-from", "pyrogram", "-to", "telethon", "-in", pyroStr}))
	assert.Equal(t, telethonStr, strings.TrimSpace(out.String()))
}

func TestConvertFilesAndInspect(t *testing.T) {
	out, _ := captureOutput(t)
	ctx := context.Background()
	cmds := newCommands(nil)
	dir := t.TempDir()

	m := testManager(t, 7, 424242)
	pyroStr, err := m.ToPyrogramString()
	require.NoError(t, err)

	sqlitePath := filepath.Join(dir, "account.session")
	gotdPath := filepath.Join(dir, "nested", "account.json")
	require.NoError(t, cmds.Execute(ctx, []string{"convert", "-to", "telethon", "-out", sqlitePath, pyroStr}))
	require.NoError(t, cmds.Execute(ctx, []string{"convert", "-to", "gotd", "-out", gotdPath, sqlitePath}))
	assert.FileExists(t, gotdPath)

	out.Reset()
	require.NoError(t, cmds.Execute(ctx, []string{"inspect", gotdPath}))
	assert.Contains(t, out.String(), `"gotd"`)
	assert.Contains(t, out.String(), m.AuthKeyID())
	assert.NotContains(t, out.String(), m.AuthKeyHex())

	out.Reset()
	require.NoError(t, cmds.Execute(ctx, []string{"inspect", "-show-key", sqlitePath}))
	assert.Contains(t, out.String(), `"telethon"`)
	assert.Contains(t, out.String(), m.AuthKeyHex())

	err = cmds.Execute(ctx, []string{"convert", "-to", "gotd", pyroStr})
	require.Error(t, err)
}

func TestConvertRejectsGarbage(t *testing.T) {
	captureOutput(t)
	err := newCommands(nil).Execute(context.Background(), []string{"convert", "not-a-session"})
	require.ErrorIs(t, err, sessionerr.ErrDecode)
}

func TestValidateCommand(t *testing.T) {
	out, _ := captureOutput(t)
	ctx := context.Background()

	alive := testManager(t, 1, 0)
	revoked := testManager(t, 2, 0)
	checker := &scriptedChecker{
		results: map[string]error{
			revoked.AuthKeyID(): errors.Wrap(sessionerr.ErrUnauthorized, "AUTH_KEY_UNREGISTERED"),
		},
		account: sessions.Account{ID: 42, Username: "alice", FirstName: "Alice"},
	}
	cmds := newCommands(checker)

	aliveStr, err := alive.ToTelethonString()
	require.NoError(t, err)
	require.NoError(t, cmds.Execute(ctx, []string{"validate", aliveStr}))
	assert.Contains(t, out.String(), "Alice (@alice), id=42")

	revokedStr, err := revoked.ToPyrogramString()
	require.NoError(t, err)
	require.ErrorIs(t, cmds.Execute(ctx, []string{"validate", revokedStr}), ErrInvalidSession)

	require.ErrorIs(t, newCommands(nil).Execute(ctx, []string{"validate", aliveStr}), errNetworkDisabled)
}

func TestCheckDirectory(t *testing.T) {
	out, _ := captureOutput(t)
	ctx := context.Background()
	dir := t.TempDir()

	alive := testManager(t, 1, 0)
	revoked := testManager(t, 2, 0)
	offline := testManager(t, 3, 0)

	require.NoError(t, alive.ToTelethonFile(ctx, filepath.Join(dir, "alive.session")))
	revokedStr, err := revoked.ToPyrogramString()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "revoked.txt"), []byte(revokedStr+"\n"), 0o600))
	require.NoError(t, newCommands(nil).Execute(ctx, []string{
		"convert", "-to", "gotd", "-out", filepath.Join(dir, "offline.json"), mustTelethon(t, offline),
	}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0o600))

	checker := &scriptedChecker{
		results: map[string]error{
			revoked.AuthKeyID(): errors.Wrap(sessionerr.ErrUnauthorized, "SESSION_REVOKED"),
			offline.AuthKeyID(): &sessionerr.ConnectionError{DC: 2, Err: context.DeadlineExceeded},
		},
		account: sessions.Account{ID: 1, Username: "bob"},
	}
	out.Reset()
	require.NoError(t, newCommands(checker).Execute(ctx, []string{"check", "-workers", "3", dir}))

	text := out.String()
	assert.Contains(t, text, "Checked 3 sessions: valid=1 revoked=1 network=1 error=0")
	assert.Contains(t, text, "alive.session")
	assert.NotContains(t, text, "notes.md")

	require.Error(t, newCommands(checker).Execute(ctx, []string{"check"}))
}

func mustTelethon(t *testing.T, m *sessions.Manager) string {
	t.Helper()
	str, err := m.ToTelethonString()
	require.NoError(t, err)
	return str
}

func TestExecuteMisc(t *testing.T) {
	out, _ := captureOutput(t)
	ctx := context.Background()
	cmds := newCommands(nil)

	require.ErrorIs(t, cmds.Execute(ctx, []string{"bogus"}), ErrUnknownCommand)
	require.ErrorIs(t, cmds.Execute(ctx, nil), ErrUnknownCommand)

	require.NoError(t, cmds.Execute(ctx, []string{"version"}))
	assert.Contains(t, out.String(), "sessionconv v")

	require.ErrorIs(t, cmds.Execute(ctx, []string{"login"}), errNetworkDisabled)
}

func TestHandleCommand(t *testing.T) {
	out, _ := captureOutput(t)
	ctx := context.Background()

	stopped := 0
	s := NewService(newCommands(nil), func() { stopped++ })

	assert.False(t, s.handleCommand(ctx, ""))
	assert.False(t, s.handleCommand(ctx, "bogus arg"))
	assert.Contains(t, out.String(), "unknown command: bogus")
	assert.False(t, s.handleCommand(ctx, "help"))
	assert.Contains(t, out.String(), "Available commands:")

	assert.True(t, s.handleCommand(ctx, "exit"))
	assert.Equal(t, 1, stopped)
}

func TestBuildCommandHelpLines(t *testing.T) {
	t.Parallel()
	lines := buildCommandHelpLines([]commandDescriptor{{name: "convert", description: "Convert"}})
	require.Len(t, lines, 2)
	assert.Equal(t, "Available commands:", lines[0])
	assert.Equal(t, "  convert  - Convert", lines[1])
	assert.Equal(t, "a, b", joinCommandNames([]commandDescriptor{{name: "a"}, {name: "b"}}))
}
