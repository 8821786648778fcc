package sessions_test

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"telegram-session-converter/internal/domain/sessions"
	"telegram-session-converter/internal/domain/sessions/pyrogram"
	"telegram-session-converter/internal/domain/sessions/sessionerr"
	"telegram-session-converter/internal/domain/sessions/telethon"

	"github.com/go-faster/errors"
	"github.com/gotd/td/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledKey(b byte) crypto.Key {
	var k crypto.Key
	for i := range k {
		k[i] = b
	}
	return k
}

type fakeChecker struct {
	account sessions.Account
	err     error
	calls   atomic.Int32
}

func (f *fakeChecker) WhoAmI(context.Context, sessions.Identity, sessions.Profile) (sessions.Account, error) {
	f.calls.Add(1)
	return f.account, f.err
}

func TestPyrogramToTelethonPreservesKey(t *testing.T) {
	t.Parallel()

	src, err := pyrogram.Encode(pyrogram.Session{DC: 4, AuthKey: filledKey(0xAA), UserID: 12345})
	require.NoError(t, err)

	m, err := sessions.FromPyrogramString(src, sessions.Profile{})
	require.NoError(t, err)
	assert.Equal(t, int64(12345), m.Identity().UserID)

	str, err := m.ToTelethonString()
	require.NoError(t, err)

	back, err := telethon.Decode(str)
	require.NoError(t, err)
	assert.Equal(t, 4, back.DC)
	assert.Equal(t, filledKey(0xAA), back.AuthKey)
	assert.NotEmpty(t, back.ServerAddress)
	assert.NotZero(t, back.Port)
}

func TestTelethonToPyrogram(t *testing.T) {
	t.Parallel()

	src, err := telethon.Encode(telethon.Session{DC: 2, ServerAddress: "149.154.167.51", Port: 443, AuthKey: crypto.Key{}})
	require.NoError(t, err)

	m, err := sessions.FromTelethonString(src, sessions.Profile{})
	require.NoError(t, err)

	str, err := m.ToPyrogramString()
	require.NoError(t, err)
	got, err := pyrogram.Decode(str)
	require.NoError(t, err)
	assert.Equal(t, 2, got.DC)
	assert.Equal(t, crypto.Key{}, got.AuthKey)
	assert.False(t, got.TestMode)
	assert.Equal(t, pyrogram.PlaceholderUserID, got.UserID)
}

func TestRoundTripDoesNotFabricateAPIID(t *testing.T) {
	t.Parallel()

	src, err := pyrogram.Encode(pyrogram.Session{DC: 1, AuthKey: filledKey(7), UserID: 42})
	require.NoError(t, err)

	m, err := sessions.FromPyrogramString(src, sessions.Profile{APIID: 2040, APIHash: "hash"})
	require.NoError(t, err)
	a, err := m.ToTelethonString()
	require.NoError(t, err)

	m2, err := sessions.FromTelethonString(a, sessions.Profile{APIID: 2040, APIHash: "hash"})
	require.NoError(t, err)
	b, err := m2.ToPyrogramString()
	require.NoError(t, err)

	got, err := pyrogram.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, pyrogram.UnknownAPIID, got.APIID)
	assert.Equal(t, filledKey(7), got.AuthKey)
}

func TestPlaceholderUserIDIsNotLifted(t *testing.T) {
	t.Parallel()

	src, err := pyrogram.Encode(pyrogram.Session{DC: 3, AuthKey: filledKey(1)})
	require.NoError(t, err)

	m, err := sessions.FromPyrogramString(src, sessions.Profile{})
	require.NoError(t, err)
	assert.Zero(t, m.Identity().UserID)
}

func TestFileConversion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	m, err := sessions.NewManager(sessions.Identity{DC: 5, AuthKey: filledKey(0x42), UserID: 100500, IsBot: true}, sessions.Profile{})
	require.NoError(t, err)

	pyroPath := filepath.Join(dir, "pyro.session")
	require.NoError(t, m.ToPyrogramFile(ctx, pyroPath))
	assert.Equal(t, sessions.FormatPyrogram, sessions.DetectFile(ctx, pyroPath))

	fromPyro, format, err := sessions.FromFile(ctx, pyroPath, sessions.Profile{})
	require.NoError(t, err)
	assert.Equal(t, sessions.FormatPyrogram, format)
	assert.Equal(t, m.Identity(), fromPyro.Identity())

	telePath := filepath.Join(dir, "tele.session")
	require.NoError(t, fromPyro.ToTelethonFile(ctx, telePath))
	assert.Equal(t, sessions.FormatTelethon, sessions.DetectFile(ctx, telePath))

	fromTele, err := sessions.FromTelethonFile(ctx, telePath, sessions.Profile{})
	require.NoError(t, err)
	assert.Equal(t, sessions.Identity{DC: 5, AuthKey: filledKey(0x42)}, fromTele.Identity())

	assert.Equal(t, sessions.FormatUnknown, sessions.DetectFile(ctx, filepath.Join(dir, "missing.session")))
}

func TestDetectString(t *testing.T) {
	t.Parallel()

	tele, err := telethon.Encode(telethon.Session{DC: 1, AuthKey: filledKey(1)})
	require.NoError(t, err)
	pyro, err := pyrogram.Encode(pyrogram.Session{DC: 1, AuthKey: filledKey(1)})
	require.NoError(t, err)

	cases := map[string]struct {
		input string
		want  sessions.Format
	}{
		"telethon":          {input: tele, want: sessions.FormatTelethon},
		"telethonUnpadded":  {input: strings.TrimRight(tele, "="), want: sessions.FormatTelethon},
		"pyrogram":          {input: pyro, want: sessions.FormatPyrogram},
		"pyrogramWithSpace": {input: "  " + pyro + "\n", want: sessions.FormatPyrogram},
		"garbage":           {input: base64.RawURLEncoding.EncodeToString(make([]byte, 100)), want: sessions.FormatUnknown},
		"empty":             {input: "", want: sessions.FormatUnknown},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, sessions.DetectString(tc.input))
		})
	}

	_, _, err = sessions.FromString("garbage", sessions.Profile{})
	require.ErrorIs(t, err, sessionerr.ErrDecode)
}

func TestNewManagerRejectsInvalidIdentity(t *testing.T) {
	t.Parallel()

	_, err := sessions.NewManager(sessions.Identity{DC: 0}, sessions.Profile{})
	require.Error(t, err)
	_, err = sessions.NewManager(sessions.Identity{DC: 300}, sessions.Profile{})
	require.Error(t, err)
	_, err = sessions.NewManager(sessions.Identity{DC: 1, UserID: -1}, sessions.Profile{})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "authorized", want: true},
		{name: "unauthorized", err: sessionerr.ErrUnauthorized},
		{name: "connection", err: &sessionerr.ConnectionError{DC: 2, Err: context.DeadlineExceeded}},
		{name: "other", err: errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := sessions.NewManager(sessions.Identity{DC: 2, AuthKey: filledKey(3)}, sessions.Profile{})
			require.NoError(t, err)

			valid, checked := m.Valid()
			require.False(t, valid)
			require.False(t, checked)

			checker := &fakeChecker{account: sessions.Account{ID: 777}, err: tc.err}
			assert.Equal(t, tc.want, m.Validate(ctx, checker))

			valid, checked = m.Valid()
			assert.Equal(t, tc.want, valid)
			assert.True(t, checked)
		})
	}
}

func TestValidateWithoutChecker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := sessions.NewManager(sessions.Identity{DC: 2, AuthKey: filledKey(3)}, sessions.Profile{})
	require.NoError(t, err)

	assert.False(t, m.Validate(ctx, nil))
	valid, checked := m.Valid()
	assert.False(t, valid)
	assert.True(t, checked)

	_, err = m.Check(ctx, nil)
	var connErr *sessionerr.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 2, connErr.DC)
}

func TestUserIDOrFetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	known, err := sessions.NewManager(sessions.Identity{DC: 2, AuthKey: filledKey(3), UserID: 5}, sessions.Profile{})
	require.NoError(t, err)
	checker := &fakeChecker{account: sessions.Account{ID: 777}}
	id, err := known.UserIDOrFetch(ctx, checker)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Zero(t, checker.calls.Load())

	unknown, err := sessions.NewManager(sessions.Identity{DC: 2, AuthKey: filledKey(3)}, sessions.Profile{})
	require.NoError(t, err)
	id, err = unknown.UserIDOrFetch(ctx, checker)
	require.NoError(t, err)
	assert.Equal(t, int64(777), id)
	id, err = unknown.UserIDOrFetch(ctx, checker)
	require.NoError(t, err)
	assert.Equal(t, int64(777), id)
	assert.Equal(t, int32(1), checker.calls.Load())

	revoked, err := sessions.NewManager(sessions.Identity{DC: 2, AuthKey: filledKey(4)}, sessions.Profile{})
	require.NoError(t, err)
	_, err = revoked.UserIDOrFetch(ctx, &fakeChecker{err: sessionerr.ErrUnauthorized})
	require.ErrorIs(t, err, sessionerr.ErrValidation)
}

func TestAuthKeyHex(t *testing.T) {
	t.Parallel()

	m, err := sessions.NewManager(sessions.Identity{DC: 1, AuthKey: filledKey(0xAB)}, sessions.Profile{})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 256), m.AuthKeyHex())
	assert.Len(t, m.AuthKeyID(), 16)
}
