package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_TokenPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanban", "token")

	s, err := Open(path)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())

	require.NoError(t, s.SetToken("abc.def.ghi"))
	assert.True(t, s.Authenticated())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", reopened.Token())

	require.NoError(t, reopened.Logout())
	assert.False(t, reopened.Authenticated())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, s.SetToken("  "))
}

func TestState_ForceLogoutSignals(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, err)
	require.NoError(t, s.SetToken("tok"))

	s.ForceLogout("401 from /columns")

	assert.False(t, s.Authenticated())
	select {
	case <-s.LoggedOut():
	default:
		t.Fatal("expected a logout signal")
	}

	notices := s.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, LevelError, notices[0].Level)

	s.ForceLogout("again")
	select {
	case <-s.LoggedOut():
		t.Fatal("no signal expected when already logged out")
	default:
	}
}

func TestState_SetTokenClearsStaleLogoutSignal(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.SetToken("first"))
	s.ForceLogout("expired")

	require.NoError(t, s.SetToken("second"))
	select {
	case <-s.LoggedOut():
		t.Fatal("signal from the previous session leaked into the new one")
	default:
	}
	assert.True(t, s.Authenticated())
}

func TestState_NoticesExpireAndDismiss(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	first := s.Notify(LevelError, "Failed to move task")
	second := s.Notify(LevelSuccess, "Saved")
	assert.Equal(t, first.ID+1, second.ID)
	assert.Len(t, s.Notices(), 2)

	s.Dismiss(first.ID)
	assert.Equal(t, []Notice{second}, s.Notices())

	now = now.Add(DefaultNoticeTTL)
	assert.Empty(t, s.Notices())
}

func TestState_LogoutResetsNoticeCounter(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.SetToken("tok"))

	s.Notify(LevelError, "one")
	s.Notify(LevelError, "two")
	require.NoError(t, s.Logout())

	assert.Empty(t, s.Drain())
	assert.Equal(t, 0, s.Notify(LevelError, "fresh").ID)
}
