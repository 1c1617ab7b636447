// Package session holds client-side application state: the persisted access
// token, whether the user is signed in, and the notice feed.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultNoticeTTL = 3 * time.Second

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notice struct {
	ID      int       `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// State is created once at startup and passed to whatever needs it.
type State struct {
	mu        sync.Mutex
	tokenPath string
	token     string
	loggedOut chan struct{}

	notices   []Notice
	nextID    int
	noticeTTL time.Duration
	now       func() time.Time
}

// Open loads the token persisted at tokenPath, if any. An empty path keeps
// the token in memory only.
func Open(tokenPath string) (*State, error) {
	s := &State{
		tokenPath: tokenPath,
		loggedOut: make(chan struct{}, 1),
		noticeTTL: DefaultNoticeTTL,
		now:       time.Now,
	}
	if tokenPath == "" {
		return s, nil
	}

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	s.token = strings.TrimSpace(string(data))
	return s, nil
}

func (s *State) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *State) Authenticated() bool {
	return s.Token() != ""
}

// SetToken signs the user in and persists the token with owner-only
// permissions.
func (s *State) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokenPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
		if err := os.WriteFile(s.tokenPath, []byte(token), 0o600); err != nil {
			return fmt.Errorf("write token: %w", err)
		}
	}
	s.token = token

	// a signal left from an earlier session must not end the new one
	select {
	case <-s.loggedOut:
	default:
	}
	return nil
}

// Logout clears the token and resets the notice feed.
func (s *State) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.clearLocked()
	s.notices = nil
	s.nextID = 0
	return err
}

// ForceLogout is used when the server rejects the token. It clears the token,
// leaves a notice explaining why, and signals LoggedOut.
func (s *State) ForceLogout(reason string) {
	s.mu.Lock()
	wasAuthenticated := s.token != ""
	if err := s.clearLocked(); err != nil {
		log.WithError(err).Warn("failed to remove token file")
	}
	s.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	log.WithField("reason", reason).Info("session ended by server")
	s.Notify(LevelError, "Session expired, please log in again")

	select {
	case s.loggedOut <- struct{}{}:
	default:
	}
}

func (s *State) clearLocked() error {
	s.token = ""
	if s.tokenPath == "" {
		return nil
	}
	if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// LoggedOut receives once for each forced logout that has not been consumed.
func (s *State) LoggedOut() <-chan struct{} {
	return s.loggedOut
}

func (s *State) Notify(level Level, message string) Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := Notice{ID: s.nextID, Level: level, Message: message, At: s.now()}
	s.nextID++
	s.notices = append(s.notices, n)
	return n
}

// Notices returns the notices that have not expired or been dismissed.
func (s *State) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.noticeTTL)
	live := s.notices[:0]
	for _, n := range s.notices {
		if n.At.After(cutoff) {
			live = append(live, n)
		}
	}
	s.notices = live
	return append([]Notice(nil), live...)
}

func (s *State) Dismiss(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notices {
		if n.ID == id {
			s.notices = append(s.notices[:i], s.notices[i+1:]...)
			return
		}
	}
}

// Drain returns every notice, expired or not, and empties the feed.
func (s *State) Drain() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}
