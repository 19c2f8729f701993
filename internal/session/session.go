// Package session persists the API credential between runs.
//
// The session lives in ~/.tada/session.json and has the same shape the API
// returns on login: {"jwt": "...", "user": {"id": 1, ...}}. TADA_TOKEN
// (with an optional TADA_USER_ID) overrides the file.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store/jsonstore"
)

const (
	fileName = "session.json"

	EnvToken  = "TADA_TOKEN"
	EnvUserID = "TADA_USER_ID"

	SourceEnv  = "env"
	SourceFile = "file"
)

// Record is what gets written to disk.
type Record struct {
	model.Session
	Source  string    `json:"-"` // SourceEnv | SourceFile
	SavedAt time.Time `json:"saved_at"`
}

// Store reads and writes the session file under dir.
type Store struct {
	dir string
}

// DefaultDir is ~/.tada.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tada"), nil
}

// NewStore returns a store rooted at dir, or at DefaultDir when dir is empty.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &Store{dir: dir}, nil
}

// Path of the session file.
func (s *Store) Path() string { return filepath.Join(s.dir, fileName) }

// Load returns the active session, or nil (and no error) when not logged in.
func (s *Store) Load() (*Record, error) {
	// 1) env override
	if tok := stripBearer(strings.TrimSpace(os.Getenv(EnvToken))); tok != "" {
		rec := &Record{Session: model.Session{JWT: tok}, Source: SourceEnv}
		if raw := strings.TrimSpace(os.Getenv(EnvUserID)); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: not a number: %q", EnvUserID, raw)
			}
			rec.User.ID = id
		} else if c, err := ParseClaims(tok); err == nil {
			rec.User.ID = c.UserID
		}
		return rec, nil
	}

	// 2) file
	var rec Record
	found, err := jsonstore.Load(s.Path(), &rec)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !found {
		return nil, nil // not logged in
	}
	rec.JWT = stripBearer(rec.JWT)
	rec.Source = SourceFile
	return &rec, nil
}

// Save persists sess with owner-only permissions.
func (s *Store) Save(sess model.Session) error {
	sess.JWT = stripBearer(strings.TrimSpace(sess.JWT))
	if sess.JWT == "" {
		return errors.New("empty token")
	}
	rec := Record{Session: sess, Source: SourceFile, SavedAt: time.Now().UTC()}
	if err := jsonstore.Save(s.Path(), rec, 0o600); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session file; it is a no-op when none exists.
func (s *Store) Delete() error {
	return jsonstore.Remove(s.Path())
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
