// Package session persists and restores conversations as one JSON file
// per session (spec §6 "Session files"), grounded on the teacher's
// repository.MessageRepository contract (Save/FindByID/Delete) but
// reshaped around flat-file storage instead of an in-memory or SQL
// store, since spec.md scopes session persistence as an external
// collaborator with a fixed on-disk shape.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/n4ar/sabi/internal/domain/entity"
	apperrors "github.com/n4ar/sabi/pkg/errors"
)

// wireMessage is the on-disk shape of one entity.Message.
type wireMessage struct {
	Role    entity.Role `json:"role"`
	Content string      `json:"content"`
}

// Record is the on-disk shape of one session (spec §6): id, name,
// timestamp, cwd, and messages with System messages excluded.
type Record struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Timestamp time.Time     `json:"timestamp"`
	Cwd       string        `json:"cwd"`
	Messages  []wireMessage `json:"messages"`
}

// Store reads and writes session files under <dataDir>/sessions/<id>.json.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dataDir (the app's data directory;
// spec §6 names `<data-dir>/<app-name>/sessions/`).
func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewID produces a session id in the YYYYMMDD_HHMMSS format spec §6
// requires, from the given timestamp (callers supply "now" — this
// package never calls time.Now() itself so save/load stay deterministic
// under test).
func NewID(at time.Time) string {
	return at.Format("20060102_150405")
}

// Save writes conversation (excluding System messages) to
// <id>.json, naming the session name and stamping timestamp/cwd.
func (s *Store) Save(id, name string, at time.Time, cwd string, conversation []entity.Message) error {
	record := Record{
		ID:        id,
		Name:      name,
		Timestamp: at,
		Cwd:       cwd,
	}
	for _, m := range conversation {
		if m.IsSystem() {
			continue
		}
		record.Messages = append(record.Messages, wireMessage{Role: m.Role(), Content: m.Content()})
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", id, err)
	}
	return os.WriteFile(s.path(id), data, 0644)
}

// Load reads a session file and restores it into a Conversation seeded
// with systemPreamble (spec §6: "restored from the system preamble on
// load" — the persisted file never carries a System message).
func (s *Store) Load(id, systemPreamble string) (*entity.Conversation, *Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("session %q not found", id))
		}
		return nil, nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, nil, fmt.Errorf("parse session %s: %w", id, err)
	}

	conv := entity.NewConversation(systemPreamble)
	for _, m := range record.Messages {
		conv.Append(entity.NewMessage(m.Role, m.Content))
	}
	return conv, &record, nil
}

// Delete removes a session file. Refusing to delete the active session
// is the caller's responsibility (spec §4.6 "/delete <id>... refuse to
// delete the current session").
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError(fmt.Sprintf("session %q not found", id))
		}
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Summary is the listing shape for /sessions (spec §4.6 "enumerate
// persisted sessions... and display a listing").
type Summary struct {
	ID        string
	Name      string
	Timestamp time.Time
}

// List enumerates all session files, sorted by timestamp descending
// (spec §6).
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		summaries = append(summaries, Summary{ID: id, Name: record.Name, Timestamp: record.Timestamp})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
