// Package chathistory stores conversation messages and keeps long sessions
// inside a context window by trimming or summarizing.
package chathistory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// Store persists session messages.
type Store interface {
	// Append adds one message to its session.
	Append(ctx context.Context, msg types.Message) error
	// Messages returns a session's messages in insertion order.
	Messages(ctx context.Context, sessionID string) ([]types.Message, error)
	// Replace overwrites a session's messages.
	Replace(ctx context.Context, sessionID string, messages []types.Message) error
	// Clear deletes a session.
	Clear(ctx context.Context, sessionID string) error
	// Sessions lists known session IDs.
	Sessions(ctx context.Context) ([]string, error)
}

// MemoryStore keeps sessions in memory. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]types.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]types.Message)}
}

func (s *MemoryStore) Append(_ context.Context, msg types.Message) error {
	if msg.SessionID == "" {
		return fmt.Errorf("message has no session ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[msg.SessionID] = append(s.sessions[msg.SessionID], msg)
	return nil
}

func (s *MemoryStore) Messages(_ context.Context, sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Replace(_ context.Context, sessionID string, messages []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]types.Message, len(messages))
	copy(msgs, messages)
	s.sessions[sessionID] = msgs
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// JSONStore persists each session as a JSON file under a directory.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONStore creates the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *JSONStore) Append(ctx context.Context, msg types.Message) error {
	if msg.SessionID == "" {
		return fmt.Errorf("message has no session ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.read(msg.SessionID)
	if err != nil {
		return err
	}
	return s.write(msg.SessionID, append(msgs, msg))
}

func (s *JSONStore) Messages(_ context.Context, sessionID string) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(sessionID)
}

func (s *JSONStore) Replace(_ context.Context, sessionID string, messages []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(sessionID, messages)
}

func (s *JSONStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.sessionPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}
	return nil
}

func (s *JSONStore) Sessions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *JSONStore) read(sessionID string) ([]types.Message, error) {
	data, err := os.ReadFile(s.sessionPath(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	var msgs []types.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return msgs, nil
}

func (s *JSONStore) write(sessionID string, messages []types.Message) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sessionID, err)
	}
	if err := os.WriteFile(s.sessionPath(sessionID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write session %s: %w", sessionID, err)
	}
	return nil
}
