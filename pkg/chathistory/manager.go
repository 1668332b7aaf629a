package chathistory

import (
	"context"
	"fmt"
	"time"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// SessionStats summarizes one session.
type SessionStats struct {
	SessionID    string
	MessageCount int
	TokenCount   int
	FirstMessage time.Time
	LastMessage  time.Time
}

// Manager ties a store and an optional strategy together. When AutoApply is
// set, the strategy runs after every append and the reduced history is written
// back to the store.
type Manager struct {
	store     Store
	strategy  Strategy
	counter   *TokenCounter
	AutoApply bool
}

// NewManager creates a manager. strategy may be nil.
func NewManager(store Store, strategy Strategy) *Manager {
	return &Manager{
		store:    store,
		strategy: strategy,
		counter:  NewTokenCounter(),
	}
}

// AddMessage appends a message to its session.
func (m *Manager) AddMessage(ctx context.Context, sessionID, role, content string) (types.Message, error) {
	msg := types.NewMessage(sessionID, role, content)
	if err := m.store.Append(ctx, msg); err != nil {
		return types.Message{}, err
	}

	if m.AutoApply && m.strategy != nil {
		reduced, err := m.GetContext(ctx, sessionID)
		if err != nil {
			return types.Message{}, err
		}
		if err := m.store.Replace(ctx, sessionID, reduced); err != nil {
			return types.Message{}, err
		}
	}
	return msg, nil
}

// GetHistory returns the raw stored history.
func (m *Manager) GetHistory(ctx context.Context, sessionID string) ([]types.Message, error) {
	return m.store.Messages(ctx, sessionID)
}

// GetContext returns the history reduced by the strategy, ready for a model
// prompt. Without a strategy it equals GetHistory.
func (m *Manager) GetContext(ctx context.Context, sessionID string) ([]types.Message, error) {
	messages, err := m.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if m.strategy == nil {
		return messages, nil
	}
	return m.strategy.Apply(ctx, messages)
}

// GetRecent returns up to maxMessages of the newest context messages,
// optionally restricted to the given roles.
func (m *Manager) GetRecent(ctx context.Context, sessionID string, maxMessages int, roles ...string) ([]types.Message, error) {
	messages, err := m.GetContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(roles) > 0 {
		wanted := make(map[string]bool, len(roles))
		for _, r := range roles {
			wanted[r] = true
		}
		filtered := messages[:0:0]
		for _, msg := range messages {
			if wanted[msg.Role] {
				filtered = append(filtered, msg)
			}
		}
		messages = filtered
	}

	if maxMessages > 0 && len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	return messages, nil
}

// ClearSession deletes a session.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	return m.store.Clear(ctx, sessionID)
}

// ListSessions lists known session IDs.
func (m *Manager) ListSessions(ctx context.Context) ([]string, error) {
	return m.store.Sessions(ctx)
}

// SaveSession copies a session's current messages into another store.
func (m *Manager) SaveSession(ctx context.Context, sessionID string, target Store) error {
	messages, err := m.store.Messages(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := target.Replace(ctx, sessionID, messages); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// Stats reports counts and the time span of a session.
func (m *Manager) Stats(ctx context.Context, sessionID string) (SessionStats, error) {
	messages, err := m.store.Messages(ctx, sessionID)
	if err != nil {
		return SessionStats{}, err
	}

	stats := SessionStats{
		SessionID:    sessionID,
		MessageCount: len(messages),
		TokenCount:   m.counter.CountMessages(messages),
	}
	if len(messages) > 0 {
		stats.FirstMessage = messages[0].Timestamp
		stats.LastMessage = messages[len(messages)-1].Timestamp
	}
	return stats, nil
}
