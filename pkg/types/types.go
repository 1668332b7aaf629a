// Package types holds the data structures shared between the connector
// packages: extracted documents, chat messages and their roles.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Document is a unit of extracted or retrievable text. Extractors produce
// them, chunkers split them and vector stores index them.
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Embedding []float64              `json:"embedding,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Page      int                    `json:"page,omitempty"`
}

// NewDocument creates a document with a generated ID and an initialized
// metadata map.
func NewDocument(content, source string) Document {
	return Document{
		ID:       uuid.NewString(),
		Content:  content,
		Source:   source,
		Metadata: map[string]interface{}{},
	}
}

// Message roles. These match the values the chat completion APIs expect.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat history entry.
type Message struct {
	MessageID string                 `json:"message_id"`
	SessionID string                 `json:"session_id,omitempty"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewMessage creates a message with a generated ID and the current timestamp.
func NewMessage(sessionID, role, content string) Message {
	return Message{
		MessageID: uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  map[string]interface{}{},
	}
}
