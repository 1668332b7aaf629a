package chathistory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// messageRecord is the gorm row for one chat message.
type messageRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MessageID string `gorm:"size:64;uniqueIndex"`
	SessionID string `gorm:"size:64;index"`
	Role      string `gorm:"size:32"`
	Content   string
	Metadata  string
	Timestamp time.Time
}

func (messageRecord) TableName() string { return "chat_messages" }

// SQLStore persists sessions in a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and migrates) a SQLite database at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	return newSQLStore(db)
}

// NewPostgresStore connects to PostgreSQL with the given DSN.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newSQLStore(db)
}

// NewSQLStore wraps an already-open gorm connection.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	return newSQLStore(db)
}

func newSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate chat_messages: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func toRecord(msg types.Message) (messageRecord, error) {
	meta := "{}"
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return messageRecord{}, fmt.Errorf("failed to encode metadata: %w", err)
		}
		meta = string(data)
	}
	return messageRecord{
		MessageID: msg.MessageID,
		SessionID: msg.SessionID,
		Role:      msg.Role,
		Content:   msg.Content,
		Metadata:  meta,
		Timestamp: msg.Timestamp,
	}, nil
}

func (r messageRecord) toMessage() types.Message {
	msg := types.Message{
		MessageID: r.MessageID,
		SessionID: r.SessionID,
		Role:      r.Role,
		Content:   r.Content,
		Timestamp: r.Timestamp,
	}
	if r.Metadata != "" && r.Metadata != "{}" {
		_ = json.Unmarshal([]byte(r.Metadata), &msg.Metadata)
	}
	return msg
}

func (s *SQLStore) Append(ctx context.Context, msg types.Message) error {
	if msg.SessionID == "" {
		return fmt.Errorf("message has no session ID")
	}

	record, err := toRecord(msg)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

func (s *SQLStore) Messages(ctx context.Context, sessionID string) ([]types.Message, error) {
	var records []messageRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	msgs := make([]types.Message, len(records))
	for i, r := range records {
		msgs[i] = r.toMessage()
	}
	return msgs, nil
}

func (s *SQLStore) Replace(ctx context.Context, sessionID string, messages []types.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&messageRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
		}
		for _, msg := range messages {
			record, err := toRecord(msg)
			if err != nil {
				return err
			}
			record.SessionID = sessionID
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to store message: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLStore) Clear(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&messageRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLStore) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&messageRecord{}).
		Distinct("session_id").
		Order("session_id asc").
		Pluck("session_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}
