package storage

import (
	"context"
	"path/filepath"
	"strings"

	"telegram-ai-diary/internal/models"
)

// Store keeps one ChatRecord per chat.
//
// Update is the only way handlers change a record: it loads the record
// (creating a fresh one if the chat is new), runs fn and writes the result
// back as one step. If fn returns an error nothing is written.
type Store interface {
	Load(ctx context.Context) (map[int64]*models.ChatRecord, error)
	Save(ctx context.Context, data map[int64]*models.ChatRecord) error
	Get(ctx context.Context, chatID int64) (*models.ChatRecord, error)
	Update(ctx context.Context, chatID int64, fn func(*models.ChatRecord) error) (*models.ChatRecord, error)
	ChatIDs(ctx context.Context) ([]int64, error)
	Close() error
}

// Open picks the backend from the file extension: .db, .sqlite and
// .sqlite3 open SQLite, anything else is a JSON file.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return New(path)
	default:
		return NewJSONStore(path), nil
	}
}
