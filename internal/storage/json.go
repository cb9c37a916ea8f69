package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"telegram-ai-diary/internal/models"
)

// JSONStore keeps the whole mapping in one indented JSON file keyed by chat id.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: filepath.Clean(path)}
}

func (s *JSONStore) Load(ctx context.Context) (map[int64]*models.ChatRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *JSONStore) Save(ctx context.Context, data map[int64]*models.ChatRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(data)
}

// Get returns nil, nil for an unknown chat.
func (s *JSONStore) Get(ctx context.Context, chatID int64) (*models.ChatRecord, error) {
	data, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return data[chatID], nil
}

func (s *JSONStore) Update(ctx context.Context, chatID int64, fn func(*models.ChatRecord) error) (*models.ChatRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	rec := data[chatID]
	if rec == nil {
		rec = models.NewChatRecord()
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	data[chatID] = rec
	if err := s.saveLocked(data); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *JSONStore) ChatIDs(ctx context.Context) ([]int64, error) {
	data, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) loadLocked() (map[int64]*models.ChatRecord, error) {
	data := make(map[int64]*models.ChatRecord)
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	for id, rec := range data {
		if rec == nil {
			data[id] = models.NewChatRecord()
		}
	}
	return data, nil
}

// saveLocked writes to a temp file next to the target and renames it over,
// so readers never see a half-written file.
func (s *JSONStore) saveLocked(data map[int64]*models.ChatRecord) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", s.path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(b); err != nil {
		return fmt.Errorf("write temp for %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", s.path, err)
	}
	return nil
}
