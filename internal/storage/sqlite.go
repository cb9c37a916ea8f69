package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"telegram-ai-diary/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

// DB is the SQLite Store.
type DB struct{ *sql.DB }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer at a time; Update relies on it
	db.SetMaxOpenConns(1)
	if err = migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err = db.Exec(string(b)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ---------- records ---------------------------------------------------------

func (d *DB) Load(ctx context.Context) (map[int64]*models.ChatRecord, error) {
	ids, err := chatIDs(ctx, d.DB)
	if err != nil {
		return nil, err
	}
	data := make(map[int64]*models.ChatRecord, len(ids))
	for _, id := range ids {
		rec, err := getRecord(ctx, d.DB, id)
		if err != nil {
			return nil, err
		}
		data[id] = rec
	}
	return data, nil
}

// Save replaces the stored records of every chat in data. Chats missing from
// data are left alone, records are never deleted.
func (d *DB) Save(ctx context.Context, data map[int64]*models.ChatRecord) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for id, rec := range data {
		if _, err := tx.ExecContext(ctx, `DELETE FROM diary_entries WHERE chat_id = ?`, id); err != nil {
			return fmt.Errorf("clear diary %d: %w", id, err)
		}
		if err := putRecord(ctx, tx, id, rec, 0); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns nil, nil for an unknown chat.
func (d *DB) Get(ctx context.Context, chatID int64) (*models.ChatRecord, error) {
	return getRecord(ctx, d.DB, chatID)
}

func (d *DB) Update(ctx context.Context, chatID int64, fn func(*models.ChatRecord) error) (*models.ChatRecord, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec, err := getRecord(ctx, tx, chatID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = models.NewChatRecord()
	}
	stored := len(rec.Diary)

	if err := fn(rec); err != nil {
		return nil, err
	}
	if len(rec.Diary) < stored {
		return nil, fmt.Errorf("chat %d: diary is append-only (%d -> %d entries)", chatID, stored, len(rec.Diary))
	}
	if err := putRecord(ctx, tx, chatID, rec, stored); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *DB) ChatIDs(ctx context.Context) ([]int64, error) {
	return chatIDs(ctx, d.DB)
}

func chatIDs(ctx context.Context, q querier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT chat_id FROM chats ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func getRecord(ctx context.Context, q querier, chatID int64) (*models.ChatRecord, error) {
	var mode string
	err := q.QueryRowContext(ctx, `SELECT mode FROM chats WHERE chat_id = ?`, chatID).Scan(&mode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", chatID, err)
	}

	rec := models.NewChatRecord()
	if rec.Mode, err = models.ParseMode(mode); err != nil {
		return nil, fmt.Errorf("chat %d: %w", chatID, err)
	}

	rows, err := q.QueryContext(ctx, `SELECT kind, text FROM diary_entries WHERE chat_id = ? ORDER BY id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("get diary %d: %w", chatID, err)
	}
	for rows.Next() {
		var kind, text string
		if err := rows.Scan(&kind, &text); err != nil {
			rows.Close()
			return nil, err
		}
		rec.AppendDiary(models.DiaryKind(kind), text)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `SELECT at, description FROM tasks WHERE chat_id = ? ORDER BY position`, chatID)
	if err != nil {
		return nil, fmt.Errorf("get tasks %d: %w", chatID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var at, desc string
		if err := rows.Scan(&at, &desc); err != nil {
			return nil, err
		}
		clock, err := models.ParseClock(at)
		if err != nil {
			return nil, fmt.Errorf("chat %d task: %w", chatID, err)
		}
		rec.Tasks = append(rec.Tasks, models.Task{At: clock, Description: desc})
	}
	return rec, rows.Err()
}

// putRecord upserts the chat row, appends diary entries from index
// diaryFrom on and replaces the task list.
func putRecord(ctx context.Context, q querier, chatID int64, rec *models.ChatRecord, diaryFrom int) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO chats (chat_id, mode, created_at) VALUES (?,?,?)
        ON CONFLICT(chat_id) DO UPDATE SET mode=excluded.mode
    `, chatID, string(rec.Mode), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put chat %d: %w", chatID, err)
	}

	for _, e := range rec.Diary[diaryFrom:] {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO diary_entries (chat_id, kind, text) VALUES (?,?,?)`,
			chatID, string(e.Kind), e.Text,
		); err != nil {
			return fmt.Errorf("append diary %d: %w", chatID, err)
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear tasks %d: %w", chatID, err)
	}
	for i, t := range rec.Tasks {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO tasks (chat_id, position, at, description) VALUES (?,?,?,?)`,
			chatID, i, t.At.String(), t.Description,
		); err != nil {
			return fmt.Errorf("put task %d/%d: %w", chatID, i, err)
		}
	}
	return nil
}
