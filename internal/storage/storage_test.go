package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-ai-diary/internal/models"
)

// backends runs fn against a fresh JSON store and a fresh SQLite store.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("json", func(t *testing.T) {
		fn(t, NewJSONStore(filepath.Join(t.TempDir(), "data.json")))
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := New(filepath.Join(t.TempDir(), "bot.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		fn(t, db)
	})
}

func sampleData() map[int64]*models.ChatRecord {
	a := models.NewChatRecord()
	a.Mode = models.ModeSchedule
	a.AppendDiary(models.DiaryPlan, "Finish math homework, go for a run.")
	a.AppendDiary(models.DiaryReflection, "Good day")
	a.Tasks = []models.Task{
		{At: models.MustParseClock("08:00"), Description: "Math"},
		{At: models.MustParseClock("09:30"), Description: "Walk"},
	}
	b := models.NewChatRecord()
	return map[int64]*models.ChatRecord{42: a, -1001: b}
}

func TestStore_LoadEmpty(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		data, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, data)

		rec, err := s.Get(context.Background(), 42)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		want := sampleData()
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		// saving what was loaded changes nothing
		require.NoError(t, s.Save(ctx, got))
		again, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, again)
	})
}

func TestStore_UpdateCreatesFreshRecord(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec, err := s.Update(ctx, 7, func(*models.ChatRecord) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, models.NewChatRecord(), rec)

		stored, err := s.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, models.NewChatRecord(), stored)

		ids, err := s.ChatIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{7}, ids)
	})
}

func TestStore_UpdateMutates(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, sampleData()))

		_, err := s.Update(ctx, 42, func(r *models.ChatRecord) error {
			r.AppendDiary(models.DiaryPlan, "second plan")
			r.Tasks = []models.Task{{At: models.MustParseClock("21:00"), Description: "Sleep"}}
			return r.Apply(models.EventScheduleAccepted)
		})
		require.NoError(t, err)

		rec, err := s.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, models.ModeNone, rec.Mode)
		require.Len(t, rec.Diary, 3)
		assert.Equal(t, "second plan", rec.Diary[2].Text)
		assert.Equal(t, []models.Task{{At: models.MustParseClock("21:00"), Description: "Sleep"}}, rec.Tasks)

		other, err := s.Get(ctx, -1001)
		require.NoError(t, err)
		assert.Equal(t, models.NewChatRecord(), other)
	})
}

func TestStore_UpdateErrorWritesNothing(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		boom := errors.New("boom")

		_, err := s.Update(ctx, 5, func(r *models.ChatRecord) error {
			r.Mode = models.ModePlan
			return boom
		})
		assert.ErrorIs(t, err, boom)

		rec, err := s.Get(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestStore_ConcurrentUpdatesAreNotLost(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const workers = 8
		const perWorker = 5

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(chatID int64) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					_, err := s.Update(ctx, chatID%2, func(r *models.ChatRecord) error {
						r.AppendDiary(models.DiaryReflection, "entry")
						return nil
					})
					assert.NoError(t, err)
				}
			}(int64(w))
		}
		wg.Wait()

		data, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, data, 2)
		assert.Len(t, data[0].Diary, workers/2*perWorker)
		assert.Len(t, data[1].Diary, workers/2*perWorker)
	})
}

func TestJSONStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	s := NewJSONStore(path)
	ctx := context.Background()

	_, err := s.Update(ctx, 42, func(r *models.ChatRecord) error {
		r.AppendDiary(models.DiaryPlan, "Бег")
		return r.Apply(models.EventMorningPrompt)
	})
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"42": {"diary": [{"type": "plan", "text": "Бег"}], "mode": "plan", "tasks": []}}`, string(b))
	assert.Contains(t, string(b), "Бег")
}

func TestJSONStore_ReadsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "123": {"diary": [], "mode": null, "tasks": [["8:00", "Математика"], ["9:5", "Прогулка"]]},
  "456": {"diary": [{"type": "планы", "text": "Бег"}], "mode": "schedule", "tasks": []}
}`), 0o600))
	store := NewJSONStore(path)

	rec, err := store.Get(context.Background(), 123)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.ModeNone, rec.Mode)
	assert.Equal(t, []models.Task{
		{At: models.MustParseClock("08:00"), Description: "Математика"},
		{At: models.MustParseClock("09:05"), Description: "Прогулка"},
	}, rec.Tasks)

	other, err := store.Get(context.Background(), 456)
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, models.ModeSchedule, other.Mode)
	assert.Equal(t, models.DiaryKind("планы"), other.Diary[0].Kind)
}

func TestJSONStore_EmptyAndCorruptFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	data, err := NewJSONStore(empty).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, data)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	_, err = NewJSONStore(corrupt).Load(context.Background())
	assert.Error(t, err)
}

func TestSQLite_DiaryIsAppendOnly(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, err = db.Update(ctx, 1, func(r *models.ChatRecord) error {
		r.AppendDiary(models.DiaryPlan, "a")
		return nil
	})
	require.NoError(t, err)

	_, err = db.Update(ctx, 1, func(r *models.ChatRecord) error {
		r.Diary = r.Diary[:0]
		return nil
	})
	assert.Error(t, err)
}

func TestOpen_PicksBackend(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "data.json"))
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(filepath.Join(dir, "bot.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &DB{}, s)
}
