package reminders

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-ai-diary/internal/models"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
	err  error
}

func (f *fakeNotifier) Notify(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *fakeNotifier) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent[chatID])
}

var morning = time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)

type testEnv struct {
	r     *Reminders
	n     *fakeNotifier
	clock *clockwork.FakeClock
	sched gocron.Scheduler
}

func newTestEnv(t *testing.T, now time.Time) testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(now)
	s, err := gocron.NewScheduler(gocron.WithClock(clock), gocron.WithLocation(time.UTC))
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	n := &fakeNotifier{}
	return testEnv{r: New(s, n, clock, Options{Location: time.UTC}, nil), n: n, clock: clock, sched: s}
}

func newTestReminders(t *testing.T, now time.Time) (*Reminders, *fakeNotifier) {
	e := newTestEnv(t, now)
	return e.r, e.n
}

func task(at, desc string) models.Task {
	return models.Task{At: models.MustParseClock(at), Description: desc}
}

func TestFireTime(t *testing.T) {
	day := func(d, h, m int) time.Time { return time.Date(2026, time.March, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name string
		now  time.Time
		at   string
		want time.Time
	}{
		{"later today", day(2, 6, 0), "08:00", day(2, 7, 50)},
		{"lead already passed", day(2, 7, 55), "08:00", day(3, 7, 50)},
		{"exactly now", day(2, 7, 50), "08:00", day(2, 7, 50)},
		{"task passed", day(2, 12, 0), "09:30", day(3, 9, 20)},
		{"lead wraps before midnight", day(2, 12, 0), "00:05", day(2, 23, 55)},
		{"wrapped lead passed", day(2, 23, 58), "00:05", day(3, 23, 55)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FireTime(tt.now, models.MustParseClock(tt.at), DefaultLead))
		})
	}
}

func TestFireTime_SecondsPastTheMinute(t *testing.T) {
	now := time.Date(2026, time.March, 2, 7, 50, 30, 0, time.UTC)
	got := FireTime(now, models.MustParseClock("08:00"), DefaultLead)
	assert.Equal(t, time.Date(2026, time.March, 3, 7, 50, 0, 0, time.UTC), got)
}

func TestReminders_Replace(t *testing.T) {
	r, _ := newTestReminders(t, morning)

	got, err := r.Replace(42, []models.Task{task("08:00", "Math"), task("09:30", "Walk")})
	require.NoError(t, err)
	require.Len(t, got, 2)

	pending := r.Pending(42)
	require.Len(t, pending, 2)
	assert.Equal(t, time.Date(2026, time.March, 2, 7, 50, 0, 0, time.UTC), pending[0].FireAt)
	assert.Equal(t, "Math", pending[0].Task.Description)
	assert.Equal(t, time.Date(2026, time.March, 2, 9, 20, 0, 0, time.UTC), pending[1].FireAt)
	assert.Equal(t, 2, r.Count())
}

func TestReminders_ReplaceSupersedesOldSchedule(t *testing.T) {
	r, _ := newTestReminders(t, morning)

	_, err := r.Replace(42, []models.Task{task("08:00", "Math"), task("09:30", "Walk")})
	require.NoError(t, err)
	_, err = r.Replace(7, []models.Task{task("10:00", "Other chat")})
	require.NoError(t, err)

	_, err = r.Replace(42, []models.Task{task("18:00", "Read")})
	require.NoError(t, err)

	pending := r.Pending(42)
	require.Len(t, pending, 1)
	assert.Equal(t, "Read", pending[0].Task.Description)
	assert.Len(t, r.Pending(7), 1)
	assert.Equal(t, 2, r.Count())
}

func TestReminders_Cancel(t *testing.T) {
	r, _ := newTestReminders(t, morning)

	_, err := r.Replace(42, []models.Task{task("08:00", "Math")})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Cancel(42))
	assert.Empty(t, r.Pending(42))
	assert.Equal(t, 0, r.Cancel(42))
}

func TestReminders_FireSendsAndForgets(t *testing.T) {
	r, n := newTestReminders(t, morning)

	rem, err := r.Schedule(42, task("08:00", "Math"))
	require.NoError(t, err)
	_, err = r.Schedule(42, task("09:30", "Walk"))
	require.NoError(t, err)

	r.fire(rem.ID, 42, "Math")

	assert.Equal(t, []string{"⏰ Через 10 минут: Math"}, n.sent[42])
	pending := r.Pending(42)
	require.Len(t, pending, 1)
	assert.Equal(t, "Walk", pending[0].Task.Description)
}

func TestReminders_FireDeliveryFailureIsSwallowed(t *testing.T) {
	r, n := newTestReminders(t, morning)
	n.err = errors.New("telegram down")

	rem, err := r.Schedule(42, task("08:00", "Math"))
	require.NoError(t, err)

	assert.NotPanics(t, func() { r.fire(rem.ID, 42, "Math") })
	assert.Empty(t, r.Pending(42))
}

func TestReminders_ScheduleRollsToTomorrow(t *testing.T) {
	r, _ := newTestReminders(t, time.Date(2026, time.March, 2, 21, 0, 0, 0, time.UTC))

	rem, err := r.Schedule(1, task("08:00", "Math"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 3, 7, 50, 0, 0, time.UTC), rem.FireAt)
}

func TestReminders_FiresThroughScheduler(t *testing.T) {
	e := newTestEnv(t, morning)

	_, err := e.r.Replace(42, []models.Task{task("08:00", "Math")})
	require.NoError(t, err)
	e.clock.Advance(2 * time.Hour)

	require.Eventually(t, func() bool { return len(e.n.texts(42)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"⏰ Через 10 минут: Math"}, e.n.texts(42))
	assert.Empty(t, e.r.Pending(42))
}

func TestReminders_FiredJobsLeaveScheduler(t *testing.T) {
	e := newTestEnv(t, morning)

	for day := 1; day <= 5; day++ {
		_, err := e.r.Replace(42, []models.Task{task("08:00", "Math"), task("09:30", "Walk")})
		require.NoError(t, err)
		e.clock.Advance(24 * time.Hour)

		require.Eventually(t, func() bool {
			return e.r.Count() == 0 && len(e.sched.Jobs()) == 0
		}, time.Second, 5*time.Millisecond, "day %d", day)
	}
	assert.Len(t, e.n.texts(42), 10)
}

func TestReminders_CancelRemovesJobsAfterFire(t *testing.T) {
	e := newTestEnv(t, morning)

	_, err := e.r.Replace(42, []models.Task{task("08:00", "Math"), task("18:00", "Read")})
	require.NoError(t, err)
	require.Len(t, e.sched.Jobs(), 2)

	assert.Equal(t, 2, e.r.Cancel(42))
	require.Eventually(t, func() bool { return len(e.sched.Jobs()) == 0 }, time.Second, 5*time.Millisecond)
}
