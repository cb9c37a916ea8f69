package reminders

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"telegram-ai-diary/internal/messages"
	"telegram-ai-diary/internal/models"
)

// DefaultLead is how long before a task its reminder goes out.
const DefaultLead = 10 * time.Minute

// Notifier delivers a reminder text to a chat.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// Reminder is one pending notification.
type Reminder struct {
	ID     uuid.UUID
	ChatID int64
	Task   models.Task
	FireAt time.Time
}

type Options struct {
	Lead     time.Duration
	Location *time.Location
	Text     string // template with {text} for the task description
}

// Reminders schedules one-shot task reminders on a gocron scheduler and
// keeps track of the ones that have not fired yet. Nothing is persisted:
// pending reminders are gone after a restart.
type Reminders struct {
	sched    gocron.Scheduler
	notifier Notifier
	clock    clockwork.Clock
	opts     Options
	log      *slog.Logger

	mu      sync.Mutex
	pending map[int64][]Reminder
}

func New(s gocron.Scheduler, n Notifier, clock clockwork.Clock, opts Options, logger *slog.Logger) *Reminders {
	if opts.Lead <= 0 {
		opts.Lead = DefaultLead
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Text == "" {
		opts.Text = messages.Default().Reminder
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminders{
		sched:    s,
		notifier: n,
		clock:    clock,
		opts:     opts,
		log:      logger.With("component", "reminders"),
		pending:  make(map[int64][]Reminder),
	}
}

// FireTime is today's at minus lead in now's location, or the same clock
// time tomorrow if that moment has already passed.
func FireTime(now time.Time, at models.Clock, lead time.Duration) time.Time {
	c := models.ClockFromMinutes(at.Minutes() - int(lead/time.Minute))
	fire := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if fire.Before(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Schedule registers a reminder for one task.
func (r *Reminders) Schedule(chatID int64, task models.Task) (Reminder, error) {
	now := r.clock.Now().In(r.opts.Location)
	rem := Reminder{
		ID:     uuid.New(),
		ChatID: chatID,
		Task:   task,
		FireAt: FireTime(now, task.At, r.opts.Lead),
	}

	start := gocron.OneTimeJobStartDateTime(rem.FireAt)
	if !rem.FireAt.After(now) {
		start = gocron.OneTimeJobStartImmediately()
	}

	_, err := r.sched.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(r.fire, rem.ID, chatID, task.Description),
		gocron.WithIdentifier(rem.ID),
		gocron.WithName(fmt.Sprintf("reminder %d %s", chatID, task.At)),
		gocron.WithTags(chatTag(chatID)),
		// gocron keeps one-time jobs registered after they run unless told otherwise
		gocron.WithLimitedRuns(1),
	)
	if err != nil {
		return Reminder{}, fmt.Errorf("schedule reminder for chat %d at %s: %w", chatID, task.At, err)
	}

	r.mu.Lock()
	r.pending[chatID] = append(r.pending[chatID], rem)
	r.mu.Unlock()

	r.log.Info("reminder scheduled", "chat_id", chatID, "task", task.Description, "fire_at", rem.FireAt)
	return rem, nil
}

// Replace drops every pending reminder of the chat and schedules one per task.
// A task that fails to schedule does not stop the others.
func (r *Reminders) Replace(chatID int64, tasks []models.Task) ([]Reminder, error) {
	r.Cancel(chatID)

	var errs []error
	out := make([]Reminder, 0, len(tasks))
	for _, t := range tasks {
		rem, err := r.Schedule(chatID, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rem)
	}
	return out, errors.Join(errs...)
}

// Cancel removes the chat's pending reminders and reports how many there were.
func (r *Reminders) Cancel(chatID int64) int {
	r.mu.Lock()
	n := len(r.pending[chatID])
	delete(r.pending, chatID)
	r.mu.Unlock()

	r.sched.RemoveByTags(chatTag(chatID))
	if n > 0 {
		r.log.Info("reminders cancelled", "chat_id", chatID, "count", n)
	}
	return n
}

// Pending lists the chat's reminders that have not fired, earliest first.
func (r *Reminders) Pending(chatID int64) []Reminder {
	r.mu.Lock()
	out := slices.Clone(r.pending[chatID])
	r.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Reminder) int { return a.FireAt.Compare(b.FireAt) })
	return out
}

// Count is the number of pending reminders over all chats.
func (r *Reminders) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.pending {
		n += len(p)
	}
	return n
}

func (r *Reminders) fire(id uuid.UUID, chatID int64, description string) {
	r.mu.Lock()
	p := slices.DeleteFunc(r.pending[chatID], func(rem Reminder) bool { return rem.ID == id })
	if len(p) == 0 {
		delete(r.pending, chatID)
	} else {
		r.pending[chatID] = p
	}
	r.mu.Unlock()

	if err := r.notifier.Notify(chatID, messages.Render(r.opts.Text, description)); err != nil {
		r.log.Error("reminder not delivered", "chat_id", chatID, "task", description, "error", err)
		return
	}
	r.log.Info("reminder sent", "chat_id", chatID, "task", description)
}

func chatTag(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}
