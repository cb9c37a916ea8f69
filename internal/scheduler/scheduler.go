package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"telegram-ai-diary/internal/models"
)

// Routines are the two things done for every chat once a day.
type Routines interface {
	SendMorning(ctx context.Context)
	SendEvening(ctx context.Context)
}

type Config struct {
	MorningAt models.Clock
	EveningAt models.Clock
	Location  *time.Location
}

const (
	JobMorning = "morning"
	JobEvening = "evening"
)

// New creates the scheduler shared by the daily routines and the task
// reminders. A nil clock means wall time.
func New(cfg Config, clock clockwork.Clock, logger *slog.Logger) (gocron.Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	opts := []gocron.SchedulerOption{gocron.WithLocation(loc)}
	if logger != nil {
		opts = append(opts, gocron.WithLogger(logger.With("component", "gocron")))
	}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	return gocron.NewScheduler(opts...)
}

// Register adds the morning and evening jobs. A routine still running when
// its next run comes due is not started twice.
func Register(s gocron.Scheduler, r Routines, cfg Config, logger *slog.Logger) ([]gocron.Job, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	jobs := []struct {
		name string
		at   models.Clock
		run  func(context.Context)
	}{
		{JobMorning, cfg.MorningAt, r.SendMorning},
		{JobEvening, cfg.EveningAt, r.SendEvening},
	}

	out := make([]gocron.Job, 0, len(jobs))
	for _, j := range jobs {
		job, err := s.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(atTime(j.at))),
			gocron.NewTask(runRoutine, log, j.name, j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("register %s routine: %w", j.name, err)
		}
		log.Info("daily routine registered", "routine", j.name, "at", j.at.String())
		out = append(out, job)
	}
	return out, nil
}

// runRoutine gets the job context from gocron, which is cancelled on
// scheduler shutdown.
func runRoutine(ctx context.Context, log *slog.Logger, name string, run func(context.Context)) {
	start := time.Now()
	log.Info("daily routine started", "routine", name)
	run(ctx)
	if err := ctx.Err(); err != nil {
		log.Warn("daily routine cancelled", "routine", name, "error", err)
		return
	}
	log.Info("daily routine finished", "routine", name, "took", time.Since(start).Round(time.Millisecond))
}

func atTime(c models.Clock) gocron.AtTime {
	return gocron.NewAtTime(uint(c.Hour), uint(c.Minute), 0)
}
