package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Schedule holds the timing of the two broadcast jobs
type Schedule struct {
	PromoInterval   time.Duration
	PromoFirstRun   time.Duration
	RankingInterval time.Duration
	RankingFirstRun time.Duration
}

// Scheduler runs the promo and ranking broadcasts on timers
type Scheduler struct {
	sched gocron.Scheduler
	b     *Broadcaster
	log   *slog.Logger
}

// NewScheduler registers both jobs. Jobs run with ctx and stop being
// scheduled after Shutdown.
func NewScheduler(ctx context.Context, b *Broadcaster, s Schedule, log *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	sc := &Scheduler{sched: sched, b: b, log: log}

	now := time.Now()
	jobs := []struct {
		name     string
		interval time.Duration
		first    time.Duration
		run      func(context.Context) (*Result, error)
	}{
		{"promo", s.PromoInterval, s.PromoFirstRun, b.Promo},
		{"ranking", s.RankingInterval, s.RankingFirstRun, b.Ranking},
	}

	for _, j := range jobs {
		start := gocron.WithStartImmediately()
		if j.first > 0 {
			start = gocron.WithStartDateTime(now.Add(j.first))
		}

		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(sc.task(ctx, j.name, j.run)),
			gocron.WithName(j.name),
			gocron.WithStartAt(start),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}

	return sc, nil
}

func (sc *Scheduler) task(ctx context.Context, name string, run func(context.Context) (*Result, error)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				sc.log.Error("broadcast panic", "job", name, "panic", r)
			}
		}()

		if _, err := run(ctx); err != nil {
			sc.log.Error("broadcast", "job", name, "error", err)
		}
	}
}

// Start starts the timers
func (sc *Scheduler) Start() {
	sc.sched.Start()
	sc.log.Info("broadcast scheduler started", "jobs", len(sc.sched.Jobs()))
}

// Jobs returns the names of the registered jobs
func (sc *Scheduler) Jobs() []string {
	var names []string
	for _, j := range sc.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

// Shutdown stops the scheduler and waits for running jobs
func (sc *Scheduler) Shutdown() error {
	return sc.sched.Shutdown()
}
