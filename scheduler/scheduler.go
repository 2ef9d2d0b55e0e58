package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/colosseum/queue"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const minLockTTL = 10 * time.Second

// Job is a periodic task. Only one service instance runs a job at a time.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	rdb    redis.Cmdable
	jobs   []Job
	logger *slog.Logger
}

func New(rdb redis.Cmdable, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{rdb: rdb, logger: logger}
}

func (s *Scheduler) Add(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: fn})
}

// Run starts every job, each on its own ticker, and blocks until ctx is done.
// Jobs run once immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return errors.New("scheduler: no jobs registered")
	}
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("scheduler: job %s has non-positive interval %s", job.Name, job.Interval)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(gctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	s.logger.Info("scheduler job started", slog.String("job", job.Name), slog.Duration("interval", job.Interval))

	s.runOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler job stopped", slog.String("job", job.Name))
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

// runOnce executes the job under its lock. It reports whether the job ran.
func (s *Scheduler) runOnce(ctx context.Context, job Job) bool {
	ttl := 2 * job.Interval
	if ttl < minLockTTL {
		ttl = minLockTTL
	}
	lock := queue.NewLock(s.rdb, "scheduler:"+job.Name, ttl)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		s.logger.Error("scheduler lock failed", slog.String("job", job.Name), slog.Any("error", err))
		return false
	}
	if !acquired {
		s.logger.Debug("scheduler job held elsewhere", slog.String("job", job.Name))
		return false
	}
	defer func() {
		// Контекст может быть уже отменён, а замок нужно отпустить.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			s.logger.Warn("scheduler lock release failed", slog.String("job", job.Name), slog.Any("error", err))
		}
	}()

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduler job failed", slog.String("job", job.Name), slog.Any("error", err))
		return true
	}
	s.logger.Debug("scheduler job finished", slog.String("job", job.Name), slog.Duration("took", time.Since(started)))
	return true
}

// Heartbeat writes the current unix time to key so operators can see the
// scheduler is alive.
func Heartbeat(rdb redis.Cmdable, key string, now func() time.Time) func(ctx context.Context) error {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		if err := rdb.Set(ctx, key, strconv.FormatInt(now().Unix(), 10), 0).Err(); err != nil {
			return fmt.Errorf("failed to write heartbeat: %w", err)
		}
		return nil
	}
}
