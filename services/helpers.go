package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/colosseum/queue"
	"github.com/Dosada05/colosseum/repositories"
)

// Transactor runs fn inside one database transaction. db.TxRunner is the
// production implementation.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

// WorkQueue is the dispatch side of the Redis match queue.
type WorkQueue interface {
	DequeueNext(ctx context.Context, gameID *int) (int, bool, queue.DequeueStats, error)
	EnqueueMany(ctx context.Context, ids ...int) error
	Size(ctx context.Context) (int64, error)
	Regenerate(ctx context.Context) (int, error)
	SetKillSwitch(ctx context.Context, engaged bool) error
	KillSwitchEngaged(ctx context.Context) (bool, error)
}

// EventPublisher pushes tournament events to live watchers.
type EventPublisher interface {
	Publish(tournamentID int, eventType string, payload interface{})
}

func publish(p EventPublisher, tournamentID int, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	p.Publish(tournamentID, eventType, payload)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endOfDay is the last microsecond of t's day, the precision Postgres keeps.
func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Microsecond)
}

func ptr[T any](v T) *T {
	return &v
}
