package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/repositories"
	"github.com/Dosada05/colosseum/telemetry"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey                   = "match_queue"
	DefaultKillSwitchKey         = "disable_next_match_api"
	DefaultRandomPickProbability = 0.1

	killSwitchOn  = "1"
	killSwitchOff = "0"

	regenerateChunk = 1000
)

// MatchSource is the part of the record store the queue consults. A pop is
// only handed out after the store confirms the match is still pending.
type MatchSource interface {
	GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error)
	ListPendingIDs(ctx context.Context) ([]int, error)
}

// randomSource is satisfied by *rand.Rand from math/rand/v2.
type randomSource interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// removeAtRandom pops the element at ARGV[1] mod LLEN. Returns nil on an empty list.
var removeAtRandom = redis.NewScript(`
local n = redis.call('LLEN', KEYS[1])
if n == 0 then
	return false
end
local v = redis.call('LINDEX', KEYS[1], tonumber(ARGV[1]) % n)
if not v then
	return false
end
redis.call('LREM', KEYS[1], 1, v)
return v
`)

type Options struct {
	Key                   string
	KillSwitchKey         string
	RandomPickProbability float64
	Logger                *slog.Logger
	Counters              *telemetry.Counters
}

// DequeueStats describes one DequeueNext call.
type DequeueStats struct {
	Attempts int           `json:"attempts"`
	Stale    int           `json:"stale"`
	Requeued int           `json:"requeued"`
	Latency  time.Duration `json:"latency"`
}

// MatchQueue is the shared pool of pending match ids kept in a Redis list.
// Entries are hints: the record store stays authoritative and duplicate or
// stale ids are dropped when they are popped.
type MatchQueue struct {
	rdb      redis.Cmdable
	matches  MatchSource
	key      string
	killKey  string
	pickProb float64
	rnd      randomSource
	logger   *slog.Logger
	counters *telemetry.Counters
}

func NewMatchQueue(rdb redis.Cmdable, matches MatchSource, opts Options) *MatchQueue {
	q := &MatchQueue{
		rdb:      rdb,
		matches:  matches,
		key:      opts.Key,
		killKey:  opts.KillSwitchKey,
		pickProb: opts.RandomPickProbability,
		rnd:      globalRand{},
		logger:   opts.Logger,
		counters: opts.Counters,
	}
	if q.key == "" {
		q.key = DefaultKey
	}
	if q.killKey == "" {
		q.killKey = DefaultKillSwitchKey
	}
	if q.pickProb < 0 || q.pickProb > 1 {
		q.pickProb = DefaultRandomPickProbability
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	if q.counters == nil {
		q.counters = telemetry.NewCounters()
	}
	return q
}

func (q *MatchQueue) Enqueue(ctx context.Context, id int) error {
	return q.EnqueueMany(ctx, id)
}

// EnqueueMany appends all ids with a single RPUSH.
func (q *MatchQueue) EnqueueMany(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = strconv.Itoa(id)
	}
	if err := q.rdb.RPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %d matches: %w", len(ids), err)
	}
	return nil
}

// Size is the raw list length, duplicates and stale ids included.
func (q *MatchQueue) Size(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue size: %w", err)
	}
	return n, nil
}

func (q *MatchQueue) KillSwitchEngaged(ctx context.Context) (bool, error) {
	v, err := q.rdb.Get(ctx, q.killKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read kill switch: %w", err)
	}
	return v == killSwitchOn, nil
}

func (q *MatchQueue) SetKillSwitch(ctx context.Context, engaged bool) error {
	v := killSwitchOff
	if engaged {
		v = killSwitchOn
	}
	if err := q.rdb.Set(ctx, q.killKey, v, 0).Err(); err != nil {
		return fmt.Errorf("failed to set kill switch: %w", err)
	}
	q.logger.Info("kill switch updated", slog.Bool("engaged", engaged))
	return nil
}

// DequeueNext hands out the next pending match id, optionally restricted to one
// game. ok is false when the kill switch is engaged or nothing eligible is
// queued. The loop is bounded by the queue length seen on entry.
func (q *MatchQueue) DequeueNext(ctx context.Context, gameID *int) (int, bool, DequeueStats, error) {
	start := time.Now()
	var stats DequeueStats
	defer func() {
		stats.Latency = time.Since(start)
		q.counters.Add(telemetry.DequeueAttempts, int64(stats.Attempts))
		q.counters.Add(telemetry.DequeueStale, int64(stats.Stale))
		q.counters.Add(telemetry.DequeueRequeued, int64(stats.Requeued))
	}()
	q.counters.Inc(telemetry.DequeueCalls)

	engaged, err := q.KillSwitchEngaged(ctx)
	if err != nil {
		return 0, false, stats, err
	}
	if engaged {
		q.counters.Inc(telemetry.DequeueKilled)
		return 0, false, stats, nil
	}

	size, err := q.Size(ctx)
	if err != nil {
		return 0, false, stats, err
	}
	bound := int(size)
	if bound < 1 {
		bound = 1
	}

	for stats.Attempts < bound {
		stats.Attempts++

		raw, ok, popErr := q.pop(ctx)
		if popErr != nil {
			return 0, false, stats, popErr
		}
		if !ok {
			break
		}

		id, convErr := strconv.Atoi(raw)
		if convErr != nil {
			q.logger.Warn("dropping malformed queue entry", slog.String("value", raw))
			stats.Stale++
			continue
		}

		// Дубликаты удаляем сразу, чтобы матч не выдали дважды.
		if remErr := q.rdb.LRem(ctx, q.key, 0, raw).Err(); remErr != nil {
			q.logger.Warn("failed to remove duplicate queue entries", slog.Int("match_id", id), slog.Any("error", remErr))
		}

		m, getErr := q.matches.GetByID(ctx, nil, id)
		if errors.Is(getErr, repositories.ErrMatchNotFound) {
			stats.Stale++
			continue
		}
		if getErr != nil {
			// The id goes back so a store outage does not lose work.
			if pushErr := q.rdb.RPush(ctx, q.key, raw).Err(); pushErr != nil {
				q.logger.Error("failed to requeue match after store error", slog.Int("match_id", id), slog.Any("error", pushErr))
			}
			return 0, false, stats, fmt.Errorf("failed to check match %d: %w", id, getErr)
		}
		if m.Ran {
			stats.Stale++
			continue
		}
		if gameID != nil && m.GameID != *gameID {
			if pushErr := q.rdb.RPush(ctx, q.key, raw).Err(); pushErr != nil {
				return 0, false, stats, fmt.Errorf("failed to requeue match %d: %w", id, pushErr)
			}
			stats.Requeued++
			continue
		}

		q.counters.Inc(telemetry.DequeueDispatched)
		q.logger.Debug("match dequeued",
			slog.Int("match_id", id),
			slog.Int("attempts", stats.Attempts),
			slog.Int("stale", stats.Stale),
			slog.Int("requeued", stats.Requeued),
		)
		return id, true, stats, nil
	}

	return 0, false, stats, nil
}

// pop removes one element: usually the head, sometimes a random one so a
// single slow game cannot starve the rest of the list.
func (q *MatchQueue) pop(ctx context.Context) (string, bool, error) {
	var (
		v   string
		err error
	)
	if q.pickProb > 0 && q.rnd.Float64() < q.pickProb {
		v, err = removeAtRandom.Run(ctx, q.rdb, []string{q.key}, q.rnd.IntN(1<<30)).Text()
	} else {
		v, err = q.rdb.LPop(ctx, q.key).Result()
	}
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to pop from queue: %w", err)
	}
	return v, true, nil
}

// Regenerate replaces the list with exactly one entry per pending match.
func (q *MatchQueue) Regenerate(ctx context.Context) (int, error) {
	ids, err := q.matches.ListPendingIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending matches: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, q.key)
		for start := 0; start < len(ids); start += regenerateChunk {
			end := min(start+regenerateChunk, len(ids))
			values := make([]interface{}, 0, end-start)
			for _, id := range ids[start:end] {
				values = append(values, strconv.Itoa(id))
			}
			pipe.RPush(ctx, q.key, values...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild queue: %w", err)
	}

	q.counters.Inc(telemetry.QueueRegenerated)
	q.logger.Info("match queue regenerated", slog.Int("pending", len(ids)))
	return len(ids), nil
}
