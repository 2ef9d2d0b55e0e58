package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/colosseum/repositories"
	"github.com/Dosada05/colosseum/telemetry"
)

type QueueStats struct {
	Size       int64            `json:"size"`
	KillSwitch bool             `json:"kill_switch"`
	Counters   map[string]int64 `json:"counters"`
}

// DispatchService is the worker-facing side of the system: it hands out match
// ids and exposes the operator controls of the queue.
type DispatchService interface {
	// NextMatch returns the next pending match id, or nil when nothing can be
	// dispatched. An empty gameName means any game.
	NextMatch(ctx context.Context, gameName string) (*int, error)
	Sweep(ctx context.Context) (*SweepResult, error)
	SetKillSwitch(ctx context.Context, engaged bool) error
	KillSwitch(ctx context.Context) (bool, error)
	RegenerateQueue(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*QueueStats, error)
}

type dispatchService struct {
	gameRepo    repositories.GameRepository
	queue       WorkQueue
	tournaments TournamentService
	counters    *telemetry.Counters
	logger      *slog.Logger
}

func NewDispatchService(
	gameRepo repositories.GameRepository,
	queue WorkQueue,
	tournaments TournamentService,
	counters *telemetry.Counters,
	logger *slog.Logger,
) DispatchService {
	return &dispatchService{
		gameRepo:    gameRepo,
		queue:       queue,
		tournaments: tournaments,
		counters:    counters,
		logger:      loggerOrDefault(logger),
	}
}

func (s *dispatchService) NextMatch(ctx context.Context, gameName string) (*int, error) {
	var gameID *int
	if name := strings.TrimSpace(gameName); name != "" {
		game, err := s.gameRepo.GetByName(ctx, name)
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrGameNotFound, name)
		}
		if err != nil {
			return nil, err
		}
		gameID = &game.ID
	}

	id, ok, stats, err := s.queue.DequeueNext(ctx, gameID)
	if err != nil {
		s.logger.Error("dequeue failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	s.logger.Debug("dequeue finished",
		slog.Bool("dispatched", ok),
		slog.Int("attempts", stats.Attempts),
		slog.Int("stale", stats.Stale),
		slog.Int("requeued", stats.Requeued),
		slog.Duration("latency", stats.Latency),
	)
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (s *dispatchService) Sweep(ctx context.Context) (*SweepResult, error) {
	return s.tournaments.UpdateTournamentsState(ctx)
}

func (s *dispatchService) SetKillSwitch(ctx context.Context, engaged bool) error {
	if err := s.queue.SetKillSwitch(ctx, engaged); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

func (s *dispatchService) KillSwitch(ctx context.Context) (bool, error) {
	engaged, err := s.queue.KillSwitchEngaged(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return engaged, nil
}

func (s *dispatchService) RegenerateQueue(ctx context.Context) (int, error) {
	n, err := s.queue.Regenerate(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return n, nil
}

func (s *dispatchService) Stats(ctx context.Context) (*QueueStats, error) {
	size, err := s.queue.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	engaged, err := s.queue.KillSwitchEngaged(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return &QueueStats{Size: size, KillSwitch: engaged, Counters: s.counters.Snapshot()}, nil
}
