package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/colosseum/brackets"
	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/repositories"
	"github.com/Dosada05/colosseum/telemetry"
)

// ReportInput is what a worker sends after running a match.
type ReportInput struct {
	Result          *float64        `json:"result"`
	RanAt           *time.Time      `json:"ran_at,omitempty"`
	DurationSeconds *float64        `json:"duration_seconds,omitempty"`
	EndReason       *string         `json:"end_reason,omitempty"`
	Outcome         json.RawMessage `json:"outcome,omitempty"`
}

type MatchReportedPayload struct {
	MatchID      int                `json:"match_id"`
	TournamentID int                `json:"tournament_id"`
	Player1ID    int                `json:"player1_id"`
	Player2ID    int                `json:"player2_id"`
	Result       float64            `json:"result"`
	EloChange    map[string]float64 `json:"elo_change"`
}

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	// ReportResult records a worker's outcome and rates the match in the same
	// transaction. A second report taints the match and returns
	// ErrMatchAlreadyReported together with the stored match.
	ReportResult(ctx context.Context, matchID int, input ReportInput) (*models.Match, error)
}

type matchService struct {
	tx        Transactor
	matchRepo repositories.MatchRepository
	ratings   RatingService
	events    EventPublisher
	counters  *telemetry.Counters
	logger    *slog.Logger
	now       func() time.Time
}

func NewMatchService(
	tx Transactor,
	matchRepo repositories.MatchRepository,
	ratings RatingService,
	events EventPublisher,
	counters *telemetry.Counters,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:        tx,
		matchRepo: matchRepo,
		ratings:   ratings,
		events:    events,
		counters:  counters,
		logger:    loggerOrDefault(logger),
		now:       time.Now,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return m, nil
}

func (s *matchService) ReportResult(ctx context.Context, matchID int, input ReportInput) (*models.Match, error) {
	if input.Result == nil || !models.ValidResult(*input.Result) {
		return nil, ErrInvalidResult
	}
	if input.DurationSeconds != nil && *input.DurationSeconds < 0 {
		return nil, fmt.Errorf("%w: duration_seconds must not be negative", ErrValidationFailed)
	}

	var (
		match           *models.Match
		duplicate       bool
		missingDuration bool
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapRepositoryError(err)
		}
		match = m

		if m.Ran {
			// Повторный отчёт: результат не трогаем, только помечаем матч.
			duplicate = true
			taint := models.AppendTaint(m.Taint, models.TaintDuplicateReport)
			m.Taint = &taint
			return s.matchRepo.SetTaint(ctx, exec, m.ID, taint)
		}

		ranAt := s.now().UTC()
		if input.RanAt != nil {
			ranAt = input.RanAt.UTC()
		}
		m.Result = ptr(*input.Result)
		m.RanAt = &ranAt
		m.DurationSeconds = input.DurationSeconds
		m.EndReason = input.EndReason
		if len(input.Outcome) > 0 {
			m.Data.Outcome = input.Outcome
		}
		if input.DurationSeconds == nil {
			missingDuration = true
			m.Taint = ptr(models.TaintMissingDuration)
		}

		if err = s.matchRepo.RecordResult(ctx, exec, m); err != nil {
			return mapRepositoryError(err)
		}
		return s.ratings.ApplyMatch(ctx, exec, m)
	})

	if duplicate && err == nil {
		s.counters.Inc(telemetry.AnomalyDuplicate)
		s.logger.Warn("duplicate match report",
			slog.Int("match_id", matchID), slog.Int("tournament_id", match.TournamentID))
		return match, ErrMatchAlreadyReported
	}
	if err != nil {
		return nil, err
	}

	if missingDuration {
		s.counters.Inc(telemetry.AnomalyDuration)
		s.logger.Warn("match reported without duration", slog.Int("match_id", matchID))
	}
	s.counters.Inc(telemetry.MatchesReported)
	s.logger.Info("match reported",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.Float64("result", *match.Result),
	)

	publish(s.events, match.TournamentID, brackets.EventMatchReported, MatchReportedPayload{
		MatchID:      match.ID,
		TournamentID: match.TournamentID,
		Player1ID:    match.Player1ID,
		Player2ID:    match.Player2ID,
		Result:       *match.Result,
		EloChange:    match.Data.EloChange,
	})
	return match, nil
}
