package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/colosseum/brackets"
	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/repositories"
	"github.com/Dosada05/colosseum/telemetry"
)

// LowWaterMark is the pending match count at or below which an active timed
// tournament gets another bracket.
const LowWaterMark = 10

// Decision is what the orchestrator wants done with one tournament.
type Decision struct {
	State           models.TournamentState `json:"state"`
	GenerateMatches bool                   `json:"generate_matches"`
	MarkDone        bool                   `json:"mark_done"`
	AwardTrophies   bool                   `json:"award_trophies"`
	Reason          string                 `json:"reason"`
}

// Evaluate is the orchestrator state machine. It is pure: the caller supplies
// the tournament's match counts.
func Evaluate(t *models.Tournament, now time.Time, totalMatches, pendingMatches int) Decision {
	if t.Done {
		return Decision{
			State:         models.StateDone,
			AwardTrophies: pendingMatches == 0 && t.TrophiesAwardedAt == nil,
			Reason:        "already done",
		}
	}

	if t.Mode == models.ModeTimed {
		switch {
		case t.InWindow(now) && pendingMatches <= LowWaterMark:
			return Decision{State: models.StateNeedsMatches, GenerateMatches: true, Reason: "pending below low-water mark"}
		case t.InWindow(now):
			return Decision{State: models.StateActive, Reason: "inside time window"}
		case t.StartDate != nil && now.Before(*t.StartDate):
			return Decision{State: models.StateNeedsMatches, Reason: "waiting for start"}
		default:
			return Decision{
				State:         models.StateDone,
				MarkDone:      true,
				AwardTrophies: pendingMatches == 0,
				Reason:        "time window elapsed",
			}
		}
	}

	switch {
	case totalMatches == 0:
		return Decision{State: models.StateNeedsMatches, GenerateMatches: true, Reason: "no matches yet"}
	case pendingMatches > 0:
		return Decision{State: models.StateActive, Reason: "matches pending"}
	default:
		return Decision{State: models.StateDone, MarkDone: true, AwardTrophies: true, Reason: "all matches played"}
	}
}

type CreateTournamentInput struct {
	Name           string                `json:"name"`
	GameID         int                   `json:"game_id"`
	SeasonID       *int                  `json:"season_id,omitempty"`
	Mode           models.TournamentMode `json:"mode"`
	StartDate      *time.Time            `json:"start_date,omitempty"`
	EndDate        *time.Time            `json:"end_date,omitempty"`
	ParticipantIDs []int                 `json:"participant_ids,omitempty"`

	IsAutomated     bool `json:"-"`
	AutomatedNumber *int `json:"-"`
}

// SweepResult summarises one orchestrator pass.
type SweepResult struct {
	Evaluated  int `json:"evaluated"`
	Generated  int `json:"generated"`
	MarkedDone int `json:"marked_done"`
	TrophyRuns int `json:"trophy_runs"`
	Failed     int `json:"failed"`
}

type MatchesCreatedPayload struct {
	TournamentID int   `json:"tournament_id"`
	MatchIDs     []int `json:"match_ids"`
}

type TournamentDonePayload struct {
	TournamentID int    `json:"tournament_id"`
	Reason       string `json:"reason"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	// CreateMatches materializes one full bracket and enqueues it.
	CreateMatches(ctx context.Context, t *models.Tournament) (int, error)
	UpdateTournamentState(ctx context.Context, t *models.Tournament, now time.Time) (Decision, error)
	UpdateTournamentsState(ctx context.Context) (*SweepResult, error)
}

type tournamentService struct {
	tx             Transactor
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	agentRepo      repositories.AgentRepository
	seasonRepo     repositories.SeasonRepository
	generator      brackets.BracketGenerator
	trophies       TrophyService
	queue          WorkQueue
	events         EventPublisher
	counters       *telemetry.Counters
	logger         *slog.Logger
	now            func() time.Time
}

func NewTournamentService(
	tx Transactor,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	agentRepo repositories.AgentRepository,
	seasonRepo repositories.SeasonRepository,
	trophies TrophyService,
	queue WorkQueue,
	events EventPublisher,
	counters *telemetry.Counters,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		agentRepo:      agentRepo,
		seasonRepo:     seasonRepo,
		generator:      brackets.NewRoundRobinGenerator(),
		trophies:       trophies,
		queue:          queue,
		events:         events,
		counters:       counters,
		logger:         loggerOrDefault(logger),
		now:            time.Now,
	}
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if !input.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTournamentMode, input.Mode)
	}
	if input.Mode == models.ModeTimed {
		if input.StartDate == nil || input.EndDate == nil {
			return nil, fmt.Errorf("%w: timed tournaments need start_date and end_date", ErrValidationFailed)
		}
		if !input.StartDate.Before(*input.EndDate) {
			return nil, fmt.Errorf("%w: start_date must be before end_date", ErrValidationFailed)
		}
	}

	seasonID := 0
	if input.SeasonID != nil {
		season, err := s.seasonRepo.GetByID(ctx, nil, *input.SeasonID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		seasonID = season.ID
	} else {
		season, err := s.seasonRepo.GetCurrent(ctx, nil)
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrNoCurrentSeason
		}
		if err != nil {
			return nil, err
		}
		seasonID = season.ID
	}

	participants := input.ParticipantIDs
	if len(participants) == 0 {
		agents, err := s.agentRepo.ListActive(ctx, &input.GameID)
		if err != nil {
			return nil, err
		}
		for _, a := range agents {
			participants = append(participants, a.ID)
		}
	} else {
		agents, err := s.agentRepo.ListByIDs(ctx, participants)
		if err != nil {
			return nil, err
		}
		if len(agents) != len(uniqueInts(participants)) {
			return nil, fmt.Errorf("%w: some participants do not exist", ErrAgentNotFound)
		}
		for _, a := range agents {
			if a.GameID != input.GameID {
				return nil, fmt.Errorf("%w: agent %d plays game %d", ErrValidationFailed, a.ID, a.GameID)
			}
		}
	}

	t := &models.Tournament{
		Name:            input.Name,
		GameID:          input.GameID,
		SeasonID:        seasonID,
		Mode:            input.Mode,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		IsAutomated:     input.IsAutomated,
		AutomatedNumber: input.AutomatedNumber,
		ParticipantIDs:  uniqueInts(participants),
	}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.tournamentRepo.Create(ctx, exec, t)
	})
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", t.ID),
		slog.String("name", t.Name),
		slog.String("mode", string(t.Mode)),
		slog.Int("participants", len(t.ParticipantIDs)),
	)
	return t, nil
}

func (s *tournamentService) CreateMatches(ctx context.Context, t *models.Tournament) (int, error) {
	var matches []*models.Match
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, t.ID); err != nil {
			return err
		}
		var err error
		matches, err = s.storeBracket(ctx, exec, t)
		return err
	})
	if err != nil {
		return 0, err
	}
	return s.dispatchBracket(ctx, t, matches), nil
}

// storeBracket generates one bracket for t and inserts it through exec. It
// returns no matches when there are too few participants.
func (s *tournamentService) storeBracket(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]*models.Match, error) {
	participantIDs := t.ParticipantIDs
	if len(participantIDs) == 0 {
		ids, err := s.tournamentRepo.ListParticipantIDs(ctx, exec, t.ID)
		if err != nil {
			return nil, err
		}
		participantIDs = ids
	}

	pairs, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Tournament:     t,
		ParticipantIDs: participantIDs,
		Rounds:         t.Mode.Rounds(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate bracket for tournament %d: %w", t.ID, err)
	}
	if len(pairs) == 0 {
		s.logger.Warn("tournament has too few participants for a bracket",
			slog.Int("tournament_id", t.ID), slog.Int("participants", len(participantIDs)))
		return nil, nil
	}

	matches := make([]*models.Match, len(pairs))
	for i, p := range pairs {
		matches[i] = &models.Match{
			TournamentID: t.ID,
			GameID:       t.GameID,
			SeasonID:     t.SeasonID,
			Player1ID:    p.Player1ID,
			Player2ID:    p.Player2ID,
		}
	}
	if err = s.matchRepo.CreateBatch(ctx, exec, matches); err != nil {
		return nil, fmt.Errorf("failed to store bracket for tournament %d: %w", t.ID, err)
	}
	return matches, nil
}

// dispatchBracket enqueues committed matches and announces them.
func (s *tournamentService) dispatchBracket(ctx context.Context, t *models.Tournament, matches []*models.Match) int {
	if len(matches) == 0 {
		return 0
	}
	ids := make([]int, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	// Очередь восстановится при следующей регенерации, поэтому только логируем.
	if err := s.queue.EnqueueMany(ctx, ids...); err != nil {
		s.logger.Error("failed to enqueue new matches", slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}

	s.counters.Add(telemetry.MatchesCreated, int64(len(ids)))
	s.logger.Info("matches created",
		slog.Int("tournament_id", t.ID),
		slog.String("generator", s.generator.GetName()),
		slog.Int("count", len(ids)),
	)
	publish(s.events, t.ID, brackets.EventMatchesCreated, MatchesCreatedPayload{TournamentID: t.ID, MatchIDs: ids})
	return len(ids)
}

// generateLocked repeats the evaluation with the tournament row locked and
// stores a bracket only if one is still needed.
func (s *tournamentService) generateLocked(ctx context.Context, t *models.Tournament, now time.Time) (Decision, int, []*models.Match, error) {
	var (
		d       Decision
		pending int
		matches []*models.Match
	)
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		locked, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		var total int
		total, pending, err = s.matchRepo.CountByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		d = Evaluate(locked, now, total, pending)
		if !d.GenerateMatches {
			return nil
		}
		locked.ParticipantIDs = t.ParticipantIDs
		matches, err = s.storeBracket(ctx, exec, locked)
		return err
	})
	return d, pending, matches, err
}

func (s *tournamentService) UpdateTournamentState(ctx context.Context, t *models.Tournament, now time.Time) (Decision, error) {
	total, pending, err := s.matchRepo.CountByTournament(ctx, nil, t.ID)
	if err != nil {
		return Decision{}, err
	}
	d := Evaluate(t, now, total, pending)

	if d.GenerateMatches {
		var matches []*models.Match
		d, pending, matches, err = s.generateLocked(ctx, t, now)
		if err != nil {
			return d, err
		}
		if d.GenerateMatches {
			created := s.dispatchBracket(ctx, t, matches)
			pending += created
			switch {
			case created > 0:
				d.State = models.StateActive
			case t.Mode != models.ModeTimed:
				// Nothing to play: a round robin without a bracket is over.
				d = Decision{State: models.StateDone, MarkDone: true, AwardTrophies: pending == 0, Reason: "no bracket could be generated"}
			}
		}
	}

	if d.MarkDone {
		if err = s.tournamentRepo.MarkDone(ctx, nil, t.ID); err != nil {
			return d, err
		}
		t.Done = true
		s.counters.Inc(telemetry.TournamentsDone)
		s.logger.Info("tournament done", slog.Int("tournament_id", t.ID), slog.String("reason", d.Reason))
		publish(s.events, t.ID, brackets.EventTournamentDone, TournamentDonePayload{TournamentID: t.ID, Reason: d.Reason})
	}

	if d.AwardTrophies {
		if _, err = s.trophies.CreateTrophies(ctx, t.ID); err != nil {
			return d, err
		}
	}
	return d, nil
}

// UpdateTournamentsState runs the orchestrator over every tournament that is
// not finished yet. One failing tournament does not stop the sweep.
func (s *tournamentService) UpdateTournamentsState(ctx context.Context) (*SweepResult, error) {
	tournaments, err := s.tournamentRepo.ListForSweep(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments for sweep: %w", err)
	}

	now := s.now()
	result := &SweepResult{}
	var errs []error
	for _, t := range tournaments {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		result.Evaluated++
		d, updErr := s.UpdateTournamentState(ctx, t, now)
		if updErr != nil {
			result.Failed++
			s.logger.Error("tournament update failed", slog.Int("tournament_id", t.ID), slog.Any("error", updErr))
			errs = append(errs, fmt.Errorf("tournament %d: %w", t.ID, updErr))
			continue
		}
		if d.GenerateMatches {
			result.Generated++
		}
		if d.MarkDone {
			result.MarkedDone++
		}
		if d.AwardTrophies {
			result.TrophyRuns++
		}
	}

	s.logger.Debug("tournament sweep finished",
		slog.Int("evaluated", result.Evaluated),
		slog.Int("marked_done", result.MarkedDone),
		slog.Int("trophy_runs", result.TrophyRuns),
		slog.Int("failed", result.Failed),
	)
	return result, errors.Join(errs...)
}

func uniqueInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
