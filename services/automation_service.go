package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/colosseum/config"
	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/repositories"
)

type AutomationService interface {
	// CreateAutomatedTournaments opens the next tournament of every template
	// whose previous automated tournament has finished.
	CreateAutomatedTournaments(ctx context.Context, now time.Time) ([]*models.Tournament, error)
	// Run is one automation tick: season upkeep, then tournaments.
	Run(ctx context.Context, now time.Time) error
}

type automationService struct {
	templates      []config.TournamentTemplate
	enabled        bool
	tournamentRepo repositories.TournamentRepository
	gameRepo       repositories.GameRepository
	tournaments    TournamentService
	seasons        SeasonService
	logger         *slog.Logger
}

func NewAutomationService(
	automation *config.Automation,
	automatedTournaments bool,
	tournamentRepo repositories.TournamentRepository,
	gameRepo repositories.GameRepository,
	tournaments TournamentService,
	seasons SeasonService,
	logger *slog.Logger,
) AutomationService {
	if automation == nil {
		automation = config.DefaultAutomation()
	}
	return &automationService{
		templates:      automation.Tournaments,
		enabled:        automatedTournaments,
		tournamentRepo: tournamentRepo,
		gameRepo:       gameRepo,
		tournaments:    tournaments,
		seasons:        seasons,
		logger:         loggerOrDefault(logger),
	}
}

func (s *automationService) Run(ctx context.Context, now time.Time) error {
	var errs []error
	if _, err := s.seasons.UpdateSeasonsState(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("update seasons: %w", err))
	}
	if _, err := s.seasons.CreateAutomatedSeason(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("automated season: %w", err))
	}
	if _, err := s.CreateAutomatedTournaments(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("automated tournaments: %w", err))
	}
	return errors.Join(errs...)
}

func (s *automationService) CreateAutomatedTournaments(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	if !s.enabled {
		return nil, nil
	}

	created := make([]*models.Tournament, 0)
	var errs []error
	for _, tpl := range s.templates {
		t, err := s.createFromTemplate(ctx, tpl, now)
		if err != nil {
			s.logger.Error("automated tournament failed", slog.String("mode", string(tpl.Mode)), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", tpl.Mode, err))
			continue
		}
		if t != nil {
			created = append(created, t)
		}
	}
	return created, errors.Join(errs...)
}

func (s *automationService) createFromTemplate(ctx context.Context, tpl config.TournamentTemplate, now time.Time) (*models.Tournament, error) {
	last, err := s.tournamentRepo.GetLastAutomated(ctx, tpl.Mode)
	if err != nil && !errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, err
	}
	next := 1
	if last != nil {
		if !last.Done {
			return nil, nil
		}
		if last.AutomatedNumber != nil {
			next = *last.AutomatedNumber + 1
		}
	}

	var game *models.Game
	if tpl.Game != "" {
		game, err = s.gameRepo.GetByName(ctx, tpl.Game)
	} else {
		game, err = s.gameRepo.GetFirstActive(ctx)
	}
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	input := CreateTournamentInput{
		Name:            fmt.Sprintf(tpl.Name, next),
		GameID:          game.ID,
		Mode:            tpl.Mode,
		IsAutomated:     true,
		AutomatedNumber: &next,
	}
	if tpl.Mode == models.ModeTimed {
		start, end := startOfDay(now), endOfDay(now)
		input.StartDate, input.EndDate = &start, &end
	}

	t, err := s.tournaments.CreateTournament(ctx, input)
	if err != nil {
		return nil, err
	}
	return t, nil
}
