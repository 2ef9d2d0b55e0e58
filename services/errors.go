package services

import (
	"errors"

	"github.com/Dosada05/colosseum/repositories"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed      = errors.New("validation failed")
	ErrInvalidResult         = errors.New("result must be 0, 0.5 or 1")
	ErrInvalidTournamentMode = errors.New("invalid tournament mode")
	ErrPreconditionFailed    = errors.New("precondition failed")

	// Аномалии отчётов о матчах
	ErrMatchAlreadyReported = errors.New("match result was already reported")
	ErrMatchAlreadyRated    = errors.New("match ratings were already applied")
	ErrMatchNotPlayed       = errors.New("match has not been played")

	// Ошибки конфликтов
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrSeasonConflict         = errors.New("season already exists")

	// Недоступность зависимостей
	ErrQueueUnavailable   = errors.New("match queue unavailable")
	ErrStorageUnavailable = errors.New("file storage unavailable")

	// Ошибки, специфичные для сущностей
	ErrGameNotFound       = errors.New("game not found")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrSeasonNotFound     = errors.New("season not found")
	ErrNoCurrentSeason    = errors.New("no active main season")
	ErrTournamentNotFound = errors.New("tournament not found")
)

// mapRepositoryError переводит ошибки репозиториев в ошибки сервисного слоя.
func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrAgentNotFound):
		return ErrAgentNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrSeasonNotFound):
		return ErrSeasonNotFound
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrSeasonNameConflict), errors.Is(err, repositories.ErrSeasonMainConflict):
		return ErrSeasonConflict
	case errors.Is(err, repositories.ErrTournamentInvalidParticipant):
		return ErrAgentNotFound
	case errors.Is(err, repositories.ErrMatchInvalidResult):
		return ErrInvalidResult
	}
	return err
}
