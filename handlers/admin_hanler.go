package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dosada05/colosseum/middleware"
	"github.com/Dosada05/colosseum/services"
)

// AdminHandler serves the operator endpoints under /admin.
type AdminHandler struct {
	dispatch    services.DispatchService
	ratings     services.RatingService
	exports     services.RankingExportService
	trophies    services.TrophyService
	tournaments services.TournamentService
	logger      *slog.Logger
}

func NewAdminHandler(
	dispatch services.DispatchService,
	ratings services.RatingService,
	exports services.RankingExportService,
	trophies services.TrophyService,
	tournaments services.TournamentService,
	logger *slog.Logger,
) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		dispatch:    dispatch,
		ratings:     ratings,
		exports:     exports,
		trophies:    trophies,
		tournaments: tournaments,
		logger:      logger,
	}
}

type killSwitchInput struct {
	Engaged *bool `json:"engaged"`
}

func (h *AdminHandler) GetKillSwitch(w http.ResponseWriter, r *http.Request) {
	engaged, err := h.dispatch.KillSwitch(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"engaged": engaged}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetKillSwitch обрабатывает PUT /admin/killswitch {"engaged": true|false}
func (h *AdminHandler) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var input killSwitchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Engaged == nil {
		badRequestResponse(w, r, errors.New("engaged is required"))
		return
	}

	if err := h.dispatch.SetKillSwitch(r.Context(), *input.Engaged); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.logger.Warn("kill switch changed",
		slog.Bool("engaged", *input.Engaged), slog.String("by", middleware.GetSubjectFromContext(r.Context())))
	if err := writeJSON(w, http.StatusOK, jsonResponse{"engaged": *input.Engaged}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) RegenerateQueue(w http.ResponseWriter, r *http.Request) {
	n, err := h.dispatch.RegenerateQueue(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"enqueued": n}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dispatch.Stats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, stats, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) RecalculateSeason(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	res, err := h.ratings.RecalculateSeason(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.logger.Info("season recalculated by operator",
		slog.Int("season_id", seasonID), slog.String("by", middleware.GetSubjectFromContext(r.Context())))
	if err := writeJSON(w, http.StatusOK, res, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SeasonRankings отдаёт ссылку на выгруженный CSV или сам CSV, если хранилище
// не настроено.
func (h *AdminHandler) SeasonRankings(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	export, err := h.exports.ExportSeasonRankings(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if export.URL != "" {
		if err := writeJSON(w, http.StatusOK, export, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="season-%d-rankings.csv"`, seasonID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Content); err != nil {
		h.logger.Error("failed to write rankings csv", slog.Int("season_id", seasonID), slog.Any("error", err))
	}
}

func (h *AdminHandler) BackfillTrophies(w http.ResponseWriter, r *http.Request) {
	n, err := h.trophies.Backfill(r.Context())
	if err != nil {
		h.logger.Error("trophy backfill finished with errors", slog.Int("awarded", n), slog.Any("error", err))
		if err := writeJSON(w, http.StatusOK, jsonResponse{"awarded": n, "error": err.Error()}, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"awarded": n}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) AwardTrophies(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	trophies, err := h.trophies.CreateTrophies(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"trophies": trophies}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateTournament обрабатывает POST /admin/tournaments
func (h *AdminHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournaments.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/tournaments/%d", tournament.ID))
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, headers); err != nil {
		serverErrorResponse(w, r, err)
	}
}
