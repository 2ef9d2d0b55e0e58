package handlers

import (
	"net/http"

	"github.com/Dosada05/colosseum/services"
)

// TournamentHandler serves the public read side of tournaments.
type TournamentHandler struct {
	tournamentService services.TournamentService
	trophyService     services.TrophyService
}

func NewTournamentHandler(ts services.TournamentService, trophies services.TrophyService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		trophyService:     trophies,
	}
}

// GetByID обрабатывает GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Standings обрабатывает GET /tournaments/{tournamentID}/standings
func (h *TournamentHandler) Standings(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.trophyService.Standings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
