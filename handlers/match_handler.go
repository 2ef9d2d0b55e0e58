package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/colosseum/services"
)

// MatchHandler is the worker-facing API: it hands out matches and takes their
// results back.
type MatchHandler struct {
	dispatch services.DispatchService
	matches  services.MatchService
	logger   *slog.Logger
}

func NewMatchHandler(dispatch services.DispatchService, matches services.MatchService, logger *slog.Logger) *MatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchHandler{dispatch: dispatch, matches: matches, logger: logger}
}

// NextMatch обрабатывает GET /next-match?game=NAME
func (h *MatchHandler) NextMatch(w http.ResponseWriter, r *http.Request) {
	id, err := h.dispatch.NextMatch(r.Context(), r.URL.Query().Get("game"))
	if err != nil {
		if errors.Is(err, services.ErrGameNotFound) {
			notFoundResponse(w, r, err.Error())
			return
		}
		unavailableResponse(w, r, err)
		return
	}

	resp := jsonResponse{}
	if id != nil {
		resp["id"] = *id
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Sweep обрабатывает POST /next-match: один синхронный проход оркестратора.
func (h *MatchHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.dispatch.Sweep(r.Context())
	if err != nil {
		// Сбой одного турнира не отменяет остальные.
		h.logger.Error("sweep finished with errors", slog.Any("error", err))
		if res == nil {
			serverErrorResponse(w, r, err)
			return
		}
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "ok", "sweep": res}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	match, err := h.matches.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReportMatch обрабатывает PATCH /matches/{matchID}
func (h *MatchHandler) ReportMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.ReportInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matches.ReportResult(r.Context(), matchID, input)
	if errors.Is(err, services.ErrMatchAlreadyReported) {
		_ = writeJSON(w, http.StatusConflict, jsonResponse{"error": err.Error(), "match": match}, nil)
		return
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
