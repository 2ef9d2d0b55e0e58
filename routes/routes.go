package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/colosseum/handlers"
	"github.com/Dosada05/colosseum/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

const requestTimeout = 60 * time.Second

func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	allowedOrigins []string,
	matchHandler *handlers.MatchHandler,
	tournamentHandler *handlers.TournamentHandler,
	adminHandler *handlers.AdminHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// WebSocket живёт дольше любого таймаута запроса.
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		r.Get("/next-match", matchHandler.NextMatch)
		r.Post("/next-match", matchHandler.Sweep)

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/", matchHandler.GetMatch)
			r.Patch("/", matchHandler.ReportMatch)
		})

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Get("/", tournamentHandler.GetByID)
			r.Get("/standings", tournamentHandler.Standings)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(jwtSecret))

			r.Get("/killswitch", adminHandler.GetKillSwitch)
			r.Put("/killswitch", adminHandler.SetKillSwitch)
			r.Post("/queue/regenerate", adminHandler.RegenerateQueue)
			r.Get("/queue/stats", adminHandler.QueueStats)
			r.Post("/seasons/{seasonID}/recalculate", adminHandler.RecalculateSeason)
			r.Get("/seasons/{seasonID}/rankings", adminHandler.SeasonRankings)
			r.Post("/trophies/backfill", adminHandler.BackfillTrophies)
			r.Post("/tournaments", adminHandler.CreateTournament)
			r.Post("/tournaments/{tournamentID}/trophies", adminHandler.AwardTrophies)
		})
	})
}
