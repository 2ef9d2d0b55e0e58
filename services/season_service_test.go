package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/colosseum/config"
	"github.com/Dosada05/colosseum/elo"
	"github.com/Dosada05/colosseum/models"
)

func TestCreateAutomatedSeason(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1, 2, 3)

	season, err := env.seasons.CreateAutomatedSeason(ctx, env.clock)
	if err != nil {
		t.Fatalf("CreateAutomatedSeason: %v", err)
	}
	if season == nil || season.Name != "Automated Season 1" || !season.Main || !season.Active {
		t.Fatalf("season = %+v", season)
	}
	wantEnd := time.Date(2024, 5, 16, 23, 59, 59, 999999000, time.UTC)
	if !season.StartDate.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)) || !season.EndDate.Equal(wantEnd) {
		t.Errorf("window = %v .. %v", season.StartDate, season.EndDate)
	}
	if env.store.seasons[testSeasonID].Main {
		t.Error("previous season still main")
	}
	for agent := 1; agent <= 3; agent++ {
		r := env.store.rating(agent, testGameID, season.ID)
		if r == nil || r.Elo != elo.DefaultRating {
			t.Errorf("agent %d rating = %+v", agent, r)
		}
	}

	again, err := env.seasons.CreateAutomatedSeason(ctx, env.clock.Add(24*time.Hour))
	if err != nil || again != nil {
		t.Fatalf("second call while active = %+v, %v", again, err)
	}

	later := season.EndDate.Add(time.Hour)
	if n, err := env.seasons.UpdateSeasonsState(ctx, later); err != nil || n != 1 {
		t.Fatalf("UpdateSeasonsState = %d, %v", n, err)
	}
	next, err := env.seasons.CreateAutomatedSeason(ctx, later)
	if err != nil || next == nil || next.Name != "Automated Season 2" || *next.AutomatedNumber != 2 {
		t.Fatalf("next season = %+v, %v", next, err)
	}
	current, err := env.seasons.CurrentSeason(ctx)
	if err != nil || current.ID != next.ID {
		t.Fatalf("current season = %+v, %v", current, err)
	}
}

func TestCreateAutomatedSeasonDisabled(t *testing.T) {
	env := newTestEnv(1)
	seasons := NewSeasonService(env.tx, fakeSeasonRepo{s: env.store}, fakeAgentRepo{s: env.store}, fakeRatingRepo{s: env.store}, false, discardLogger)
	season, err := seasons.CreateAutomatedSeason(context.Background(), env.clock)
	if err != nil || season != nil {
		t.Fatalf("got %+v, %v", season, err)
	}
}

func newTestAutomation(env *testEnv) AutomationService {
	return NewAutomationService(config.DefaultAutomation(), true,
		fakeTournamentRepo{s: env.store}, fakeGameRepo{s: env.store}, env.tournaments, env.seasons, discardLogger)
}

func TestCreateAutomatedTournaments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1, 2, 3)
	automation := newTestAutomation(env)

	created, err := automation.CreateAutomatedTournaments(ctx, env.clock)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("created %d tournaments, want 4", len(created))
	}
	var timed *models.Tournament
	for _, tour := range created {
		if !tour.IsAutomated || *tour.AutomatedNumber != 1 || len(tour.ParticipantIDs) != 3 {
			t.Errorf("tournament = %+v", tour)
		}
		if tour.Mode == models.ModeTimed {
			timed = tour
		}
	}
	if timed == nil || timed.Name != "Automated Daily Tournament #1" {
		t.Fatalf("timed tournament = %+v", timed)
	}
	if !timed.InWindow(env.clock) || timed.InWindow(env.clock.Add(24*time.Hour)) {
		t.Errorf("timed window = %v .. %v", timed.StartDate, timed.EndDate)
	}

	// Nothing finished yet, so nothing new.
	created, err = automation.CreateAutomatedTournaments(ctx, env.clock)
	if err != nil || len(created) != 0 {
		t.Fatalf("second run = %d, %v", len(created), err)
	}

	env.store.tournaments[timed.ID].Done = true
	created, err = automation.CreateAutomatedTournaments(ctx, env.clock.Add(24*time.Hour))
	if err != nil || len(created) != 1 {
		t.Fatalf("third run = %d, %v", len(created), err)
	}
	if created[0].Name != "Automated Daily Tournament #2" || created[0].Mode != models.ModeTimed {
		t.Errorf("tournament = %+v", created[0])
	}
}

func TestAutomationRun(t *testing.T) {
	env := newTestEnv(1, 2)
	env.store.seasons[testSeasonID].EndDate = ptr(env.clock.Add(-time.Hour))

	if err := newTestAutomation(env).Run(context.Background(), env.clock); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if env.store.seasons[testSeasonID].Active {
		t.Error("ended season still active")
	}
	current, err := env.seasons.CurrentSeason(context.Background())
	if err != nil || !current.IsAutomated {
		t.Fatalf("current season = %+v, %v", current, err)
	}
	for _, tour := range env.store.tournaments {
		if tour.SeasonID != current.ID {
			t.Errorf("tournament %q in season %d, want %d", tour.Name, tour.SeasonID, current.ID)
		}
	}
	if len(env.store.tournaments) != 4 {
		t.Errorf("created %d tournaments, want 4", len(env.store.tournaments))
	}
}
