package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/queue"
	"github.com/Dosada05/colosseum/repositories"
	"github.com/Dosada05/colosseum/telemetry"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeTx runs transactions one at a time, which stands in for the row locks
// the Postgres repositories take.
type fakeTx struct {
	serial sync.Mutex
	mu     sync.Mutex
	calls  int
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.serial.Lock()
	defer f.serial.Unlock()
	return fn(nil)
}

type ratingKey struct{ agent, game, season int }

// memStore is an in-memory record store shared by the fake repositories.
type memStore struct {
	mu           sync.Mutex
	nextID       int
	games        map[int]*models.Game
	agents       map[int]*models.Agent
	seasons      map[int]*models.Season
	ratings      map[ratingKey]*models.AgentRating
	matches      map[int]*models.Match
	tournaments  map[int]*models.Tournament
	participants map[int][]int
	trophies     map[int][]*models.Trophy
}

func newMemStore() *memStore {
	return &memStore{
		nextID:       1000,
		games:        map[int]*models.Game{},
		agents:       map[int]*models.Agent{},
		seasons:      map[int]*models.Season{},
		ratings:      map[ratingKey]*models.AgentRating{},
		matches:      map[int]*models.Match{},
		tournaments:  map[int]*models.Tournament{},
		participants: map[int][]int{},
		trophies:     map[int][]*models.Trophy{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) addGame(id int, name string) {
	s.games[id] = &models.Game{ID: id, Name: name, Active: true}
}

func (s *memStore) addAgent(id, gameID int) {
	s.agents[id] = &models.Agent{ID: id, Name: "agent-" + models.AgentKey(id), OwnerID: 1, GameID: gameID, Active: true}
}

func (s *memStore) addSeason(id int, main bool) {
	s.seasons[id] = &models.Season{ID: id, Name: "season-" + models.AgentKey(id), Active: true, Main: main}
}

func (s *memStore) addTournament(t *models.Tournament, participants ...int) *models.Tournament {
	if t.ID == 0 {
		t.ID = s.id()
	}
	cp := *t
	s.tournaments[t.ID] = &cp
	s.participants[t.ID] = append([]int(nil), participants...)
	return t
}

func (s *memStore) rating(agentID, gameID, seasonID int) *models.AgentRating {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ratings[ratingKey{agentID, gameID, seasonID}]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (s *memStore) match(id int) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

func (s *memStore) tournament(id int) *models.Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.tournaments[id]
	return &cp
}

func (s *memStore) matchIDsOf(tournamentID int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0)
	for _, m := range s.matches {
		if m.TournamentID == tournamentID {
			ids = append(ids, m.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

// --- games ---

type fakeGameRepo struct{ s *memStore }

func (r fakeGameRepo) GetByID(_ context.Context, id int) (*models.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	cp := *g
	return &cp, nil
}

func (r fakeGameRepo) GetByName(_ context.Context, name string) (*models.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.games {
		if g.Name == name {
			cp := *g
			return &cp, nil
		}
	}
	return nil, repositories.ErrGameNotFound
}

func (r fakeGameRepo) GetFirstActive(_ context.Context) (*models.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *models.Game
	for _, g := range r.s.games {
		if g.Active && (best == nil || g.ID < best.ID) {
			best = g
		}
	}
	if best == nil {
		return nil, repositories.ErrGameNotFound
	}
	cp := *best
	return &cp, nil
}

// --- agents ---

type fakeAgentRepo struct{ s *memStore }

func (r fakeAgentRepo) GetByID(_ context.Context, id int) (*models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, repositories.ErrAgentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r fakeAgentRepo) ListByIDs(_ context.Context, ids []int) ([]*models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Agent, 0)
	for _, id := range uniqueInts(ids) {
		if a, ok := r.s.agents[id]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeAgentRepo) ListActive(_ context.Context, gameID *int) ([]*models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Agent, 0)
	for _, a := range r.s.agents {
		if a.Active && (gameID == nil || a.GameID == *gameID) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- seasons ---

type fakeSeasonRepo struct{ s *memStore }

func (r fakeSeasonRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Season, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	season, ok := r.s.seasons[id]
	if !ok {
		return nil, repositories.ErrSeasonNotFound
	}
	cp := *season
	return &cp, nil
}

func (r fakeSeasonRepo) GetCurrent(_ context.Context, _ repositories.SQLExecutor) (*models.Season, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, season := range r.s.seasons {
		if season.Active && season.Main {
			cp := *season
			return &cp, nil
		}
	}
	return nil, repositories.ErrSeasonNotFound
}

func (r fakeSeasonRepo) GetLastAutomated(_ context.Context, _ repositories.SQLExecutor) (*models.Season, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var last *models.Season
	for _, season := range r.s.seasons {
		if !season.IsAutomated || season.AutomatedNumber == nil {
			continue
		}
		if last == nil || *season.AutomatedNumber > *last.AutomatedNumber {
			last = season
		}
	}
	if last == nil {
		return nil, repositories.ErrSeasonNotFound
	}
	cp := *last
	return &cp, nil
}

func (r fakeSeasonRepo) Create(_ context.Context, _ repositories.SQLExecutor, season *models.Season) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.seasons {
		if existing.Name == season.Name {
			return repositories.ErrSeasonNameConflict
		}
		if season.Active && season.Main && existing.Active && existing.Main {
			return repositories.ErrSeasonMainConflict
		}
	}
	season.ID = r.s.id()
	season.CreatedAt = time.Now()
	cp := *season
	r.s.seasons[season.ID] = &cp
	return nil
}

func (r fakeSeasonRepo) ClearMain(_ context.Context, _ repositories.SQLExecutor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, season := range r.s.seasons {
		season.Main = false
	}
	return nil
}

func (r fakeSeasonRepo) DeactivateEnded(_ context.Context, _ repositories.SQLExecutor, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, season := range r.s.seasons {
		if season.Active && season.Ended(now) {
			season.Active = false
			n++
		}
	}
	return n, nil
}

// --- ratings ---

type fakeRatingRepo struct{ s *memStore }

func (r fakeRatingRepo) GetOrCreateForUpdate(_ context.Context, _ repositories.SQLExecutor, agentID, gameID, seasonID int, baseline float64) (*models.AgentRating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := ratingKey{agentID, gameID, seasonID}
	rating, ok := r.s.ratings[key]
	if !ok {
		rating = &models.AgentRating{ID: r.s.id(), AgentID: agentID, GameID: gameID, SeasonID: seasonID, Elo: baseline}
		r.s.ratings[key] = rating
	}
	cp := *rating
	return &cp, nil
}

func (r fakeRatingRepo) Update(_ context.Context, _ repositories.SQLExecutor, rating *models.AgentRating) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := ratingKey{rating.AgentID, rating.GameID, rating.SeasonID}
	if _, ok := r.s.ratings[key]; !ok {
		return repositories.ErrRatingNotFound
	}
	cp := *rating
	r.s.ratings[key] = &cp
	return nil
}

func (r fakeRatingRepo) ResetSeason(_ context.Context, _ repositories.SQLExecutor, seasonID int, baseline float64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, rating := range r.s.ratings {
		if rating.SeasonID == seasonID {
			rating.Wins, rating.Losses, rating.Draws, rating.Score, rating.Elo = 0, 0, 0, 0, baseline
			n++
		}
	}
	return n, nil
}

func (r fakeRatingRepo) CreateForAgents(_ context.Context, _ repositories.SQLExecutor, seasonID int, agents []*models.Agent, baseline float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range agents {
		key := ratingKey{a.ID, a.GameID, seasonID}
		if _, ok := r.s.ratings[key]; ok {
			continue
		}
		r.s.ratings[key] = &models.AgentRating{ID: r.s.id(), AgentID: a.ID, GameID: a.GameID, SeasonID: seasonID, Elo: baseline}
	}
	return nil
}

func (r fakeRatingRepo) ListBySeason(_ context.Context, seasonID int) ([]*models.AgentRating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.AgentRating, 0)
	for _, rating := range r.s.ratings {
		if rating.SeasonID != seasonID {
			continue
		}
		cp := *rating
		if a, ok := r.s.agents[rating.AgentID]; ok {
			agent := *a
			cp.Agent = &agent
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Elo != out[j].Elo {
			return out[i].Elo > out[j].Elo
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out, nil
}

// --- matches ---

type fakeMatchRepo struct {
	s *memStore
	// failCreate makes CreateBatch fail.
	failCreate error
}

func (r *fakeMatchRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, matches []*models.Match) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range matches {
		m.ID = r.s.id()
		m.CreatedAt = time.Now()
		cp := *m
		r.s.matches[m.ID] = &cp
	}
	return nil
}

func (r *fakeMatchRepo) get(id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.get(id)
}

func (r *fakeMatchRepo) GetByIDForUpdate(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.get(id)
}

func (r *fakeMatchRepo) ListPendingIDs(_ context.Context) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int, 0)
	for _, m := range r.s.matches {
		if !m.Ran {
			ids = append(ids, m.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *fakeMatchRepo) CountByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total, pending := 0, 0
	for _, m := range r.s.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		total++
		if !m.Ran {
			pending++
		}
	}
	return total, pending, nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Match, error) {
	return r.list(func(m *models.Match) bool { return m.TournamentID == tournamentID }, func(a, b *models.Match) bool {
		return a.ID < b.ID
	}), nil
}

func (r *fakeMatchRepo) ListPlayedBySeason(_ context.Context, _ repositories.SQLExecutor, seasonID int) ([]*models.Match, error) {
	return r.list(func(m *models.Match) bool { return m.SeasonID == seasonID && m.Ran }, func(a, b *models.Match) bool {
		if !a.RanAt.Equal(*b.RanAt) {
			return a.RanAt.Before(*b.RanAt)
		}
		return a.ID < b.ID
	}), nil
}

func (r *fakeMatchRepo) list(keep func(*models.Match) bool, less func(a, b *models.Match) bool) []*models.Match {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *fakeMatchRepo) RecordResult(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.matches[m.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	m.Ran = true
	cp := *m
	r.s.matches[m.ID] = &cp
	return nil
}

func (r *fakeMatchRepo) UpdateData(_ context.Context, _ repositories.SQLExecutor, id int, data models.MatchData) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Data = data
	return nil
}

func (r *fakeMatchRepo) ClearRatingsBySeason(_ context.Context, _ repositories.SQLExecutor, seasonID int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.matches {
		if m.SeasonID == seasonID {
			m.Data.ClearRatings()
			n++
		}
	}
	return n, nil
}

func (r *fakeMatchRepo) SetTaint(_ context.Context, _ repositories.SQLExecutor, id int, taint string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Taint = &taint
	return nil
}

// --- tournaments ---

type fakeTournamentRepo struct{ s *memStore }

func (r fakeTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tournaments {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.s.id()
	t.CreatedAt = time.Now()
	cp := *t
	cp.ParticipantIDs = nil
	r.s.tournaments[t.ID] = &cp
	r.s.participants[t.ID] = append([]int(nil), t.ParticipantIDs...)
	return nil
}

func (r fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r fakeTournamentRepo) ListParticipantIDs(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := append([]int(nil), r.s.participants[tournamentID]...)
	sort.Ints(ids)
	return ids, nil
}

func (r fakeTournamentRepo) list(keep func(*models.Tournament) bool) []*models.Tournament {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r fakeTournamentRepo) ListForSweep(_ context.Context) ([]*models.Tournament, error) {
	return r.list(func(t *models.Tournament) bool { return !t.Done || t.TrophiesAwardedAt == nil }), nil
}

func (r fakeTournamentRepo) ListDoneWithoutTrophies(_ context.Context) ([]*models.Tournament, error) {
	pending := map[int]bool{}
	r.s.mu.Lock()
	for _, m := range r.s.matches {
		if !m.Ran {
			pending[m.TournamentID] = true
		}
	}
	r.s.mu.Unlock()
	return r.list(func(t *models.Tournament) bool {
		return t.Done && t.TrophiesAwardedAt == nil && !pending[t.ID]
	}), nil
}

func (r fakeTournamentRepo) GetLastAutomated(_ context.Context, mode models.TournamentMode) (*models.Tournament, error) {
	var last *models.Tournament
	for _, t := range r.list(func(t *models.Tournament) bool {
		return t.IsAutomated && t.Mode == mode && t.AutomatedNumber != nil
	}) {
		if last == nil || *t.AutomatedNumber > *last.AutomatedNumber {
			last = t
		}
	}
	if last == nil {
		return nil, repositories.ErrTournamentNotFound
	}
	return last, nil
}

func (r fakeTournamentRepo) MarkDone(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Done = true
	return nil
}

func (r fakeTournamentRepo) MarkTrophiesAwarded(_ context.Context, _ repositories.SQLExecutor, id int, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.TrophiesAwardedAt = &at
	return nil
}

// --- trophies ---

type fakeTrophyRepo struct{ s *memStore }

func (r fakeTrophyRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := int64(len(r.s.trophies[tournamentID]))
	delete(r.s.trophies, tournamentID)
	return n, nil
}

func (r fakeTrophyRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, trophies []*models.Trophy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range trophies {
		for _, existing := range r.s.trophies[t.TournamentID] {
			if existing.AgentID == t.AgentID {
				return repositories.ErrTrophyConflict
			}
		}
		t.ID = r.s.id()
		cp := *t
		r.s.trophies[t.TournamentID] = append(r.s.trophies[t.TournamentID], &cp)
	}
	return nil
}

func (r fakeTrophyRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Trophy, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Trophy, 0, len(r.s.trophies[tournamentID]))
	for _, t := range r.s.trophies[tournamentID] {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// --- queue and events ---

type fakeQueue struct {
	mu         sync.Mutex
	batches    [][]int
	enqueueErr error
	next       []int
	dequeueErr error
	gameFilter *int
	killed     bool
	regenerate int
}

func (q *fakeQueue) EnqueueMany(_ context.Context, ids ...int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.batches = append(q.batches, append([]int(nil), ids...))
	return nil
}

func (q *fakeQueue) enqueued() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var all []int
	for _, b := range q.batches {
		all = append(all, b...)
	}
	return all
}

func (q *fakeQueue) DequeueNext(_ context.Context, gameID *int) (int, bool, queue.DequeueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gameFilter = gameID
	if q.dequeueErr != nil {
		return 0, false, queue.DequeueStats{}, q.dequeueErr
	}
	if q.killed || len(q.next) == 0 {
		return 0, false, queue.DequeueStats{Attempts: 1}, nil
	}
	id := q.next[0]
	q.next = q.next[1:]
	return id, true, queue.DequeueStats{Attempts: 1}, nil
}

func (q *fakeQueue) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.next)), q.dequeueErr
}

func (q *fakeQueue) Regenerate(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.regenerate, q.dequeueErr
}

func (q *fakeQueue) SetKillSwitch(_ context.Context, engaged bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.killed = engaged
	return q.dequeueErr
}

func (q *fakeQueue) KillSwitchEngaged(_ context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.killed, q.dequeueErr
}

type publishedEvent struct {
	TournamentID int
	Type         string
	Payload      interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(tournamentID int, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{tournamentID, eventType, payload})
}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// --- wiring ---

const (
	testGameID   = 1
	testSeasonID = 1
)

type testEnv struct {
	store       *memStore
	tx          *fakeTx
	queue       *fakeQueue
	events      *fakePublisher
	counters    *telemetry.Counters
	matchRepo   *fakeMatchRepo
	ratings     RatingService
	trophies    TrophyService
	tournaments TournamentService
	matches     MatchService
	dispatch    DispatchService
	seasons     SeasonService
	clock       time.Time
}

// newTestEnv wires every service against one in-memory store holding game 1
// ("chess"), main season 1 and the given agents of game 1.
func newTestEnv(agentIDs ...int) *testEnv {
	env := &testEnv{
		store:    newMemStore(),
		tx:       &fakeTx{},
		queue:    &fakeQueue{},
		events:   &fakePublisher{},
		counters: telemetry.NewCounters(),
		clock:    time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	env.store.addGame(testGameID, "chess")
	env.store.addSeason(testSeasonID, true)
	for _, id := range agentIDs {
		env.store.addAgent(id, testGameID)
	}

	env.matchRepo = &fakeMatchRepo{s: env.store}
	tournamentRepo := fakeTournamentRepo{s: env.store}
	seasonRepo := fakeSeasonRepo{s: env.store}
	ratingRepo := fakeRatingRepo{s: env.store}
	agentRepo := fakeAgentRepo{s: env.store}

	env.ratings = NewRatingService(env.tx, ratingRepo, env.matchRepo, seasonRepo, env.counters, discardLogger)
	trophies := NewTrophyService(env.tx, tournamentRepo, env.matchRepo, fakeTrophyRepo{s: env.store}, env.events, env.counters, discardLogger)
	trophies.(*trophyService).now = env.now
	env.trophies = trophies

	tournaments := NewTournamentService(env.tx, tournamentRepo, env.matchRepo, agentRepo, seasonRepo, env.trophies, env.queue, env.events, env.counters, discardLogger)
	tournaments.(*tournamentService).now = env.now
	env.tournaments = tournaments

	matches := NewMatchService(env.tx, env.matchRepo, env.ratings, env.events, env.counters, discardLogger)
	matches.(*matchService).now = env.now
	env.matches = matches

	env.dispatch = NewDispatchService(fakeGameRepo{s: env.store}, env.queue, env.tournaments, env.counters, discardLogger)
	env.seasons = NewSeasonService(env.tx, seasonRepo, agentRepo, ratingRepo, true, discardLogger)
	return env
}

func (e *testEnv) now() time.Time { return e.clock }

// addMatch stores a pending match between two agents of the test game.
func (e *testEnv) addMatch(tournamentID, p1, p2 int) int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	id := e.store.id()
	e.store.matches[id] = &models.Match{
		ID: id, TournamentID: tournamentID, GameID: testGameID, SeasonID: testSeasonID,
		Player1ID: p1, Player2ID: p2, CreatedAt: e.clock,
	}
	return id
}

// report plays a match with a duration so no anomaly is raised.
func (e *testEnv) report(matchID int, result float64, ranAt time.Time) (*models.Match, error) {
	return e.matches.ReportResult(context.Background(), matchID, ReportInput{
		Result:          &result,
		RanAt:           &ranAt,
		DurationSeconds: ptr(12.5),
	})
}

var errBoom = errors.New("boom")
