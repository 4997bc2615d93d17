package economy

import (
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/wfunc/battleserver/logger"
	"github.com/wfunc/battleserver/models"
	"github.com/wfunc/battleserver/persistence"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeStore is an in-memory test double for persistence.Store.
type fakeStore struct {
	heroes  map[models.Rarity]models.HeroConfig
	ranks   map[string]float64
	latest  map[string]*models.DailyEarning
	match   []*models.MatchEarning
	dailies map[string]*models.DailyEarning
	players map[string]*models.Player

	failCreateFor string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		heroes:  testHeroConfigs(),
		ranks:   map[string]float64{"sentinel": 0.1, "gold": 0.5},
		latest:  make(map[string]*models.DailyEarning),
		dailies: make(map[string]*models.DailyEarning),
		players: make(map[string]*models.Player),
	}
}

func (s *fakeStore) SaveBattle(b *models.Battle) error            { return nil }
func (s *fakeStore) UpdateBattle(b *models.Battle) error          { return nil }
func (s *fakeStore) LoadBattle(id string) (*models.Battle, error) { return nil, persistence.ErrRecordNotFound }
func (s *fakeStore) Close() error                                 { return nil }

func (s *fakeStore) HeroConfigs() (map[models.Rarity]models.HeroConfig, error) {
	return s.heroes, nil
}

func (s *fakeStore) RankConfig(rank string) (*models.RankConfig, error) {
	modifier, ok := s.ranks[rank]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	return &models.RankConfig{Rank: rank, Modifier: modifier}, nil
}

func (s *fakeStore) CreateMatchEarning(e *models.MatchEarning) error {
	if e.PlayerID == s.failCreateFor {
		return fmt.Errorf("simulated write failure")
	}
	day := models.Day(e.CreatedAt)
	max := 0
	for _, existing := range s.match {
		if existing.PlayerID == e.PlayerID && models.Day(existing.CreatedAt).Equal(day) && existing.GameNumber > max {
			max = existing.GameNumber
		}
	}
	e.GameNumber = max + 1
	s.match = append(s.match, e)
	return nil
}

func (s *fakeStore) MatchEarnings(playerID string, day time.Time) ([]models.MatchEarning, error) {
	var out []models.MatchEarning
	for _, e := range s.match {
		if e.PlayerID == playerID && models.Day(e.CreatedAt).Equal(models.Day(day)) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) LatestDailyEarning(playerID string) (*models.DailyEarning, error) {
	latest, ok := s.latest[playerID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	return latest, nil
}

func (s *fakeStore) UpsertDailyEarning(e *models.DailyEarning) error {
	key := e.PlayerID + "|" + e.Day.Format("2006-01-02")
	if existing, ok := s.dailies[key]; ok {
		existing.Rank = e.Rank
		existing.WinStreak = e.WinStreak
		existing.HeroesUsed = e.HeroesUsed
		existing.TotalFragment += e.TotalFragment
		existing.TotalDailyEarning += e.TotalDailyEarning
	} else {
		copied := *e
		s.dailies[key] = &copied
	}
	s.latest[e.PlayerID] = s.dailies[key]
	return nil
}

func (s *fakeStore) GetPlayer(playerID string) (*models.Player, error) {
	p, ok := s.players[playerID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	return p, nil
}

func (s *fakeStore) CreditPlayer(playerID string, amount float64, at time.Time) error {
	p, ok := s.players[playerID]
	if !ok {
		p = &models.Player{WalletAddress: playerID}
		s.players[playerID] = p
	}
	p.TotalEarning += amount
	p.LastActive = at
	return nil
}

func commonTeam() []*models.Combatant {
	return []*models.Combatant{
		{Name: "ash", Rarity: models.RarityCommon, Level: 1},
		{Name: "brel", Rarity: models.RarityCommon, Level: 1},
		{Name: "cyra", Rarity: models.RarityCommon, Level: 1},
	}
}

func finishedBattle(winner, loser string) *models.Battle {
	return &models.Battle{
		ID:    "battle-1",
		Mode:  models.ModePVP,
		State: models.BattleFinished,
		Players: []models.BattlePlayer{
			{User: winner, Team: commonTeam(), IsWinner: true},
			{User: loser, Team: commonTeam(), IsWinner: false},
		},
	}
}

func TestPipeline_WinExtendsStreak(t *testing.T) {
	store := newFakeStore()
	store.latest["0xwin"] = &models.DailyEarning{
		PlayerID: "0xwin", Rank: "gold", WinStreak: 2,
	}
	pipeline := NewPipeline(store)

	settlements, err := pipeline.Settle(finishedBattle("0xwin", "0xlose"))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	winner := settlements[0]
	if winner.Err != nil {
		t.Fatalf("Winner settlement failed: %v", winner.Err)
	}
	// streak 2 -> 3: skill fragment 7, booster 2, rank modifier 0.5
	if !almostEqual(winner.Earning.SkillFragment, 7) {
		t.Errorf("Expected skill fragment 7, got %v", winner.Earning.SkillFragment)
	}
	if winner.Earning.Booster != 2 {
		t.Errorf("Expected booster 2, got %v", winner.Earning.Booster)
	}
	want := winner.Earning.EconomicFragment * 7 * 2 * 0.5
	if math.Abs(winner.Earning.TotalFragment-want) > 1e-9 {
		t.Errorf("Expected total fragment %v, got %v", want, winner.Earning.TotalFragment)
	}

	daily := store.latest["0xwin"]
	if daily.WinStreak != 3 {
		t.Errorf("Expected daily win streak 3, got %d", daily.WinStreak)
	}
}

func TestPipeline_LossResetsStreak(t *testing.T) {
	store := newFakeStore()
	store.latest["0xlose"] = &models.DailyEarning{
		PlayerID: "0xlose", Rank: "gold", WinStreak: 5,
	}
	pipeline := NewPipeline(store)

	settlements, err := pipeline.Settle(finishedBattle("0xwin", "0xlose"))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	loser := settlements[1]
	if loser.Err != nil {
		t.Fatalf("Loser settlement failed: %v", loser.Err)
	}
	if loser.Earning.WinCount != 0 {
		t.Errorf("Expected win count 0, got %d", loser.Earning.WinCount)
	}
	if store.latest["0xlose"].WinStreak != 0 {
		t.Errorf("Expected streak reset to 0, got %d", store.latest["0xlose"].WinStreak)
	}
	// Streak 0 falls through to the table's highest tier.
	if !almostEqual(loser.Earning.SkillFragment, 21) {
		t.Errorf("Expected skill fragment 21 for streak 0, got %v", loser.Earning.SkillFragment)
	}
	if loser.Earning.Booster != 1 {
		t.Errorf("Expected booster 1 for streak 0, got %v", loser.Earning.Booster)
	}
}

func TestPipeline_GameNumberSequence(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(store)

	for i := 0; i < 2; i++ {
		if _, err := pipeline.Settle(finishedBattle("0xwin", "0xlose")); err != nil {
			t.Fatalf("Settle %d failed: %v", i, err)
		}
	}

	earnings, _ := store.MatchEarnings("0xwin", time.Now())
	if len(earnings) != 2 {
		t.Fatalf("Expected 2 match earnings, got %d", len(earnings))
	}
	if earnings[0].GameNumber != 1 || earnings[1].GameNumber != 2 {
		t.Errorf("Expected game numbers 1,2 got %d,%d", earnings[0].GameNumber, earnings[1].GameNumber)
	}
}

func TestPipeline_UnconfiguredRankEarnsNothing(t *testing.T) {
	store := newFakeStore()
	store.ranks = map[string]float64{} // no ranks configured at all
	pipeline := NewPipeline(store)

	settlements, err := pipeline.Settle(finishedBattle("0xwin", "0xlose"))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	for _, s := range settlements {
		if s.Err != nil {
			t.Fatalf("Settlement for %s failed: %v", s.PlayerID, s.Err)
		}
		if s.Earning.RankModifier != 0 {
			t.Errorf("Expected rank modifier 0, got %v", s.Earning.RankModifier)
		}
		if s.Earning.TotalFragment != 0 {
			t.Errorf("Expected zero total fragment, got %v", s.Earning.TotalFragment)
		}
	}
}

func TestPipeline_FailureDoesNotAbortSiblings(t *testing.T) {
	store := newFakeStore()
	store.failCreateFor = "0xwin"
	pipeline := NewPipeline(store)

	settlements, err := pipeline.Settle(finishedBattle("0xwin", "0xlose"))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	if settlements[0].Err == nil {
		t.Error("Expected the winner's settlement to fail")
	}
	if settlements[1].Err != nil {
		t.Errorf("Loser settlement should have succeeded, got %v", settlements[1].Err)
	}
	if store.players["0xlose"] == nil {
		t.Error("Loser's player aggregate was not updated")
	}
}

func TestPipeline_CreditsPlayerAggregate(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(store)

	settlements, err := pipeline.Settle(finishedBattle("0xwin", "0xlose"))
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	p := store.players["0xwin"]
	if p == nil {
		t.Fatal("Winner's player aggregate missing")
	}
	if math.Abs(p.TotalEarning-settlements[0].Earning.TotalFragment) > 1e-9 {
		t.Errorf("Expected total earning %v, got %v", settlements[0].Earning.TotalFragment, p.TotalEarning)
	}
	if p.LastActive.IsZero() {
		t.Error("Expected lastActive to be set")
	}
}

func TestPipeline_DailyLedgerAccumulates(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(store)

	if _, err := pipeline.Settle(finishedBattle("0xwin", "0xlose")); err != nil {
		t.Fatalf("First settle failed: %v", err)
	}
	first := store.latest["0xwin"].TotalFragment
	if _, err := pipeline.Settle(finishedBattle("0xwin", "0xlose")); err != nil {
		t.Fatalf("Second settle failed: %v", err)
	}

	daily := store.latest["0xwin"]
	if daily.TotalFragment <= first {
		t.Errorf("Expected accumulated total fragment > %v, got %v", first, daily.TotalFragment)
	}
	if math.Abs(daily.TotalDailyEarning-daily.TotalFragment*10) > 1e-9 {
		t.Errorf("Expected totalDailyEarning = 10x totalFragment, got %v vs %v",
			daily.TotalDailyEarning, daily.TotalFragment)
	}
	if daily.WinStreak != 2 {
		t.Errorf("Expected streak 2 after two wins, got %d", daily.WinStreak)
	}
}

func TestPipeline_RejectsInvalidBattles(t *testing.T) {
	pipeline := NewPipeline(newFakeStore())

	pending := finishedBattle("0xwin", "0xlose")
	pending.State = models.BattleActive
	if _, err := pipeline.Settle(pending); !errors.Is(err, ErrBattleNotFinished) {
		t.Errorf("Expected ErrBattleNotFinished, got %v", err)
	}

	short := finishedBattle("0xwin", "0xlose")
	short.State = models.BattleFinished
	short.Players = short.Players[:1]
	if _, err := pipeline.Settle(short); !errors.Is(err, ErrTooFewPlayers) {
		t.Errorf("Expected ErrTooFewPlayers, got %v", err)
	}
}
