package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"roulette/application/dto"
	"roulette/domain/entities"
	"roulette/domain/services"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fixedRandomizer always lands on the same sector index
type fixedRandomizer struct {
	index int
}

func (f fixedRandomizer) Intn(n int) int {
	return f.index % n
}

// Default wheel sector indexes by category
const (
	greenIndex = 0
	redIndex   = 1
	blackIndex = 2
)

func testEngineConfig() EngineConfig {
	return EngineConfig{
		MinBet:                10,
		MaxBet:                10000,
		BettingDuration:       25 * time.Second,
		SpinDuration:          8 * time.Second,
		ResultDuration:        5 * time.Second,
		TickInterval:          time.Second,
		HistorySize:           15,
		SettlementMaxAttempts: 3,
		SettlementRetryDelay:  time.Millisecond,
	}
}

func newTestEngine(t *testing.T, ledger Ledger, outcomeIndex int) (*RoundEngine, *recordingListener) {
	t.Helper()

	generator, err := services.NewOutcomeGenerator(entities.DefaultWheel(), fixedRandomizer{index: outcomeIndex})
	require.NoError(t, err)

	listener := newRecordingListener()
	engine := NewRoundEngine(testEngineConfig(), ledger, generator, listener, nil)
	return engine, listener
}

// fakeLedger is an in-memory ledger that settles with the real settlement
// rules
type fakeLedger struct {
	mu          sync.Mutex
	wheel       *entities.Wheel
	balances    map[int64]int64
	rounds      map[int64]*entities.Round
	latest      int64
	wagers      []*entities.Wager
	nextWagerID int64
}

func newFakeLedger(balances map[int64]int64) *fakeLedger {
	if balances == nil {
		balances = make(map[int64]int64)
	}
	return &fakeLedger{
		wheel:    entities.DefaultWheel(),
		balances: balances,
		rounds:   make(map[int64]*entities.Round),
	}
}

func (f *fakeLedger) OpenRound(ctx context.Context) (*entities.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest++
	round := &entities.Round{ID: f.latest, Status: entities.RoundStatusBetting, CreatedAt: time.Now()}
	f.rounds[round.ID] = round
	copied := *round
	return &copied, nil
}

func (f *fakeLedger) PlaceWager(ctx context.Context, roundID int64, request entities.WagerRequest) (*entities.Wager, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.balances[request.AccountID] < request.Amount {
		return nil, 0, entities.Reject(entities.ReasonInsufficientFunds, "insufficient balance")
	}
	f.balances[request.AccountID] -= request.Amount

	f.nextWagerID++
	wager := &entities.Wager{
		ID:        f.nextWagerID,
		AccountID: request.AccountID,
		Username:  request.Username,
		RoundID:   roundID,
		Category:  request.Category,
		Amount:    request.Amount,
	}
	f.wagers = append(f.wagers, wager)
	copied := *wager
	return &copied, f.balances[request.AccountID], nil
}

func (f *fakeLedger) RecordOutcome(ctx context.Context, roundID int64, outcome entities.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	round := f.rounds[roundID]
	round.Status = entities.RoundStatusSpinning
	round.Outcome = &outcome
	return nil
}

func (f *fakeLedger) SettleRound(ctx context.Context, roundID int64, outcome entities.Outcome) (*entities.RoundSettlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	round := f.rounds[roundID]
	if round.Status == entities.RoundStatusCompleted {
		return &entities.RoundSettlement{Round: round, Balances: map[int64]int64{}}, nil
	}

	roundWagers := f.wagersForRoundLocked(roundID)
	wagerResults, accountResults := services.ComputeSettlement(roundWagers, outcome, f.wheel)

	byID := make(map[int64]*entities.Wager, len(roundWagers))
	for _, wager := range roundWagers {
		byID[wager.ID] = wager
	}
	for _, result := range wagerResults {
		won := result.Won
		byID[result.WagerID].Won = &won
		byID[result.WagerID].Payout = result.Payout
	}

	balances := make(map[int64]int64)
	for _, account := range accountResults {
		f.balances[account.AccountID] += account.Credit
		balances[account.AccountID] = f.balances[account.AccountID]
	}

	round.Status = entities.RoundStatusCompleted
	round.Outcome = &outcome
	for _, wager := range roundWagers {
		round.TotalStaked += wager.Amount
		round.TotalPayout += wager.Payout
	}

	return &entities.RoundSettlement{
		Round:    round,
		Wagers:   wagerResults,
		Accounts: accountResults,
		Balances: balances,
	}, nil
}

func (f *fakeLedger) VoidRound(ctx context.Context, roundID int64) (*entities.RoundSettlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	round := f.rounds[roundID]
	if round.IsFinal() {
		return &entities.RoundSettlement{Round: round, Balances: map[int64]int64{}}, nil
	}

	settlement := &entities.RoundSettlement{Round: round, Balances: map[int64]int64{}}
	for _, wager := range f.wagersForRoundLocked(roundID) {
		if wager.IsSettled() {
			continue
		}
		lost := false
		wager.Won = &lost
		wager.Payout = wager.Amount
		f.balances[wager.AccountID] += wager.Amount
		settlement.Balances[wager.AccountID] = f.balances[wager.AccountID]
		settlement.Wagers = append(settlement.Wagers, entities.WagerSettlement{
			WagerID:   wager.ID,
			AccountID: wager.AccountID,
			Payout:    wager.Amount,
		})
	}
	round.Status = entities.RoundStatusVoid
	return settlement, nil
}

func (f *fakeLedger) LatestRound(ctx context.Context) (*entities.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	round, ok := f.rounds[f.latest]
	if !ok {
		return nil, nil
	}
	copied := *round
	return &copied, nil
}

func (f *fakeLedger) RecentResults(ctx context.Context, limit int) ([]*entities.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rounds []*entities.Round
	for id := f.latest; id > 0 && len(rounds) < limit; id-- {
		if round, ok := f.rounds[id]; ok && round.Status == entities.RoundStatusCompleted {
			copied := *round
			rounds = append(rounds, &copied)
		}
	}
	return rounds, nil
}

func (f *fakeLedger) wagersForRoundLocked(roundID int64) []*entities.Wager {
	var wagers []*entities.Wager
	for _, wager := range f.wagers {
		if wager.RoundID == roundID {
			wagers = append(wagers, wager)
		}
	}
	return wagers
}

func (f *fakeLedger) balance(accountID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[accountID]
}

func (f *fakeLedger) wagersForRound(roundID int64) []entities.Wager {
	f.mu.Lock()
	defer f.mu.Unlock()

	var wagers []entities.Wager
	for _, wager := range f.wagersForRoundLocked(roundID) {
		wagers = append(wagers, *wager)
	}
	return wagers
}

func (f *fakeLedger) round(roundID int64) entities.Round {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rounds[roundID]
}

func (f *fakeLedger) latestID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// MockLedger is a testify mock of Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) OpenRound(ctx context.Context) (*entities.Round, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Round), args.Error(1)
}

func (m *MockLedger) PlaceWager(ctx context.Context, roundID int64, request entities.WagerRequest) (*entities.Wager, int64, error) {
	args := m.Called(ctx, roundID, request)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).(*entities.Wager), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedger) RecordOutcome(ctx context.Context, roundID int64, outcome entities.Outcome) error {
	args := m.Called(ctx, roundID, outcome)
	return args.Error(0)
}

func (m *MockLedger) SettleRound(ctx context.Context, roundID int64, outcome entities.Outcome) (*entities.RoundSettlement, error) {
	args := m.Called(ctx, roundID, outcome)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RoundSettlement), args.Error(1)
}

func (m *MockLedger) VoidRound(ctx context.Context, roundID int64) (*entities.RoundSettlement, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RoundSettlement), args.Error(1)
}

func (m *MockLedger) LatestRound(ctx context.Context) (*entities.Round, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Round), args.Error(1)
}

func (m *MockLedger) RecentResults(ctx context.Context, limit int) ([]*entities.Round, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Round), args.Error(1)
}

type winNotice struct {
	AccountID int64
	RoundID   int64
	Amount    int64
}

// recordingListener keeps every notification for assertions
type recordingListener struct {
	mu            sync.Mutex
	started       []dto.RoundSnapshotDTO
	ticks         []int
	drawn         []int
	results       []dto.RoundResultDTO
	wagerUpdates  [][]dto.WagerView
	balances      map[int64]int64
	balanceEvents int
	wins          []winNotice
}

func newRecordingListener() *recordingListener {
	return &recordingListener{balances: make(map[int64]int64)}
}

func (r *recordingListener) RoundStarted(snapshot dto.RoundSnapshotDTO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, snapshot)
}

func (r *recordingListener) Tick(phase entities.Phase, timeLeft int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, timeLeft)
}

func (r *recordingListener) OutcomeDrawn(roundID int64, outcomeIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawn = append(r.drawn, outcomeIndex)
}

func (r *recordingListener) RoundResult(result dto.RoundResultDTO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingListener) WagersUpdated(roundID int64, wagers []dto.WagerView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wagerUpdates = append(r.wagerUpdates, wagers)
}

func (r *recordingListener) BalanceUpdated(accountID int64, balance int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[accountID] = balance
	r.balanceEvents++
}

func (r *recordingListener) WinNotice(accountID int64, roundID int64, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wins = append(r.wins, winNotice{AccountID: accountID, RoundID: roundID, Amount: amount})
}

func (r *recordingListener) lastBalance(accountID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	balance, ok := r.balances[accountID]
	return balance, ok
}

func (r *recordingListener) winNotices() []winNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]winNotice(nil), r.wins...)
}

func (r *recordingListener) roundResults() []dto.RoundResultDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dto.RoundResultDTO(nil), r.results...)
}
