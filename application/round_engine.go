package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"roulette/application/dto"
	"roulette/config"
	"roulette/database"
	"roulette/domain/entities"
	"roulette/domain/services"

	log "github.com/sirupsen/logrus"
)

// MaxCategoriesPerRound is how many distinct categories one account may back
// in a single round
const MaxCategoriesPerRound = 2

// ErrSettlementHalted is returned by Run after a round could not be settled.
// The engine stops accepting wagers until an operator restarts it.
var ErrSettlementHalted = errors.New("round engine halted after settlement failure")

// EngineConfig holds the round engine limits and timings
type EngineConfig struct {
	MinBet int64
	MaxBet int64

	BettingDuration time.Duration
	SpinDuration    time.Duration
	ResultDuration  time.Duration
	TickInterval    time.Duration
	HistorySize     int

	SettlementMaxAttempts int
	SettlementRetryDelay  time.Duration
}

// EngineConfigFromConfig extracts the engine settings from the application config
func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		MinBet:                cfg.MinBet,
		MaxBet:                cfg.MaxBet,
		BettingDuration:       cfg.BettingDuration,
		SpinDuration:          cfg.SpinDuration,
		ResultDuration:        cfg.ResultDuration,
		TickInterval:          cfg.TickInterval,
		HistorySize:           cfg.HistorySize,
		SettlementMaxAttempts: cfg.SettlementMaxAttempts,
		SettlementRetryDelay:  cfg.SettlementRetryDelay,
	}
}

// RoundEngine drives the BETTING -> SPINNING -> RESULT cycle and owns the
// live round state shared by every connection.
type RoundEngine struct {
	cfg       EngineConfig
	ledger    Ledger
	generator *services.OutcomeGenerator
	wheel     *entities.Wheel
	sectors   []dto.SectorView
	listener  RoundListener
	metrics   EngineMetrics

	mu         sync.Mutex
	phase      entities.Phase
	roundID    int64
	deadline   time.Time
	wagers     []dto.WagerView
	categories map[int64]map[entities.Category]struct{}
	outcome    *entities.Outcome
	recent     []dto.RecentResult
	halted     bool

	// reservations counts submissions that passed the phase check and have
	// not finished yet. The draw waits for them.
	reservations sync.WaitGroup
	accountLocks *keyedMutex
	now          func() time.Time
}

// NewRoundEngine creates an engine. A nil listener or metrics discards
// notifications.
func NewRoundEngine(cfg EngineConfig, ledger Ledger, generator *services.OutcomeGenerator, listener RoundListener, metrics EngineMetrics) *RoundEngine {
	if listener == nil {
		listener = NoopRoundListener{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if cfg.SettlementMaxAttempts <= 0 {
		cfg.SettlementMaxAttempts = 1
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 15
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}

	wheel := generator.Wheel()
	return &RoundEngine{
		cfg:          cfg,
		ledger:       ledger,
		generator:    generator,
		wheel:        wheel,
		sectors:      dto.WheelToSectorViews(wheel),
		listener:     listener,
		metrics:      metrics,
		phase:        entities.PhaseResult,
		categories:   make(map[int64]map[entities.Category]struct{}),
		accountLocks: newKeyedMutex(),
		now:          time.Now,
	}
}

// SetListener replaces the listener. It must be called before Run.
func (e *RoundEngine) SetListener(listener RoundListener) {
	if listener == nil {
		listener = NoopRoundListener{}
	}
	e.listener = listener
}

// Run recovers any interrupted round and then cycles rounds until ctx is
// cancelled. Cancellation during betting voids the open round; cancellation
// while spinning settles the round before returning.
func (e *RoundEngine) Run(ctx context.Context) error {
	if err := e.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover interrupted round: %w", err)
	}
	e.loadRecentResults(ctx)

	log.WithFields(log.Fields{
		"bettingDuration": e.cfg.BettingDuration,
		"spinDuration":    e.cfg.SpinDuration,
		"resultDuration":  e.cfg.ResultDuration,
		"sectors":         len(e.sectors),
	}).Info("Round engine started")

	for {
		if ctx.Err() != nil {
			log.Info("Round engine shutting down (context cancelled)...")
			return nil
		}

		if err := e.startRound(ctx); err != nil {
			log.WithError(err).Error("Failed to start round, retrying")
			if !e.wait(ctx, e.cfg.ResultDuration) {
				return nil
			}
			continue
		}

		if !e.runBetting(ctx) {
			e.abortRound(ctx)
			log.Info("Round engine shutting down (context cancelled)...")
			return nil
		}

		e.closeBetting(ctx)
		spun := e.wait(ctx, e.cfg.SpinDuration)

		if err := e.finishSpin(ctx); err != nil {
			<-ctx.Done()
			return err
		}

		if !spun || !e.wait(ctx, e.cfg.ResultDuration) {
			log.Info("Round engine shutting down (context cancelled)...")
			return nil
		}
	}
}

// Recover resolves a round left open by a previous process. A round whose
// outcome was already drawn is settled with it; any other open round is
// voided and its stakes refunded.
func (e *RoundEngine) Recover(ctx context.Context) error {
	latest, err := e.ledger.LatestRound(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest round: %w", err)
	}
	if latest == nil || latest.IsFinal() {
		return nil
	}

	logger := log.WithFields(log.Fields{
		"roundID": latest.ID,
		"status":  latest.Status,
	})

	if latest.Status == entities.RoundStatusSpinning && latest.Outcome != nil {
		settlement, err := e.settleWithRetry(ctx, latest.ID, *latest.Outcome)
		if err != nil {
			return fmt.Errorf("failed to settle round %d: %w", latest.ID, err)
		}
		logger.WithField("accounts", len(settlement.Accounts)).Info("Settled interrupted round with its drawn outcome")
		return nil
	}

	settlement, err := e.ledger.VoidRound(ctx, latest.ID)
	if err != nil {
		return fmt.Errorf("failed to void round %d: %w", latest.ID, err)
	}
	logger.WithField("refunds", len(settlement.Wagers)).Info("Voided interrupted round")
	return nil
}

// SubmitWager validates a request against the live round and places it.
// Rejections are *entities.RejectionError values. On success the wager and
// the account balance after the stake are returned.
func (e *RoundEngine) SubmitWager(ctx context.Context, request entities.WagerRequest) (*entities.Wager, int64, error) {
	wager, balance, err := e.submitWager(ctx, request)
	if err != nil {
		var rejection *entities.RejectionError
		if errors.As(err, &rejection) {
			e.metrics.RecordWagerRejected(string(rejection.Reason))
		}
		return nil, 0, err
	}
	e.metrics.RecordWagerAccepted(string(wager.Category), wager.Amount)
	return wager, balance, nil
}

func (e *RoundEngine) submitWager(ctx context.Context, request entities.WagerRequest) (*entities.Wager, int64, error) {
	if request.AccountID == 0 {
		return nil, 0, entities.Reject(entities.ReasonUnauthenticated, "sign in to place wagers")
	}

	e.mu.Lock()
	if e.phase != entities.PhaseBetting || e.halted {
		e.mu.Unlock()
		return nil, 0, entities.Reject(entities.ReasonPhaseClosed, "betting is closed")
	}
	roundID := e.roundID
	e.reservations.Add(1)
	e.mu.Unlock()
	defer e.reservations.Done()

	if request.Amount < e.cfg.MinBet || request.Amount > e.cfg.MaxBet {
		return nil, 0, entities.Reject(entities.ReasonInvalidStake, "stake must be between %d and %d", e.cfg.MinBet, e.cfg.MaxBet)
	}
	if !e.wheel.HasCategory(request.Category) {
		return nil, 0, entities.Reject(entities.ReasonInvalidCategory, "unknown category %q", request.Category)
	}

	unlock := e.accountLocks.Lock(request.AccountID)
	defer unlock()

	e.mu.Lock()
	placed := e.categories[request.AccountID]
	_, backed := placed[request.Category]
	tooMany := !backed && len(placed) >= MaxCategoriesPerRound
	e.mu.Unlock()
	if tooMany {
		return nil, 0, entities.Reject(entities.ReasonTooManyCategories, "at most %d categories per round", MaxCategoriesPerRound)
	}

	// Once the debit starts it must land in the live round too, so a
	// dropped connection cannot abandon it mid-transaction
	wager, balance, err := e.ledger.PlaceWager(context.WithoutCancel(ctx), roundID, request)
	if err != nil {
		if errors.Is(err, entities.ErrInsufficientFunds) {
			return nil, 0, err
		}
		log.WithFields(log.Fields{
			"roundID":   roundID,
			"accountID": request.AccountID,
		}).WithError(err).Error("Failed to place wager")
		return nil, 0, fmt.Errorf("failed to place wager: %w", err)
	}

	e.mu.Lock()
	categories := e.categories[request.AccountID]
	if categories == nil {
		categories = make(map[entities.Category]struct{}, MaxCategoriesPerRound)
		e.categories[request.AccountID] = categories
	}
	categories[request.Category] = struct{}{}
	e.wagers = append(e.wagers, dto.WagerToView(wager))
	wagers := append([]dto.WagerView(nil), e.wagers...)
	e.mu.Unlock()

	e.listener.WagersUpdated(roundID, wagers)
	e.listener.BalanceUpdated(request.AccountID, balance)

	return wager, balance, nil
}

// Snapshot returns a copy of the live round state
func (e *RoundEngine) Snapshot() dto.RoundSnapshotDTO {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Halted reports whether a settlement failure stopped the engine
func (e *RoundEngine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

func (e *RoundEngine) snapshotLocked() dto.RoundSnapshotDTO {
	snapshot := dto.RoundSnapshotDTO{
		Phase:         e.phase,
		TimeLeft:      e.timeLeftLocked(),
		RoundID:       e.roundID,
		Wagers:        append([]dto.WagerView{}, e.wagers...),
		RecentResults: append([]dto.RecentResult{}, e.recent...),
		Sectors:       e.sectors,
		Multipliers:   e.wheel.Multipliers,
		MinBet:        e.cfg.MinBet,
		MaxBet:        e.cfg.MaxBet,
	}
	if e.outcome != nil && e.phase != entities.PhaseBetting {
		index := e.outcome.Index
		snapshot.OutcomeIndex = &index
	}
	return snapshot
}

func (e *RoundEngine) timeLeftLocked() int {
	remaining := e.deadline.Sub(e.now())
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// startRound opens the next round and enters BETTING
func (e *RoundEngine) startRound(ctx context.Context) error {
	round, err := e.ledger.OpenRound(ctx)
	if err != nil {
		return fmt.Errorf("failed to open round: %w", err)
	}

	e.mu.Lock()
	e.roundID = round.ID
	e.phase = entities.PhaseBetting
	e.deadline = e.now().Add(e.cfg.BettingDuration)
	e.wagers = nil
	e.categories = make(map[int64]map[entities.Category]struct{})
	e.outcome = nil
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	log.WithField("roundID", round.ID).Debug("Round started")
	e.listener.RoundStarted(snapshot)
	return nil
}

// runBetting ticks until the betting window closes. It returns false when
// ctx was cancelled first.
func (e *RoundEngine) runBetting(ctx context.Context) bool {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	timer := time.NewTimer(e.cfg.BettingDuration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			e.mu.Lock()
			timeLeft := e.timeLeftLocked()
			e.mu.Unlock()
			e.listener.Tick(entities.PhaseBetting, timeLeft)
		}
	}
}

// closeBetting moves to SPINNING, waits for in-flight submissions and draws
// the outcome
func (e *RoundEngine) closeBetting(ctx context.Context) entities.Outcome {
	e.mu.Lock()
	e.phase = entities.PhaseSpinning
	e.deadline = e.now().Add(e.cfg.SpinDuration)
	roundID := e.roundID
	e.mu.Unlock()

	e.reservations.Wait()

	outcome := e.generator.Draw()
	if err := e.ledger.RecordOutcome(context.WithoutCancel(ctx), roundID, outcome); err != nil {
		log.WithFields(log.Fields{
			"roundID": roundID,
			"outcome": outcome.Number,
		}).WithError(err).Warn("Failed to persist drawn outcome")
	}

	e.mu.Lock()
	e.outcome = &outcome
	e.mu.Unlock()

	log.WithFields(log.Fields{
		"roundID":  roundID,
		"outcome":  outcome.Number,
		"category": outcome.Category,
	}).Debug("Outcome drawn")
	e.listener.OutcomeDrawn(roundID, outcome.Index)
	return outcome
}

// finishSpin moves to RESULT, settles the round and announces the result
func (e *RoundEngine) finishSpin(ctx context.Context) error {
	e.mu.Lock()
	e.phase = entities.PhaseResult
	e.deadline = e.now().Add(e.cfg.ResultDuration)
	roundID := e.roundID
	outcome := *e.outcome
	wagerCount := len(e.wagers)
	e.mu.Unlock()

	start := time.Now()
	settlement, err := e.settleWithRetry(ctx, roundID, outcome)
	if err != nil {
		e.mu.Lock()
		e.halted = true
		e.mu.Unlock()
		log.WithFields(log.Fields{
			"roundID": roundID,
			"outcome": outcome.Number,
		}).WithError(err).Error("Settlement failed, round engine halted")
		return fmt.Errorf("%w: round %d: %v", ErrSettlementHalted, roundID, err)
	}
	e.metrics.RecordRoundSettled(string(outcome.Category), time.Since(start), wagerCount)

	e.mu.Lock()
	e.recent = append([]dto.RecentResult{{
		RoundID:  roundID,
		Number:   outcome.Number,
		Category: outcome.Category,
	}}, e.recent...)
	if len(e.recent) > e.cfg.HistorySize {
		e.recent = e.recent[:e.cfg.HistorySize]
	}
	recent := append([]dto.RecentResult(nil), e.recent...)
	e.mu.Unlock()

	result := dto.RoundResultDTO{
		RoundID:       roundID,
		OutcomeIndex:  outcome.Index,
		Number:        outcome.Number,
		Category:      outcome.Category,
		Winners:       []dto.WinnerView{},
		RecentResults: recent,
	}
	if settlement.Round != nil {
		result.TotalStaked = settlement.Round.TotalStaked
		result.TotalPayout = settlement.Round.TotalPayout
	}
	for _, account := range settlement.Accounts {
		if account.Credit > 0 {
			result.Winners = append(result.Winners, dto.WinnerView{AccountID: account.AccountID, Payout: account.Credit})
		}
	}
	e.listener.RoundResult(result)

	for _, account := range settlement.Accounts {
		if balance, ok := settlement.Balances[account.AccountID]; ok {
			e.listener.BalanceUpdated(account.AccountID, balance)
		}
		if account.Credit > 0 {
			e.listener.WinNotice(account.AccountID, roundID, account.Credit)
		}
	}

	return nil
}

// settleWithRetry settles on a context detached from cancellation so a
// shutdown cannot interrupt it. Only transient failures are retried.
func (e *RoundEngine) settleWithRetry(ctx context.Context, roundID int64, outcome entities.Outcome) (*entities.RoundSettlement, error) {
	settleCtx := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.SettlementMaxAttempts; attempt++ {
		settlement, err := e.ledger.SettleRound(settleCtx, roundID, outcome)
		if err == nil {
			return settlement, nil
		}
		lastErr = err

		transient := database.IsTransient(err)
		e.metrics.RecordSettlementFailure(attempt, transient)
		log.WithFields(log.Fields{
			"roundID":   roundID,
			"attempt":   attempt,
			"transient": transient,
		}).WithError(err).Warn("Settlement attempt failed")

		if !transient {
			break
		}
		if attempt < e.cfg.SettlementMaxAttempts {
			time.Sleep(e.cfg.SettlementRetryDelay * time.Duration(attempt))
		}
	}

	return nil, lastErr
}

// abortRound closes an open betting window on shutdown and refunds it
func (e *RoundEngine) abortRound(ctx context.Context) {
	e.mu.Lock()
	e.phase = entities.PhaseResult
	roundID := e.roundID
	e.mu.Unlock()

	e.reservations.Wait()

	settlement, err := e.ledger.VoidRound(context.WithoutCancel(ctx), roundID)
	if err != nil {
		log.WithField("roundID", roundID).WithError(err).Error("Failed to void round on shutdown, it will be voided on next start")
		return
	}

	accountIDs := make([]int64, 0, len(settlement.Balances))
	for accountID := range settlement.Balances {
		accountIDs = append(accountIDs, accountID)
	}
	sort.Slice(accountIDs, func(i, j int) bool { return accountIDs[i] < accountIDs[j] })
	for _, accountID := range accountIDs {
		e.listener.BalanceUpdated(accountID, settlement.Balances[accountID])
	}

	log.WithFields(log.Fields{
		"roundID": roundID,
		"refunds": len(settlement.Wagers),
	}).Info("Voided open round on shutdown")
}

func (e *RoundEngine) loadRecentResults(ctx context.Context) {
	rounds, err := e.ledger.RecentResults(ctx, e.cfg.HistorySize)
	if err != nil {
		log.WithError(err).Warn("Failed to load recent results")
		return
	}

	recent := make([]dto.RecentResult, 0, len(rounds))
	for _, round := range rounds {
		if result, ok := dto.RoundToRecentResult(round); ok {
			recent = append(recent, result)
		}
	}

	e.mu.Lock()
	e.recent = recent
	e.mu.Unlock()
}

// wait sleeps for d and returns false if ctx was cancelled first
func (e *RoundEngine) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
