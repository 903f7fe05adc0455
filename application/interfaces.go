package application

import (
	"context"
	"time"

	"roulette/application/dto"
	"roulette/domain/entities"
)

// Ledger is the transactional side of the round engine. Every call runs in
// its own database transaction.
type Ledger interface {
	OpenRound(ctx context.Context) (*entities.Round, error)
	PlaceWager(ctx context.Context, roundID int64, request entities.WagerRequest) (*entities.Wager, int64, error)
	RecordOutcome(ctx context.Context, roundID int64, outcome entities.Outcome) error
	SettleRound(ctx context.Context, roundID int64, outcome entities.Outcome) (*entities.RoundSettlement, error)
	VoidRound(ctx context.Context, roundID int64) (*entities.RoundSettlement, error)

	// LatestRound returns the highest round, nil when none exists
	LatestRound(ctx context.Context) (*entities.Round, error)

	// RecentResults returns completed rounds, newest first
	RecentResults(ctx context.Context, limit int) ([]*entities.Round, error)
}

// RoundListener receives engine notifications. Implementations must not
// block; the engine calls them from its own goroutine and from wager
// submitters, never while holding its lock.
type RoundListener interface {
	RoundStarted(snapshot dto.RoundSnapshotDTO)
	Tick(phase entities.Phase, timeLeft int)
	OutcomeDrawn(roundID int64, outcomeIndex int)
	RoundResult(result dto.RoundResultDTO)
	WagersUpdated(roundID int64, wagers []dto.WagerView)
	BalanceUpdated(accountID int64, balance int64)
	WinNotice(accountID int64, roundID int64, amount int64)
}

// EngineMetrics records round engine activity
type EngineMetrics interface {
	RecordWagerAccepted(category string, amount int64)
	RecordWagerRejected(reason string)
	RecordRoundSettled(category string, duration time.Duration, wagers int)
	RecordSettlementFailure(attempt int, transient bool)
}

// NoopRoundListener discards every notification
type NoopRoundListener struct{}

func (NoopRoundListener) RoundStarted(dto.RoundSnapshotDTO) {}
func (NoopRoundListener) Tick(entities.Phase, int) {}
func (NoopRoundListener) OutcomeDrawn(int64, int) {}
func (NoopRoundListener) RoundResult(dto.RoundResultDTO) {}
func (NoopRoundListener) WagersUpdated(int64, []dto.WagerView) {}
func (NoopRoundListener) BalanceUpdated(int64, int64) {}
func (NoopRoundListener) WinNotice(int64, int64, int64) {}

type noopMetrics struct{}

func (noopMetrics) RecordWagerAccepted(string, int64) {}
func (noopMetrics) RecordWagerRejected(string) {}
func (noopMetrics) RecordRoundSettled(string, time.Duration, int) {}
func (noopMetrics) RecordSettlementFailure(int, bool) {}
