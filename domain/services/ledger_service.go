package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roulette/domain/entities"
	"roulette/domain/interfaces"
	"roulette/domain/utils"
	"roulette/events"

	log "github.com/sirupsen/logrus"
)

// ErrRoundNotFound is returned when a round operation names an unknown round
var ErrRoundNotFound = errors.New("round not found")

// ErrRoundVoided is returned when settling a round that was cancelled
var ErrRoundVoided = errors.New("round was voided")

type ledgerService struct {
	accountRepo        interfaces.AccountRepository
	wagerRepo          interfaces.WagerRepository
	roundRepo          interfaces.RoundRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	wheel              *entities.Wheel
}

// NewLedgerService creates a ledger bound to one set of repositories,
// normally the ones of a single unit of work.
func NewLedgerService(
	accountRepo interfaces.AccountRepository,
	wagerRepo interfaces.WagerRepository,
	roundRepo interfaces.RoundRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	wheel *entities.Wheel,
) interfaces.LedgerService {
	return &ledgerService{
		accountRepo:        accountRepo,
		wagerRepo:          wagerRepo,
		roundRepo:          roundRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		wheel:              wheel,
	}
}

func (s *ledgerService) OpenRound(ctx context.Context) (*entities.Round, error) {
	latest, err := s.roundRepo.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest round: %w", err)
	}

	nextID := int64(1)
	if latest != nil {
		nextID = latest.ID + 1
	}

	round := &entities.Round{
		ID:     nextID,
		Status: entities.RoundStatusBetting,
	}
	if err := s.roundRepo.Create(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to create round %d: %w", nextID, err)
	}

	return round, nil
}

func (s *ledgerService) PlaceWager(ctx context.Context, roundID int64, request entities.WagerRequest) (*entities.Wager, int64, error) {
	if request.AccountID == 0 {
		return nil, 0, entities.ErrUnauthenticated
	}
	if request.Amount <= 0 {
		return nil, 0, entities.Reject(entities.ReasonInvalidStake, "amount must be positive")
	}

	newBalance, err := s.accountRepo.Debit(ctx, request.AccountID, request.Amount)
	if err != nil {
		if errors.Is(err, entities.ErrInsufficientFunds) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("failed to debit stake: %w", err)
	}

	wager := &entities.Wager{
		AccountID: request.AccountID,
		Username:  request.Username,
		RoundID:   roundID,
		Category:  request.Category,
		Amount:    request.Amount,
	}
	if err := s.wagerRepo.Create(ctx, wager); err != nil {
		return nil, 0, fmt.Errorf("failed to create wager: %w", err)
	}

	history := &entities.BalanceHistory{
		AccountID:       request.AccountID,
		BalanceBefore:   newBalance + request.Amount,
		BalanceAfter:    newBalance,
		ChangeAmount:    -request.Amount,
		TransactionType: entities.TransactionTypeWagerStake,
		TransactionMetadata: map[string]any{
			"wager_id": wager.ID,
			"category": string(wager.Category),
		},
		RoundID: &roundID,
	}
	if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
		return nil, 0, fmt.Errorf("failed to record balance change: %w", err)
	}

	if err := s.eventPublisher.Publish(events.WagerPlacedEvent{
		WagerID:   wager.ID,
		AccountID: wager.AccountID,
		Username:  wager.Username,
		RoundID:   wager.RoundID,
		Category:  wager.Category,
		Amount:    wager.Amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish wager placed event")
	}

	return wager, newBalance, nil
}

func (s *ledgerService) RecordOutcome(ctx context.Context, roundID int64, outcome entities.Outcome) error {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to get round %d: %w", roundID, err)
	}
	if round == nil {
		return fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	if round.IsFinal() {
		return fmt.Errorf("round %d is already %s", roundID, round.Status)
	}

	round.Status = entities.RoundStatusSpinning
	round.Outcome = &outcome
	if err := s.roundRepo.Update(ctx, round); err != nil {
		return fmt.Errorf("failed to record outcome for round %d: %w", roundID, err)
	}

	return nil
}

func (s *ledgerService) SettleRound(ctx context.Context, roundID int64, outcome entities.Outcome) (*entities.RoundSettlement, error) {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", roundID, err)
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	switch round.Status {
	case entities.RoundStatusCompleted:
		log.WithField("roundID", roundID).Info("Round already settled, skipping")
		return &entities.RoundSettlement{Round: round, Balances: map[int64]int64{}}, nil
	case entities.RoundStatusVoid:
		return nil, fmt.Errorf("%w: %d", ErrRoundVoided, roundID)
	}

	wagers, err := s.wagerRepo.GetByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers for round %d: %w", roundID, err)
	}

	wagerResults, accountResults := ComputeSettlement(wagers, outcome, s.wheel)

	for _, result := range wagerResults {
		updated, err := s.wagerRepo.MarkSettled(ctx, result.WagerID, result.Won, result.Payout)
		if err != nil {
			return nil, fmt.Errorf("failed to settle wager %d: %w", result.WagerID, err)
		}
		if !updated {
			return nil, fmt.Errorf("wager %d was settled concurrently", result.WagerID)
		}
	}

	balances := make(map[int64]int64, len(accountResults))
	for _, account := range accountResults {
		newBalance, err := s.accountRepo.ApplySettlement(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("failed to apply settlement for account %d: %w", account.AccountID, err)
		}
		balances[account.AccountID] = newBalance

		if account.Credit == 0 {
			continue
		}
		history := &entities.BalanceHistory{
			AccountID:       account.AccountID,
			BalanceBefore:   newBalance - account.Credit,
			BalanceAfter:    newBalance,
			ChangeAmount:    account.Credit,
			TransactionType: entities.TransactionTypeWagerPayout,
			TransactionMetadata: map[string]any{
				"outcome_number":   outcome.Number,
				"outcome_category": string(outcome.Category),
				"wins":             account.WinCount,
			},
			RoundID: &roundID,
		}
		if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
			return nil, fmt.Errorf("failed to record payout for account %d: %w", account.AccountID, err)
		}
	}

	var totalStaked, totalPayout int64
	for _, wager := range wagers {
		totalStaked += wager.Amount
		totalPayout += wager.Payout
	}
	for _, result := range wagerResults {
		totalPayout += result.Payout
	}

	now := time.Now().UTC()
	round.Status = entities.RoundStatusCompleted
	round.Outcome = &outcome
	round.TotalStaked = totalStaked
	round.TotalPayout = totalPayout
	round.CompletedAt = &now
	if err := s.roundRepo.Update(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to complete round %d: %w", roundID, err)
	}

	winners := 0
	for _, account := range accountResults {
		if account.WinCount > 0 {
			winners++
		}
	}
	if err := s.eventPublisher.Publish(events.RoundCompletedEvent{
		RoundID:     roundID,
		Outcome:     outcome,
		TotalStaked: totalStaked,
		TotalPayout: totalPayout,
		WagerCount:  len(wagers),
		WinnerCount: winners,
	}); err != nil {
		log.WithError(err).Error("Failed to publish round completed event")
	}

	log.WithFields(log.Fields{
		"roundID":     roundID,
		"outcome":     outcome.Number,
		"category":    outcome.Category,
		"wagers":      len(wagerResults),
		"accounts":    len(accountResults),
		"totalStaked": totalStaked,
		"totalPayout": totalPayout,
	}).Info("Round settled")

	return &entities.RoundSettlement{
		Round:    round,
		Wagers:   wagerResults,
		Accounts: accountResults,
		Balances: balances,
	}, nil
}

func (s *ledgerService) VoidRound(ctx context.Context, roundID int64) (*entities.RoundSettlement, error) {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", roundID, err)
	}
	if round == nil {
		return nil, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	if round.IsFinal() {
		return &entities.RoundSettlement{Round: round, Balances: map[int64]int64{}}, nil
	}

	wagers, err := s.wagerRepo.GetByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers for round %d: %w", roundID, err)
	}

	// A voided wager is closed as lost with its stake as payout, so the
	// refund nets out of house profit.
	refunds := make(map[int64]int64)
	var order []int64
	var wagerResults []entities.WagerSettlement
	var totalStaked, totalRefunded int64
	for _, wager := range wagers {
		totalStaked += wager.Amount
		if wager.IsSettled() {
			totalRefunded += wager.Payout
			continue
		}
		updated, err := s.wagerRepo.MarkSettled(ctx, wager.ID, false, wager.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to void wager %d: %w", wager.ID, err)
		}
		if !updated {
			return nil, fmt.Errorf("wager %d was settled concurrently", wager.ID)
		}
		if _, ok := refunds[wager.AccountID]; !ok {
			order = append(order, wager.AccountID)
		}
		refunds[wager.AccountID] += wager.Amount
		totalRefunded += wager.Amount
		wagerResults = append(wagerResults, entities.WagerSettlement{
			WagerID:   wager.ID,
			AccountID: wager.AccountID,
			Payout:    wager.Amount,
		})
	}

	balances := make(map[int64]int64, len(refunds))
	for _, accountID := range order {
		amount := refunds[accountID]
		newBalance, err := s.accountRepo.Credit(ctx, accountID, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to refund account %d: %w", accountID, err)
		}
		balances[accountID] = newBalance

		history := &entities.BalanceHistory{
			AccountID:       accountID,
			BalanceBefore:   newBalance - amount,
			BalanceAfter:    newBalance,
			ChangeAmount:    amount,
			TransactionType: entities.TransactionTypeWagerRefund,
			TransactionMetadata: map[string]any{
				"reason": "round_voided",
			},
			RoundID: &roundID,
		}
		if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
			return nil, fmt.Errorf("failed to record refund for account %d: %w", accountID, err)
		}
	}

	now := time.Now().UTC()
	round.Status = entities.RoundStatusVoid
	round.TotalStaked = totalStaked
	round.TotalPayout = totalRefunded
	round.CompletedAt = &now
	if err := s.roundRepo.Update(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to void round %d: %w", roundID, err)
	}

	if err := s.eventPublisher.Publish(events.RoundVoidedEvent{
		RoundID:       roundID,
		RefundedCount: len(wagerResults),
		RefundedTotal: totalRefunded,
	}); err != nil {
		log.WithError(err).Error("Failed to publish round voided event")
	}

	return &entities.RoundSettlement{
		Round:    round,
		Wagers:   wagerResults,
		Balances: balances,
	}, nil
}
