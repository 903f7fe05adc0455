package services

import (
	"sort"

	"roulette/domain/entities"
)

// ComputeSettlement resolves wagers against a drawn outcome. Wagers that are
// already settled are skipped, so applying the result twice pays nothing
// extra. Per-account aggregates come back sorted by account ID so callers
// touch account rows in a stable order.
func ComputeSettlement(wagers []*entities.Wager, outcome entities.Outcome, wheel *entities.Wheel) ([]entities.WagerSettlement, []entities.AccountSettlement) {
	wagerResults := make([]entities.WagerSettlement, 0, len(wagers))
	byAccount := make(map[int64]*entities.AccountSettlement)

	for _, wager := range wagers {
		if wager.IsSettled() {
			continue
		}

		won := wager.Category == outcome.Category
		var payout int64
		if won {
			payout = wager.Amount * wheel.Multiplier(wager.Category)
		}

		wagerResults = append(wagerResults, entities.WagerSettlement{
			WagerID:   wager.ID,
			AccountID: wager.AccountID,
			Won:       won,
			Payout:    payout,
		})

		account, ok := byAccount[wager.AccountID]
		if !ok {
			account = &entities.AccountSettlement{AccountID: wager.AccountID}
			byAccount[wager.AccountID] = account
		}
		account.WagerCount++
		account.AmountStaked += wager.Amount
		account.Credit += payout
		if won {
			account.WinCount++
		}
	}

	accountResults := make([]entities.AccountSettlement, 0, len(byAccount))
	for _, account := range byAccount {
		accountResults = append(accountResults, *account)
	}
	sort.Slice(accountResults, func(i, j int) bool {
		return accountResults[i].AccountID < accountResults[j].AccountID
	})

	return wagerResults, accountResults
}
