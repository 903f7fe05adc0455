package dto

import "roulette/domain/entities"

// WagerView is a wager as shown to every connection during a round
type WagerView struct {
	WagerID   int64             `json:"wagerId"`
	AccountID int64             `json:"accountId"`
	Username  string            `json:"username"`
	Category  entities.Category `json:"category"`
	Amount    int64             `json:"amount"`
}

// RecentResult is one entry of the recent outcomes strip
type RecentResult struct {
	RoundID  int64             `json:"roundId"`
	Number   int               `json:"number"`
	Category entities.Category `json:"category"`
}

// SectorView describes one wheel sector
type SectorView struct {
	Number   int               `json:"number"`
	Category entities.Category `json:"category"`
}

// RoundSnapshotDTO is the live engine state sent to new connections
type RoundSnapshotDTO struct {
	Phase         entities.Phase              `json:"phase"`
	TimeLeft      int                         `json:"timeLeft"`
	RoundID       int64                       `json:"roundId"`
	Wagers        []WagerView                 `json:"wagers"`
	OutcomeIndex  *int                        `json:"outcomeIndex,omitempty"`
	RecentResults []RecentResult              `json:"recentResults"`
	Sectors       []SectorView                `json:"sectors"`
	Multipliers   map[entities.Category]int64 `json:"multipliers"`
	MinBet        int64                       `json:"minBet"`
	MaxBet        int64                       `json:"maxBet"`
}

// RoundResultDTO is broadcast once a round has been settled
type RoundResultDTO struct {
	RoundID       int64             `json:"roundId"`
	OutcomeIndex  int               `json:"outcomeIndex"`
	Number        int               `json:"number"`
	Category      entities.Category `json:"category"`
	TotalStaked   int64             `json:"totalStaked"`
	TotalPayout   int64             `json:"totalPayout"`
	Winners       []WinnerView      `json:"winners"`
	RecentResults []RecentResult    `json:"recentResults"`
}

// WinnerView is one account's aggregated payout for a round
type WinnerView struct {
	AccountID int64 `json:"accountId"`
	Payout    int64 `json:"payout"`
}

// WagerToView converts a persisted wager for the live wager list
func WagerToView(wager *entities.Wager) WagerView {
	return WagerView{
		WagerID:   wager.ID,
		AccountID: wager.AccountID,
		Username:  wager.Username,
		Category:  wager.Category,
		Amount:    wager.Amount,
	}
}

// RoundToRecentResult converts a completed round. ok is false for rounds
// without an outcome.
func RoundToRecentResult(round *entities.Round) (RecentResult, bool) {
	if round == nil || round.Outcome == nil {
		return RecentResult{}, false
	}
	return RecentResult{
		RoundID:  round.ID,
		Number:   round.Outcome.Number,
		Category: round.Outcome.Category,
	}, true
}

// WheelToSectorViews lists the wheel sectors in order
func WheelToSectorViews(wheel *entities.Wheel) []SectorView {
	views := make([]SectorView, len(wheel.Sectors))
	for i, sector := range wheel.Sectors {
		views[i] = SectorView{Number: sector.Number, Category: sector.Category}
	}
	return views
}
