package entities

import "time"

// Account is a player identity with its balance and lifetime counters
type Account struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Balance        int64     `db:"balance" json:"balance"`
	TotalWagers    int64     `db:"total_wagers" json:"totalWagers"`
	TotalWins      int64     `db:"total_wins" json:"totalWins"`
	TotalWagered   int64     `db:"total_wagered" json:"totalWagered"`
	TotalWon       int64     `db:"total_won" json:"totalWon"`
	IsAdmin        bool      `db:"is_admin" json:"isAdmin"`
	LastActivityAt time.Time `db:"last_activity_at" json:"lastActivityAt"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// HasSufficientBalance checks if the account can cover an amount
func (a *Account) HasSufficientBalance(amount int64) bool {
	return a.Balance >= amount
}

// NetProfit is what the account has won minus what it has staked
func (a *Account) NetProfit() int64 {
	return a.TotalWon - a.TotalWagered
}

// AccountSettlement is the per-account aggregate applied in one statement
// when a round settles.
type AccountSettlement struct {
	AccountID    int64
	Credit       int64 // sum of payouts
	WagerCount   int64
	WinCount     int64
	AmountStaked int64
}

// PlatformStats summarizes activity across all accounts
type PlatformStats struct {
	TotalAccounts  int64 `json:"totalAccounts"`
	ActiveAccounts int64 `json:"activeAccounts"`
	TotalWagers    int64 `json:"totalWagers"`
	TotalRounds    int64 `json:"totalRounds"`
	TotalWagered   int64 `json:"totalWagered"`
	TotalPayout    int64 `json:"totalPayout"`
	HouseProfit    int64 `json:"houseProfit"`
}
