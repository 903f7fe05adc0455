package entities

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial         TransactionType = "initial"
	TransactionTypeWagerStake      TransactionType = "wager_stake"
	TransactionTypeWagerPayout     TransactionType = "wager_payout"
	TransactionTypeWagerRefund     TransactionType = "wager_refund"
	TransactionTypeAdminAdjustment TransactionType = "admin_adjustment"
)

// IsGamblingRelated returns true for stakes and payouts
func (tt TransactionType) IsGamblingRelated() bool {
	return tt == TransactionTypeWagerStake || tt == TransactionTypeWagerPayout
}

// IsSystemGenerated returns true for changes not caused by play
func (tt TransactionType) IsSystemGenerated() bool {
	return tt == TransactionTypeInitial ||
		tt == TransactionTypeWagerRefund ||
		tt == TransactionTypeAdminAdjustment
}

func (tt TransactionType) String() string {
	return string(tt)
}
