package entities

import "time"

// Wager is a stake on one category in one round. Won is nil until settled.
type Wager struct {
	ID        int64      `db:"id" json:"id"`
	AccountID int64      `db:"account_id" json:"accountId"`
	Username  string     `db:"username" json:"username"`
	RoundID   int64      `db:"round_id" json:"roundId"`
	Category  Category   `db:"category" json:"category"`
	Amount    int64      `db:"amount" json:"amount"`
	Won       *bool      `db:"won" json:"won"`
	Payout    int64      `db:"payout" json:"payout"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	SettledAt *time.Time `db:"settled_at" json:"settledAt,omitempty"`
}

// IsSettled returns true once the won/payout pair has been written
func (w *Wager) IsSettled() bool {
	return w.Won != nil
}

// WagerRequest is an inbound submission as it arrives from a connection.
// AccountID is zero for guests.
type WagerRequest struct {
	AccountID int64
	Username  string
	Category  Category
	Amount    int64
}

// WagerSettlement is the resolved won/payout pair for one wager
type WagerSettlement struct {
	WagerID   int64
	AccountID int64
	Won       bool
	Payout    int64
}
