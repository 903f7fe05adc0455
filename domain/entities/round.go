package entities

import "time"

// Phase is the live state of the round engine
type Phase string

const (
	PhaseBetting  Phase = "BETTING"
	PhaseSpinning Phase = "SPINNING"
	PhaseResult   Phase = "RESULT"
)

// RoundStatus is the persisted lifecycle of a round
type RoundStatus string

const (
	RoundStatusBetting   RoundStatus = "betting"
	RoundStatusSpinning  RoundStatus = "spinning"
	RoundStatusCompleted RoundStatus = "completed"
	RoundStatusVoid      RoundStatus = "void"
)

// Round is one betting/draw/settlement cycle
type Round struct {
	ID          int64       `db:"id" json:"id"`
	Status      RoundStatus `db:"status" json:"status"`
	Outcome     *Outcome    `json:"outcome,omitempty"`
	TotalStaked int64       `db:"total_staked" json:"totalStaked"`
	TotalPayout int64       `db:"total_payout" json:"totalPayout"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time  `db:"completed_at" json:"completedAt,omitempty"`
}

// IsFinal returns true for rounds that can no longer change
func (r *Round) IsFinal() bool {
	return r.Status == RoundStatusCompleted || r.Status == RoundStatusVoid
}

// Outcome is a drawn sector together with its index in the wheel
type Outcome struct {
	Index    int      `json:"index"`
	Number   int      `json:"number"`
	Category Category `json:"category"`
}

// RoundSettlement is the result of settling a round
type RoundSettlement struct {
	Round    *Round
	Wagers   []WagerSettlement
	Accounts []AccountSettlement
	// Balances holds the post-settlement balance of every account that wagered
	Balances map[int64]int64
}

// Payouts returns the total payout per account, winners only
func (s *RoundSettlement) Payouts() map[int64]int64 {
	payouts := make(map[int64]int64)
	for _, account := range s.Accounts {
		if account.Credit > 0 {
			payouts[account.AccountID] = account.Credit
		}
	}
	return payouts
}
