package testutil

import (
	"context"
	"testing"

	"roulette/database"
	"roulette/domain/entities"

	"github.com/stretchr/testify/require"
)

// CreateTestAccount inserts an account with the given balance
func CreateTestAccount(t *testing.T, db *database.DB, id int64, username string, balance int64) *entities.Account {
	t.Helper()

	account := &entities.Account{ID: id, Username: username, Balance: balance}
	err := db.QueryRow(context.Background(), `
		INSERT INTO accounts (id, username, balance)
		VALUES ($1, $2, $3)
		RETURNING last_activity_at, created_at, updated_at
	`, id, username, balance).Scan(&account.LastActivityAt, &account.CreatedAt, &account.UpdatedAt)
	require.NoError(t, err)

	return account
}

// CreateTestRound inserts a round in the given status
func CreateTestRound(t *testing.T, db *database.DB, id int64, status entities.RoundStatus) *entities.Round {
	t.Helper()

	round := &entities.Round{ID: id, Status: status}
	err := db.QueryRow(context.Background(), `
		INSERT INTO rounds (id, status) VALUES ($1, $2) RETURNING created_at
	`, id, string(status)).Scan(&round.CreatedAt)
	require.NoError(t, err)

	return round
}

// CreateTestWager builds an unsettled wager without persisting it
func CreateTestWager(accountID, roundID int64, category entities.Category, amount int64) *entities.Wager {
	return &entities.Wager{
		AccountID: accountID,
		Username:  "player",
		RoundID:   roundID,
		Category:  category,
		Amount:    amount,
	}
}

// GetBalance reads an account balance straight from the table
func GetBalance(t *testing.T, db *database.DB, id int64) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(context.Background(), `SELECT balance FROM accounts WHERE id = $1`, id).Scan(&balance)
	require.NoError(t, err)
	return balance
}
