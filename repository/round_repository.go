package repository

import (
	"context"
	"errors"
	"fmt"

	"roulette/database"
	"roulette/domain/entities"
	"roulette/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const roundColumns = `id, status, outcome_index, outcome_number, outcome_category,
	total_staked, total_payout, created_at, completed_at`

// RoundRepository implements the RoundRepository interface
type RoundRepository struct {
	q queryable
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) interfaces.RoundRepository {
	return &RoundRepository{q: db.Pool}
}

// newRoundRepositoryWithTx creates a new round repository with a transaction
func newRoundRepositoryWithTx(tx queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

func scanRound(row pgx.Row) (*entities.Round, error) {
	var round entities.Round
	var status string
	var outcomeIndex, outcomeNumber *int32
	var outcomeCategory *string

	err := row.Scan(
		&round.ID,
		&status,
		&outcomeIndex,
		&outcomeNumber,
		&outcomeCategory,
		&round.TotalStaked,
		&round.TotalPayout,
		&round.CreatedAt,
		&round.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	round.Status = entities.RoundStatus(status)
	if outcomeIndex != nil && outcomeNumber != nil && outcomeCategory != nil {
		round.Outcome = &entities.Outcome{
			Index:    int(*outcomeIndex),
			Number:   int(*outcomeNumber),
			Category: entities.Category(*outcomeCategory),
		}
	}

	return &round, nil
}

// Create inserts a round with its pre-allocated ID
func (r *RoundRepository) Create(ctx context.Context, round *entities.Round) error {
	query := `
		INSERT INTO rounds (id, status)
		VALUES ($1, $2)
		RETURNING created_at
	`

	if err := r.q.QueryRow(ctx, query, round.ID, string(round.Status)).Scan(&round.CreatedAt); err != nil {
		return fmt.Errorf("failed to create round %d: %w", round.ID, err)
	}

	return nil
}

// Update writes the mutable fields of a round
func (r *RoundRepository) Update(ctx context.Context, round *entities.Round) error {
	var outcomeIndex, outcomeNumber *int32
	var outcomeCategory *string
	if round.Outcome != nil {
		index := int32(round.Outcome.Index)
		number := int32(round.Outcome.Number)
		category := string(round.Outcome.Category)
		outcomeIndex, outcomeNumber, outcomeCategory = &index, &number, &category
	}

	query := `
		UPDATE rounds
		SET status = $1,
			outcome_index = $2,
			outcome_number = $3,
			outcome_category = $4,
			total_staked = $5,
			total_payout = $6,
			completed_at = $7
		WHERE id = $8
	`

	result, err := r.q.Exec(ctx, query,
		string(round.Status),
		outcomeIndex,
		outcomeNumber,
		outcomeCategory,
		round.TotalStaked,
		round.TotalPayout,
		round.CompletedAt,
		round.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update round %d: %w", round.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("round %d not found", round.ID)
	}

	return nil
}

// GetByID retrieves a round and locks its row for the rest of the transaction
func (r *RoundRepository) GetByID(ctx context.Context, id int64) (*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1 FOR UPDATE`

	round, err := scanRound(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}

	return round, nil
}

// GetLatest returns the round with the highest ID
func (r *RoundRepository) GetLatest(ctx context.Context) (*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY id DESC LIMIT 1`

	round, err := scanRound(r.q.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest round: %w", err)
	}

	return round, nil
}

// GetRecentCompleted returns completed rounds, newest first
func (r *RoundRepository) GetRecentCompleted(ctx context.Context, limit int) ([]*entities.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE status = 'completed' ORDER BY id DESC LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*entities.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}

	return rounds, nil
}
