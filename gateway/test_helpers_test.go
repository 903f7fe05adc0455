package gateway

import (
	"context"
	"sync"

	"roulette/application/dto"
	"roulette/domain/entities"

	"github.com/stretchr/testify/mock"
)

// MockAccountHandler is a testify mock of application.AccountHandler
type MockAccountHandler struct {
	mock.Mock
}

func (m *MockAccountHandler) GetOrCreateAccount(ctx context.Context, id int64, username string) (*entities.Account, error) {
	args := m.Called(ctx, id, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountHandler) GetAccount(ctx context.Context, id int64) (*entities.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountHandler) RecentWagers(ctx context.Context, accountID int64, limit int) ([]*entities.Wager, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Wager), args.Error(1)
}

func (m *MockAccountHandler) BalanceHistory(ctx context.Context, accountID int64, limit int) ([]*entities.BalanceHistory, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BalanceHistory), args.Error(1)
}

func (m *MockAccountHandler) RecentRounds(ctx context.Context, limit int) ([]*entities.Round, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Round), args.Error(1)
}

func (m *MockAccountHandler) AdjustBalance(ctx context.Context, accountID int64, amount int64, adminID int64) (*entities.Account, error) {
	args := m.Called(ctx, accountID, amount, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockAccountHandler) GrantAdmin(ctx context.Context, accountID int64) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *MockAccountHandler) ListAccounts(ctx context.Context, limit, offset int) ([]*entities.Account, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Account), args.Error(1)
}

func (m *MockAccountHandler) Stats(ctx context.Context) (*entities.PlatformStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PlatformStats), args.Error(1)
}

// fakeEngine answers submissions with a fixed result
type fakeEngine struct {
	mu       sync.Mutex
	snapshot dto.RoundSnapshotDTO
	requests []entities.WagerRequest
	err      error
	balance  int64
	halted   bool

	// onSnapshot runs after each snapshot is taken
	onSnapshot func()
}

func (f *fakeEngine) SubmitWager(ctx context.Context, request entities.WagerRequest) (*entities.Wager, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, request)
	if request.AccountID == 0 {
		return nil, 0, entities.Reject(entities.ReasonUnauthenticated, "sign in")
	}
	if f.err != nil {
		return nil, 0, f.err
	}
	return &entities.Wager{
		ID:        int64(len(f.requests)),
		AccountID: request.AccountID,
		Username:  request.Username,
		RoundID:   f.snapshot.RoundID,
		Category:  request.Category,
		Amount:    request.Amount,
	}, f.balance, nil
}

func (f *fakeEngine) Snapshot() dto.RoundSnapshotDTO {
	f.mu.Lock()
	snapshot, hook := f.snapshot, f.onSnapshot
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return snapshot
}

func (f *fakeEngine) Halted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.halted
}

func (f *fakeEngine) submitted() []entities.WagerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.WagerRequest(nil), f.requests...)
}
