package walletclient

import (
	"context"
	"fmt"
	"sync"
)

// MockTransferor is an in-memory ValueTransferor used in tests and in
// simnet mode.
type MockTransferor struct {
	mtx      sync.Mutex
	balances map[string]int64

	// FailNextCredits makes the next n Credit calls fail.
	FailNextCredits int
}

var _ ValueTransferor = (*MockTransferor)(nil)

func NewMockTransferor() *MockTransferor {
	return &MockTransferor{
		balances: make(map[string]int64),
	}
}

func (t *MockTransferor) Credit(ctx context.Context, recipient string, amount int64) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.FailNextCredits > 0 {
		t.FailNextCredits--
		return fmt.Errorf("wallet credit refused")
	}
	t.balances[recipient] += amount
	return nil
}

func (t *MockTransferor) BalanceOf(ctx context.Context, account string) (int64, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.balances[account], nil
}
