package web_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wifi-voucher-gateway/internal/domain/model"
	"wifi-voucher-gateway/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- Mock Voucher UseCase ---

// mockVoucherUC satisfies usecase.VoucherUseCase with per-test function hooks.
type mockVoucherUC struct {
	purchaseFn func(ctx context.Context, rawPhone string, amount int64, dataPlan, duration string) (*model.Voucher, error)
	callbackFn func(ctx context.Context, cb *model.StkCallback) error
	redeemFn   func(ctx context.Context, code string) (*model.Voucher, error)
	seedFn     func(ctx context.Context, amount int64, dataPlan, duration string, n int) ([]*model.Voucher, error)
	findFn     func(ctx context.Context, code string) (*model.Voucher, error)
	listFn     func(ctx context.Context, status model.VoucherStatus, limit int) ([]*model.Voucher, error)
}

var _ usecase.VoucherUseCase = (*mockVoucherUC)(nil)

func (m *mockVoucherUC) Purchase(ctx context.Context, rawPhone string, amount int64, dataPlan, duration string) (*model.Voucher, error) {
	return m.purchaseFn(ctx, rawPhone, amount, dataPlan, duration)
}

func (m *mockVoucherUC) HandleCallback(ctx context.Context, cb *model.StkCallback) error {
	return m.callbackFn(ctx, cb)
}

func (m *mockVoucherUC) Redeem(ctx context.Context, code string) (*model.Voucher, error) {
	return m.redeemFn(ctx, code)
}

func (m *mockVoucherUC) Seed(ctx context.Context, amount int64, dataPlan, duration string, n int) ([]*model.Voucher, error) {
	return m.seedFn(ctx, amount, dataPlan, duration, n)
}

func (m *mockVoucherUC) Find(ctx context.Context, code string) (*model.Voucher, error) {
	return m.findFn(ctx, code)
}

func (m *mockVoucherUC) List(ctx context.Context, status model.VoucherStatus, limit int) ([]*model.Voucher, error) {
	return m.listFn(ctx, status, limit)
}

// --- Mock Rate Limiter ---

// countingLimiter is a fixed-window limiter over an in-memory counter.
type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{counts: make(map[string]int)}
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}
