package usecase_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wifi-voucher-gateway/internal/domain"
	"wifi-voucher-gateway/internal/domain/model"
	"wifi-voucher-gateway/internal/domain/ports/adapter"
	"wifi-voucher-gateway/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memVoucherRepo is a small in-memory implementation used by unit tests. All
// mutating methods hold the mutex across read-and-write, which gives it the
// same atomic-transition guarantees the Postgres repo gets from conditional
// UPDATEs.
type memVoucherRepo struct {
	mu    sync.Mutex
	store map[string]*model.Voucher // by code

	insertErr     error // simulate storage failures
	duplicateHits int   // force this many ErrDuplicateCode returns before accepting
}

func newMemVoucherRepo() *memVoucherRepo {
	return &memVoucherRepo{store: make(map[string]*model.Voucher)}
}

func (m *memVoucherRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.duplicateHits > 0 {
		m.duplicateHits--
		return domain.ErrDuplicateCode
	}
	if _, exists := m.store[v.Code]; exists {
		return domain.ErrDuplicateCode
	}
	if v.ID == "" {
		v.ID = "vid-" + v.Code
	}
	cp := *v
	m.store[v.Code] = &cp
	return nil
}

func (m *memVoucherRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVoucherRepo) transition(code string, from, to model.VoucherStatus) bool {
	v, ok := m.store[code]
	if !ok || v.Status != from {
		return false
	}
	v.Status = to
	v.UpdatedAt = time.Now()
	if to == model.VoucherStatusRedeemed {
		now := time.Now()
		v.RedeemedAt = &now
	}
	return true
}

func (m *memVoucherRepo) ActivateByCode(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(code, model.VoucherStatusPending, model.VoucherStatusActive), nil
}

func (m *memVoucherRepo) RejectByCode(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(code, model.VoucherStatusPending, model.VoucherStatusRejected), nil
}

func (m *memVoucherRepo) RedeemByCode(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(code, model.VoucherStatusActive, model.VoucherStatusRedeemed), nil
}

func (m *memVoucherRepo) ClaimUnusedActive(ctx context.Context) (*model.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.store {
		if v.Status == model.VoucherStatusActive {
			v.Status = model.VoucherStatusRedeemed
			now := time.Now()
			v.RedeemedAt = &now
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memVoucherRepo) SetPaymentReference(ctx context.Context, code, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.store[code]; ok {
		v.PaymentReference = ref
	}
	return nil
}

func (m *memVoucherRepo) ListByStatus(ctx context.Context, status model.VoucherStatus, limit int) ([]*model.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Voucher
	for _, v := range m.store {
		if v.Status == status {
			cp := *v
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memVoucherRepo) RejectPendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.store {
		if v.Status == model.VoucherStatusPending && v.CreatedAt.Before(cutoff) {
			v.Status = model.VoucherStatusRejected
			n++
		}
	}
	return n, nil
}

// get returns the stored voucher without copying; test-side inspection only.
func (m *memVoucherRepo) get(code string) *model.Voucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[code]
}

// mockTxManager runs the callback directly; the in-memory repo has no
// transactions to manage.
type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// mockGateway records push requests and lets tests script the outcome.
type mockGateway struct {
	mu       sync.Mutex
	pushErr  error
	requests []pushRequest
}

type pushRequest struct {
	Phone     string
	Amount    int64
	Reference string
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) NormalizePhone(raw string) (string, error) {
	p := strings.TrimPrefix(strings.TrimSpace(raw), "+")
	switch {
	case strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	case strings.HasPrefix(p, "254"):
	default:
		return "", domain.ErrInvalidPhone
	}
	if len(p) != 12 {
		return "", domain.ErrInvalidPhone
	}
	return p, nil
}

func (g *mockGateway) RequestPush(ctx context.Context, phone string, amount int64, reference string) (*adapter.PushAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, pushRequest{Phone: phone, Amount: amount, Reference: reference})
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	return &adapter.PushAck{
		MerchantRequestID: "merchant-1",
		CheckoutRequestID: "checkout-1",
		ResponseDesc:      "Success. Request accepted for processing",
	}, nil
}

func (g *mockGateway) lastRequest() *pushRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return nil
	}
	return &g.requests[len(g.requests)-1]
}
