package repository

import (
	"context"
	"time"

	"wifi-voucher-gateway/internal/domain/model"
)

// VoucherRepository is the durable mapping from voucher code to voucher
// record. Every state-transition method is atomic with respect to concurrent
// callers; conditional UPDATEs (status in the WHERE clause) are the contract,
// so two racing callers can never double-activate or double-redeem.
type VoucherRepository interface {
	// Insert persists a new voucher. Returns domain.ErrDuplicateCode if the
	// code is already taken.
	Insert(ctx context.Context, tx Tx, v *model.Voucher) error

	// FindByCode returns the voucher or domain.ErrNotFound.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Voucher, error)

	// ActivateByCode flips a pending voucher to active. Returns false when no
	// pending voucher matches; duplicate or late confirmations are no-ops.
	ActivateByCode(ctx context.Context, code string) (bool, error)

	// RejectByCode flips a pending voucher to rejected, same no-op rule.
	RejectByCode(ctx context.Context, code string) (bool, error)

	// RedeemByCode flips an active voucher to redeemed. Returns false when the
	// voucher does not exist, is not active, or was already redeemed.
	RedeemByCode(ctx context.Context, code string) (bool, error)

	// ClaimUnusedActive atomically selects one active voucher and redeems it,
	// returning the claimed voucher, or nil when none is available. No two
	// concurrent callers may claim the same voucher.
	ClaimUnusedActive(ctx context.Context) (*model.Voucher, error)

	// SetPaymentReference records the provider ack id against a voucher.
	SetPaymentReference(ctx context.Context, code, ref string) error

	// ListByStatus returns up to limit vouchers in the given status, newest
	// first. Operator surface.
	ListByStatus(ctx context.Context, status model.VoucherStatus, limit int) ([]*model.Voucher, error)

	// RejectPendingBefore sweeps pending vouchers created before the cutoff
	// into rejected, returning how many were moved.
	RejectPendingBefore(ctx context.Context, cutoff time.Time) (int, error)
}
