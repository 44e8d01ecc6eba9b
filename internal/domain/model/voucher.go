package model

import "time"

type VoucherStatus string

const (
	VoucherStatusPending  VoucherStatus = "pending"  // push requested; awaiting provider confirmation
	VoucherStatusActive   VoucherStatus = "active"   // payment confirmed; usable exactly once
	VoucherStatusRedeemed VoucherStatus = "redeemed" // consumed at the portal
	VoucherStatusRejected VoucherStatus = "rejected" // push failed, payment declined, or swept
)

// Voucher is a single-use access credential tied to one payment attempt.
// It is never physically deleted; terminal records are kept for audit.
type Voucher struct {
	ID          string // UUID
	Code        string // human-enterable portal credential, unique across all vouchers
	Status      VoucherStatus
	PhoneNumber string // normalized 254XXXXXXXXX
	Amount      int64  // whole KES, integer to avoid float errors
	DataPlan    string // opaque plan attribute, e.g. "1GB"
	Duration    string // opaque plan attribute, e.g. "1 Hour"
	// PaymentReference is the provider's CheckoutRequestID from the push ack.
	// Kept for audit; the voucher code itself is the correlation key the
	// callback echoes back via AccountReference.
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	RedeemedAt       *time.Time
}

// Terminal reports whether the voucher can no longer change state.
func (v *Voucher) Terminal() bool {
	return v.Status == VoucherStatusRedeemed || v.Status == VoucherStatusRejected
}

// CanTransition reports whether moving to the given status is a legal
// lifecycle step. pending -> {active, rejected}; active -> redeemed.
func (v *Voucher) CanTransition(to VoucherStatus) bool {
	switch v.Status {
	case VoucherStatusPending:
		return to == VoucherStatusActive || to == VoucherStatusRejected
	case VoucherStatusActive:
		return to == VoucherStatusRedeemed
	default:
		return false
	}
}
