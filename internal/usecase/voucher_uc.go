package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wifi-voucher-gateway/internal/domain"
	"wifi-voucher-gateway/internal/domain/model"
	"wifi-voucher-gateway/internal/domain/ports/adapter"
	"wifi-voucher-gateway/internal/domain/ports/repository"
	"wifi-voucher-gateway/internal/infra/metrics"
	"wifi-voucher-gateway/internal/logging"
)

// Compile-time check
var _ VoucherUseCase = (*voucherUC)(nil)

// VoucherUseCase orchestrates the voucher lifecycle: issuing a pending
// voucher tied to a purchase attempt, correlating the asynchronous payment
// confirmation back to it, and answering redemption requests from the portal.
type VoucherUseCase interface {
	// Purchase issues a pending voucher and requests a payment push. The
	// returned voucher is the purchase receipt; it is not usable until the
	// provider confirms payment.
	Purchase(ctx context.Context, rawPhone string, amount int64, dataPlan, duration string) (*model.Voucher, error)
	// HandleCallback applies a provider payment result. Duplicate, late, and
	// unknown-reference callbacks are absorbed as no-ops.
	HandleCallback(ctx context.Context, cb *model.StkCallback) error
	// Redeem consumes a voucher. With a code it redeems that voucher; with an
	// empty code (auto-assign mode) it claims any active voucher.
	Redeem(ctx context.Context, code string) (*model.Voucher, error)
	// Seed creates operator-issued vouchers that are born active, bypassing
	// payment. Administrative path only.
	Seed(ctx context.Context, amount int64, dataPlan, duration string, n int) ([]*model.Voucher, error)
	// Find is a read-only operator lookup.
	Find(ctx context.Context, code string) (*model.Voucher, error)
	// List returns vouchers in a given status, newest first. Operator surface.
	List(ctx context.Context, status model.VoucherStatus, limit int) ([]*model.Voucher, error)
}

type voucherUC struct {
	vouchers     repository.VoucherRepository
	txm          repository.TransactionManager
	gateway      adapter.PaymentGateway
	autoRedeem   bool
	codeAttempts int
	dev          bool
	log          *zerolog.Logger
}

func NewVoucherUseCase(
	vouchers repository.VoucherRepository,
	txm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	autoRedeem bool,
	codeAttempts int,
	dev bool,
	logger *zerolog.Logger,
) *voucherUC {
	ucLog := logger.With().Str("component", "VoucherUC").Logger()
	if codeAttempts <= 0 {
		codeAttempts = 5
	}
	return &voucherUC{
		vouchers:     vouchers,
		txm:          txm,
		gateway:      gateway,
		autoRedeem:   autoRedeem,
		codeAttempts: codeAttempts,
		dev:          dev,
		log:          &ucLog,
	}
}

func (u *voucherUC) Purchase(ctx context.Context, rawPhone string, amount int64, dataPlan, duration string) (*model.Voucher, error) {
	if amount <= 0 || strings.TrimSpace(dataPlan) == "" || strings.TrimSpace(duration) == "" {
		return nil, domain.ErrInvalidArgument
	}

	phone, err := u.gateway.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	v, err := u.insertPending(ctx, phone, amount, dataPlan, duration)
	if err != nil {
		return nil, err
	}

	ack, err := u.gateway.RequestPush(ctx, phone, amount, v.Code)
	if err != nil {
		// The voucher stays recorded for audit; only its state is corrected.
		if _, rejErr := u.vouchers.RejectByCode(ctx, v.Code); rejErr != nil {
			u.log.Error().Err(rejErr).Str("code", v.Code).Msg("failed to reject voucher after push failure")
		}
		metrics.IncPaymentPush("failed")
		metrics.IncVoucherTransition("rejected")
		u.log.Warn().Err(err).
			Str("code", v.Code).
			Str("phone", logging.RedactPhone(phone, u.dev)).
			Msg("payment push failed")
		return nil, err
	}

	if err := u.vouchers.SetPaymentReference(ctx, v.Code, ack.CheckoutRequestID); err != nil {
		u.log.Error().Err(err).Str("code", v.Code).Msg("failed to store payment reference")
	}
	v.PaymentReference = ack.CheckoutRequestID

	metrics.IncPaymentPush("accepted")
	u.log.Info().
		Str("code", v.Code).
		Str("phone", logging.RedactPhone(phone, u.dev)).
		Int64("amount", amount).
		Str("checkout_request_id", ack.CheckoutRequestID).
		Msg("voucher issued, awaiting payment confirmation")
	return v, nil
}

// insertPending persists a fresh pending voucher, retrying a bounded number
// of times when the generated code collides with an existing one.
func (u *voucherUC) insertPending(ctx context.Context, phone string, amount int64, dataPlan, duration string) (*model.Voucher, error) {
	for attempt := 0; attempt < u.codeAttempts; attempt++ {
		code, err := generateVoucherCode()
		if err != nil {
			return nil, err
		}

		now := time.Now()
		v := &model.Voucher{
			Code:        code,
			Status:      model.VoucherStatusPending,
			PhoneNumber: phone,
			Amount:      amount,
			DataPlan:    dataPlan,
			Duration:    duration,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		err = u.vouchers.Insert(ctx, repository.NoTX, v)
		if errors.Is(err, domain.ErrDuplicateCode) {
			u.log.Debug().Str("code", code).Int("attempt", attempt+1).Msg("voucher code collision, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		metrics.IncVoucherTransition("issued")
		return v, nil
	}
	return nil, domain.ErrCodeGeneration
}

func (u *voucherUC) HandleCallback(ctx context.Context, cb *model.StkCallback) error {
	if cb.Succeeded() {
		ok, err := u.vouchers.ActivateByCode(ctx, cb.Reference)
		if err != nil {
			metrics.IncPaymentCallback("error")
			return err
		}
		if !ok {
			// Duplicate delivery, or a voucher already swept/rejected. Benign.
			metrics.IncPaymentCallback("duplicate")
			u.log.Info().Str("reference", cb.Reference).Msg("confirmation for non-pending voucher ignored")
			return nil
		}
		if v, ferr := u.vouchers.FindByCode(ctx, repository.NoTX, cb.Reference); ferr == nil {
			if cb.Amount != nil && *cb.Amount != v.Amount {
				u.log.Warn().
					Str("reference", cb.Reference).
					Int64("expected", v.Amount).
					Int64("reported", *cb.Amount).
					Msg("callback amount differs from voucher amount")
			}
		}
		metrics.IncPaymentCallback("success")
		metrics.IncVoucherTransition("activated")
		u.log.Info().Str("reference", cb.Reference).Str("receipt", cb.ReceiptNumber).Msg("voucher activated")
		return nil
	}

	ok, err := u.vouchers.RejectByCode(ctx, cb.Reference)
	if err != nil {
		metrics.IncPaymentCallback("error")
		return err
	}
	metrics.IncPaymentCallback("failure")
	if ok {
		metrics.IncVoucherTransition("rejected")
		u.log.Info().
			Str("reference", cb.Reference).
			Int("result_code", cb.ResultCode).
			Str("result_desc", cb.ResultDesc).
			Msg("voucher rejected on payment failure")
	} else {
		u.log.Info().Str("reference", cb.Reference).Msg("failure callback for non-pending voucher ignored")
	}
	return nil
}

func (u *voucherUC) Redeem(ctx context.Context, code string) (*model.Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if code == "" {
		if !u.autoRedeem {
			return nil, domain.ErrInvalidArgument
		}
		v, err := u.vouchers.ClaimUnusedActive(ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, domain.ErrNoVoucherAvailable
		}
		metrics.IncVoucherTransition("redeemed")
		u.log.Info().Str("code", v.Code).Msg("voucher auto-assigned and redeemed")
		return v, nil
	}

	ok, err := u.vouchers.RedeemByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		// One generic error whether the code never existed or was already
		// used, so valid-but-spent codes cannot be enumerated.
		return nil, domain.ErrInvalidOrUsedCode
	}
	metrics.IncVoucherTransition("redeemed")
	u.log.Info().Str("code", code).Msg("voucher redeemed")

	v, err := u.vouchers.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		// Redemption already committed; return the essentials.
		v = &model.Voucher{Code: code, Status: model.VoucherStatusRedeemed}
	}
	return v, nil
}

// Seed inserts the whole batch in one transaction: operators either get all
// the codes they asked for or none. A code collision aborts the batch and the
// batch is retried with fresh codes; a unique violation mid-transaction
// poisons the rest of it anyway.
func (u *voucherUC) Seed(ctx context.Context, amount int64, dataPlan, duration string, n int) ([]*model.Voucher, error) {
	if n <= 0 || n > 1000 {
		return nil, domain.ErrInvalidArgument
	}

	for attempt := 0; attempt < u.codeAttempts; attempt++ {
		out := make([]*model.Voucher, 0, n)
		err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			for i := 0; i < n; i++ {
				code, err := generateVoucherCode()
				if err != nil {
					return err
				}
				now := time.Now()
				v := &model.Voucher{
					Code:      code,
					Status:    model.VoucherStatusActive,
					Amount:    amount,
					DataPlan:  dataPlan,
					Duration:  duration,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := u.vouchers.Insert(ctx, tx, v); err != nil {
					return err
				}
				out = append(out, v)
			}
			return nil
		})
		if errors.Is(err, domain.ErrDuplicateCode) {
			u.log.Debug().Int("attempt", attempt+1).Msg("seed batch hit a code collision, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		for range out {
			metrics.IncVoucherTransition("seeded")
		}
		u.log.Info().Int("count", len(out)).Msg("vouchers seeded")
		return out, nil
	}
	return nil, domain.ErrCodeGeneration
}

func (u *voucherUC) Find(ctx context.Context, code string) (*model.Voucher, error) {
	return u.vouchers.FindByCode(ctx, repository.NoTX, strings.ToUpper(strings.TrimSpace(code)))
}

func (u *voucherUC) List(ctx context.Context, status model.VoucherStatus, limit int) ([]*model.Voucher, error) {
	switch status {
	case model.VoucherStatusPending, model.VoucherStatusActive,
		model.VoucherStatusRedeemed, model.VoucherStatusRejected:
	default:
		return nil, domain.ErrInvalidArgument
	}
	return u.vouchers.ListByStatus(ctx, status, limit)
}
