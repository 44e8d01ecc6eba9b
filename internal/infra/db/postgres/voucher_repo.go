package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wifi-voucher-gateway/internal/domain"
	"wifi-voucher-gateway/internal/domain/model"
	"wifi-voucher-gateway/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.VoucherRepository = (*voucherRepo)(nil)

type voucherRepo struct {
	pool *pgxpool.Pool
}

func NewVoucherRepo(pool *pgxpool.Pool) repository.VoucherRepository {
	return &voucherRepo{pool: pool}
}

const voucherColumns = `id, code, status, phone_number, amount, data_plan, duration, payment_reference, created_at, updated_at, redeemed_at`

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	err := row.Scan(
		&v.ID, &v.Code, &v.Status, &v.PhoneNumber, &v.Amount, &v.DataPlan,
		&v.Duration, &v.PaymentReference, &v.CreatedAt, &v.UpdatedAt, &v.RedeemedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &v, nil
}

func (r *voucherRepo) Insert(ctx context.Context, tx repository.Tx, v *model.Voucher) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	const q = `
INSERT INTO vouchers (id, code, status, phone_number, amount, data_plan, duration, payment_reference, created_at, updated_at, redeemed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		v.ID, v.Code, v.Status, v.PhoneNumber, v.Amount, v.DataPlan, v.Duration,
		v.PaymentReference, v.CreatedAt, v.UpdatedAt, v.RedeemedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateCode
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *voucherRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Voucher, error) {
	q := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanVoucher(row)
}

// transition flips a voucher between two states in one conditional UPDATE.
// The `from` status in the WHERE clause is what makes each transition atomic
// and idempotent: a concurrent or duplicate caller matches zero rows.
func (r *voucherRepo) transition(ctx context.Context, code string, from, to model.VoucherStatus) (bool, error) {
	const q = `UPDATE vouchers SET status = $3, updated_at = NOW() WHERE code = $1 AND status = $2;`
	cmd, err := execSQL(ctx, r.pool, nil, q, code, from, to)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *voucherRepo) ActivateByCode(ctx context.Context, code string) (bool, error) {
	return r.transition(ctx, code, model.VoucherStatusPending, model.VoucherStatusActive)
}

func (r *voucherRepo) RejectByCode(ctx context.Context, code string) (bool, error) {
	return r.transition(ctx, code, model.VoucherStatusPending, model.VoucherStatusRejected)
}

func (r *voucherRepo) RedeemByCode(ctx context.Context, code string) (bool, error) {
	const q = `
UPDATE vouchers SET status = $2, redeemed_at = NOW(), updated_at = NOW()
 WHERE code = $1 AND status = $3;
`
	cmd, err := execSQL(ctx, r.pool, nil, q, code, model.VoucherStatusRedeemed, model.VoucherStatusActive)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() == 1, nil
}

// ClaimUnusedActive picks one active voucher and redeems it in a single
// statement. SKIP LOCKED keeps two racing claimers from ever selecting the
// same row; the loser simply moves on to the next one or gets nothing.
func (r *voucherRepo) ClaimUnusedActive(ctx context.Context) (*model.Voucher, error) {
	const q = `
UPDATE vouchers SET status = $1, redeemed_at = NOW(), updated_at = NOW()
 WHERE id = (
       SELECT id FROM vouchers
        WHERE status = $2
        ORDER BY created_at ASC
        FOR UPDATE SKIP LOCKED
        LIMIT 1
 )
RETURNING ` + voucherColumns + `;`

	row, err := pickRow(ctx, r.pool, nil, q, model.VoucherStatusRedeemed, model.VoucherStatusActive)
	if err != nil {
		return nil, err
	}
	v, err := scanVoucher(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (r *voucherRepo) SetPaymentReference(ctx context.Context, code, ref string) error {
	const q = `UPDATE vouchers SET payment_reference = $2, updated_at = NOW() WHERE code = $1;`
	_, err := execSQL(ctx, r.pool, nil, q, code, ref)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *voucherRepo) ListByStatus(ctx context.Context, status model.VoucherStatus, limit int) ([]*model.Voucher, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + voucherColumns + ` FROM vouchers WHERE status = $1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, nil, q, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *voucherRepo) RejectPendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `
UPDATE vouchers SET status = $1, updated_at = NOW()
 WHERE status = $2 AND created_at < $3;
`
	cmd, err := execSQL(ctx, r.pool, nil, q, model.VoucherStatusRejected, model.VoucherStatusPending, cutoff)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}
