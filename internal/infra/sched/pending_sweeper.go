package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wifi-voucher-gateway/internal/domain/ports/repository"
	"wifi-voucher-gateway/internal/infra/metrics"
)

// PendingSweeper periodically rejects vouchers stuck in pending. A push
// whose confirmation never arrives leaves the voucher pending forever
// otherwise; once a voucher is older than the TTL no callback can still be
// expected, and rejecting it keeps the books honest for audit.
type PendingSweeper struct {
	interval time.Duration
	ttl      time.Duration
	vouchers repository.VoucherRepository
	log      *zerolog.Logger
}

func NewPendingSweeper(interval, ttl time.Duration, vouchers repository.VoucherRepository, logger *zerolog.Logger) *PendingSweeper {
	swLog := logger.With().Str("component", "PendingSweeper").Logger()
	return &PendingSweeper{
		interval: interval,
		ttl:      ttl,
		vouchers: vouchers,
		log:      &swLog,
	}
}

func (w *PendingSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("ttl", w.ttl).Msg("Starting pending sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping pending sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.vouchers.RejectPendingBefore(ctx, time.Now().Add(-w.ttl))
			if err != nil {
				w.log.Error().Err(err).Msg("pending sweep error")
				continue
			}
			if n > 0 {
				metrics.AddPendingSwept(n)
				w.log.Info().Int("count", n).Msg("stale pending vouchers rejected")
			}
		}
	}
}
