package worker

// retry_cron.go
// Background goroutine that periodically re-attempts PDF generation for
// receipts stuck in status='pending' with a next_retry_at in the past.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/funkypatns/progym/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	ReceiptRepo repository.ReceiptRepository
	PaymentRepo repository.PaymentRepository
	MemberRepo  repository.MemberRepository
	Worker      *ReceiptWorker
}

// StartRetryCron launches a background goroutine that ticks every 30s and
// re-attempts generation for due pending receipts. It respects the context
// for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	due, err := cfg.ReceiptRepo.FindPendingRetries(ctx, time.Now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending receipts")
		return
	}

	for i := range due {
		receipt := &due[i]
		if receipt.PaymentID == nil {
			continue
		}
		payment, err := cfg.PaymentRepo.FindByID(ctx, *receipt.PaymentID)
		if err != nil {
			log.Warn().Err(err).Int("number", receipt.Number).Msg("retry_cron: payment missing")
			continue
		}
		member, err := cfg.MemberRepo.FindByID(ctx, payment.MemberID)
		if err != nil {
			log.Warn().Err(err).Int("number", receipt.Number).Msg("retry_cron: member missing")
			continue
		}

		raw, _ := json.Marshal(ReceiptJobPayload{
			PaymentID: payment.ID.String(),
			MemberID:  member.ID.String(),
		})
		log.Info().Int("number", receipt.Number).Int("retry", receipt.RetryCount).
			Msg("retry_cron: re-attempting receipt generation")
		cfg.Worker.Generate(ctx, receipt, member, payment, raw)
	}
}
