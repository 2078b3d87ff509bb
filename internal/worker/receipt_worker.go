package worker

// receipt_worker.go
// Processes receipt emission jobs from QueueReceipts: allocates the receipt
// number, renders the PDF document, and optionally enqueues an email job.
// Failed generations are rescheduled with exponential backoff; jobs that
// exhaust their retries are marked failed and parked in the DLQ.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/funkypatns/progym/internal/infra"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ReceiptWorker turns completed payments into immutable receipt documents.
type ReceiptWorker struct {
	receiptRepo    repository.ReceiptRepository
	paymentRepo    repository.PaymentRepository
	memberRepo     repository.MemberRepository
	dispatcher     *Dispatcher
	rdb            *redis.Client
	gymName        string
	pdfStoragePath string
	maxRetries     int
}

func NewReceiptWorker(
	receiptRepo repository.ReceiptRepository,
	paymentRepo repository.PaymentRepository,
	memberRepo repository.MemberRepository,
	dispatcher *Dispatcher,
	rdb *redis.Client,
	gymName, pdfStoragePath string,
	maxRetries int,
) *ReceiptWorker {
	return &ReceiptWorker{
		receiptRepo:    receiptRepo,
		paymentRepo:    paymentRepo,
		memberRepo:     memberRepo,
		dispatcher:     dispatcher,
		rdb:            rdb,
		gymName:        gymName,
		pdfStoragePath: pdfStoragePath,
		maxRetries:     maxRetries,
	}
}

// Process handles a single receipt job:
//  1. Parse ReceiptJobPayload
//  2. Fetch payment and member; skip if a receipt already exists (redelivery)
//  3. Create Receipt row with status pending and a sequence-assigned number
//  4. Render the PDF with up to 3 attempts
//  5. Mark generated, or schedule a retry / park in DLQ
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return
	}

	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		log.Error().Str("payment_id", payload.PaymentID).Msg("receipt_worker: invalid payment_id")
		return
	}

	// Redelivered jobs must not duplicate receipts.
	if existing, err := w.receiptRepo.FindByPayment(ctx, paymentID); err == nil && existing != nil {
		log.Debug().Str("payment_id", payload.PaymentID).Msg("receipt_worker: receipt already exists")
		return
	}

	payment, err := w.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", payload.PaymentID).Msg("receipt_worker: payment not found")
		return
	}
	member, err := w.memberRepo.FindByID(ctx, payment.MemberID)
	if err != nil {
		log.Error().Err(err).Str("member_id", payment.MemberID.String()).Msg("receipt_worker: member not found")
		return
	}

	number, err := w.receiptRepo.NextReceiptNumber(ctx)
	if err != nil {
		log.Error().Err(err).Msg("receipt_worker: failed to allocate receipt number")
		return
	}

	description := fmt.Sprintf("Payment — %s", payment.Method)
	if payload.SubscriptionID != nil {
		description = "Subscription payment"
	}

	receipt := &model.Receipt{
		Number:         number,
		MemberID:       payment.MemberID,
		PaymentID:      &payment.ID,
		Amount:         payment.Amount,
		Description:    description,
		Status:         model.ReceiptPending,
	}
	if payload.SubscriptionID != nil {
		if sid, err := uuid.Parse(*payload.SubscriptionID); err == nil {
			receipt.SubscriptionID = &sid
		}
	}
	if err := w.receiptRepo.Create(ctx, receipt); err != nil {
		log.Error().Err(err).Str("payment_id", payload.PaymentID).Msg("receipt_worker: failed to create receipt")
		return
	}

	w.Generate(ctx, receipt, member, payment, payload.Payload())
}

// Generate renders the PDF for an existing pending receipt. It is shared by
// Process and the retry cron.
func (w *ReceiptWorker) Generate(ctx context.Context, receipt *model.Receipt, member *model.Member, payment *model.Payment, raw json.RawMessage) {
	genErr := withRetry(ctx, 3, func(attempt int) error {
		path, err := infra.GenerateReceiptPDF(infra.ReceiptDocument{
			GymName:     w.gymName,
			Number:      receipt.Number,
			MemberName:  member.FullName,
			Description: receipt.Description,
			Amount:      receipt.Amount,
			Method:      payment.Method,
			IssuedAt:    time.Now(),
		}, w.pdfStoragePath)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Int("number", receipt.Number).
				Msg("receipt_worker: pdf generation failed")
			return err
		}
		receipt.PDFPath = &path
		return nil
	})

	if genErr != nil {
		w.scheduleRetry(ctx, receipt, raw, genErr)
		return
	}

	receipt.Status = model.ReceiptGenerated
	receipt.LastError = nil
	receipt.NextRetryAt = nil
	if err := w.receiptRepo.Update(ctx, receipt); err != nil {
		log.Error().Err(err).Int("number", receipt.Number).Msg("receipt_worker: failed to persist receipt")
		return
	}
	log.Info().Int("number", receipt.Number).Msg("receipt_worker: receipt generated")

	// Email delivery is best-effort and runs in its own job.
	if member.Email != nil && *member.Email != "" && receipt.PDFPath != nil {
		to := *member.Email
		receipt.EmailedTo = &to
		_ = w.receiptRepo.Update(ctx, receipt)
		_ = w.dispatcher.EnqueueEmail(ctx, EmailJobPayload{
			ToEmail: to,
			Subject: fmt.Sprintf("%s — receipt #%d", w.gymName, receipt.Number),
			Body:    fmt.Sprintf("Hi %s,\n\nplease find your receipt attached.\n", member.FullName),
			PDFPath: *receipt.PDFPath,
		})
	}
}

// scheduleRetry bumps the retry counter and either reschedules the receipt
// for the retry cron or gives up and parks the job in the DLQ.
func (w *ReceiptWorker) scheduleRetry(ctx context.Context, receipt *model.Receipt, raw json.RawMessage, cause error) {
	receipt.RetryCount++
	msg := cause.Error()
	receipt.LastError = &msg

	if receipt.RetryCount >= w.maxRetries {
		receipt.Status = model.ReceiptFailed
		receipt.NextRetryAt = nil
		if err := w.receiptRepo.Update(ctx, receipt); err != nil {
			log.Error().Err(err).Int("number", receipt.Number).Msg("receipt_worker: failed to mark receipt failed")
		}
		SendToDLQ(ctx, w.rdb, QueueReceipts, "receipt", raw, msg, receipt.RetryCount)
		return
	}

	next := time.Now().Add(time.Duration(1<<receipt.RetryCount) * time.Minute)
	receipt.NextRetryAt = &next
	if err := w.receiptRepo.Update(ctx, receipt); err != nil {
		log.Error().Err(err).Int("number", receipt.Number).Msg("receipt_worker: failed to schedule retry")
	}
}

// Payload re-marshals the job payload for DLQ bookkeeping.
func (p ReceiptJobPayload) Payload() json.RawMessage {
	data, _ := json.Marshal(p)
	return data
}
