package handler

import (
	"net/http"
	"time"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/model"
	"github.com/funkypatns/progym/internal/repository"

	"github.com/gin-gonic/gin"
)

// ReceiptsHandler exposes the read side of the async receipt pipeline.
type ReceiptsHandler struct{ repo repository.ReceiptRepository }

func NewReceiptsHandler(repo repository.ReceiptRepository) *ReceiptsHandler {
	return &ReceiptsHandler{repo: repo}
}

func (h *ReceiptsHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	rec, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("receipt not found"))
		return
	}
	c.JSON(http.StatusOK, receiptToResponse(rec))
}

func (h *ReceiptsHandler) GetByPayment(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	rec, err := h.repo.FindByPayment(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("receipt not found"))
		return
	}
	c.JSON(http.StatusOK, receiptToResponse(rec))
}

func (h *ReceiptsHandler) ListByMember(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	recs, err := h.repo.ListByMember(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	out := make([]dto.ReceiptResponse, len(recs))
	for i := range recs {
		out[i] = *receiptToResponse(&recs[i])
	}
	c.JSON(http.StatusOK, out)
}

// Download streams the rendered PDF for a generated receipt.
func (h *ReceiptsHandler) Download(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	rec, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("receipt not found"))
		return
	}
	if rec.Status != model.ReceiptGenerated || rec.PDFPath == nil {
		c.JSON(http.StatusConflict, apierror.New("receipt PDF not generated yet"))
		return
	}
	c.FileAttachment(*rec.PDFPath, "receipt.pdf")
}

func receiptToResponse(r *model.Receipt) *dto.ReceiptResponse {
	resp := &dto.ReceiptResponse{
		ID:          r.ID.String(),
		Number:      r.Number,
		MemberID:    r.MemberID.String(),
		Amount:      r.Amount,
		Description: r.Description,
		Status:      r.Status,
		PDFPath:     r.PDFPath,
		EmailedTo:   r.EmailedTo,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.PaymentID != nil {
		pid := r.PaymentID.String()
		resp.PaymentID = &pid
	}
	if r.SubscriptionID != nil {
		sid := r.SubscriptionID.String()
		resp.SubscriptionID = &sid
	}
	return resp
}
