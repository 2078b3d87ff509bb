package handler

import (
	"net/http"

	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/service"

	"github.com/gin-gonic/gin"
)

type SubscriptionsHandler struct{ svc service.SubscriptionService }

func NewSubscriptionsHandler(svc service.SubscriptionService) *SubscriptionsHandler {
	return &SubscriptionsHandler{svc: svc}
}

// Create godoc
// @Summary Create a subscription for a member
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateSubscriptionRequest true "Subscription data"
// @Success 201 {object} dto.CreateSubscriptionResponse
// @Failure 409 {object} apierror.Error
// @Router /v1/subscriptions [post]
func (h *SubscriptionsHandler) Create(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Renew godoc
// @Summary Renew a member's subscription as a fresh cycle
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RenewSubscriptionRequest true "Renewal data"
// @Success 201 {object} dto.CreateSubscriptionResponse
// @Router /v1/subscriptions/renew [post]
func (h *SubscriptionsHandler) Renew(c *gin.Context) {
	var req dto.RenewSubscriptionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Renew(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// TogglePause pauses an active subscription or resumes a paused one.
func (h *SubscriptionsHandler) TogglePause(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.TogglePauseRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.TogglePause(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary Cancel a subscription, optionally refunding the unused remainder
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Param body body dto.CancelSubscriptionRequest true "Cancellation data"
// @Success 200 {object} dto.CancelSubscriptionResponse
// @Failure 409 {object} apierror.Error
// @Router /v1/subscriptions/{id}/cancel [post]
func (h *SubscriptionsHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelSubscriptionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PreviewCancel quotes the proration without changing anything.
func (h *SubscriptionsHandler) PreviewCancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.PreviewCancel(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionsHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionsHandler) ListByMember(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListByMember(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
