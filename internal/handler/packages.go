package handler

import (
	"net/http"

	"github.com/funkypatns/progym/internal/dto"
	"github.com/funkypatns/progym/internal/service"

	"github.com/gin-gonic/gin"
)

type PackagesHandler struct{ svc service.PackageService }

func NewPackagesHandler(svc service.PackageService) *PackagesHandler {
	return &PackagesHandler{svc: svc}
}

// Assign godoc
// @Summary Assign a session package to a member
// @Tags packages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AssignPackageRequest true "Assignment data"
// @Success 201 {object} dto.PackageResponse
// @Failure 409 {object} apierror.Error
// @Router /v1/packages [post]
func (h *PackagesHandler) Assign(c *gin.Context) {
	var req dto.AssignPackageRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Assign(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CheckIn godoc
// @Summary Consume one session from a package
// @Description Retrying with the same idempotency key replays the stored
// @Description outcome instead of consuming another session.
// @Tags packages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Param body body dto.CheckInRequest true "Check-in data"
// @Success 200 {object} dto.CheckInResponse
// @Failure 409 {object} apierror.Error
// @Router /v1/packages/{id}/check-in [post]
func (h *PackagesHandler) CheckIn(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CheckInRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CheckIn(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PackagesHandler) Get(c *gin.Context) {
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

func (h *PackagesHandler) ListByMember(c *gin.Context) {
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
