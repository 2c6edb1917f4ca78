package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// PaymentHandler exposes enrollment payment endpoints.
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Charge godoc
// @Summary Pay for an enrollment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.ChargeRequest true "Charge payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Charge(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	payment, err := h.service.Charge(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Status godoc
// @Summary Get payment status
// @Description Refresh the stored payment from the provider
// @Tags Payments
// @Produce json
// @Param intentId path string true "Payment intent ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{intentId} [get]
func (h *PaymentHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payment, err := h.service.Status(c.Request.Context(), c.Param("intentId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// History godoc
// @Summary List own payments
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payments, err := h.service.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
