package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// EnrollmentHandler exposes enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Enroll in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param course_id query string false "Course filter"
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.EnrollmentFilter{
		CourseID: c.Query("course_id"),
		Status:   models.EnrollmentStatus(c.Query("status")),
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "page_size", 20),
	}
	// Students only ever see their own memberships.
	if claims.Role == models.RoleStudent {
		filter.UserID = claims.UserID
	} else if userID := c.Query("user_id"); userID != "" {
		filter.UserID = userID
	}

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Update enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	enrollment, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Delete godoc
// @Summary Delete enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
