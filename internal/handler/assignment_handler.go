package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// AssignmentHandler exposes assignment CRUD, submissions and grading.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{courseId}/assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.service.Create(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Get godoc
// @Summary Get assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// ListByCourse godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/assignments [get]
func (h *AssignmentHandler) ListByCourse(c *gin.Context) {
	assignments, err := h.service.ListByCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateAssignmentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	var req service.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit assignment work
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.SubmitAssignmentRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Submissions godoc
// @Summary List assignment submissions
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) Submissions(c *gin.Context) {
	submissions, err := h.service.Submissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Param submissionId path string true "Submission ID"
// @Param payload body service.GradeSubmissionRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{submissionId}/grade [post]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	submission, err := h.service.GradeSubmission(c.Request.Context(), c.Param("submissionId"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
