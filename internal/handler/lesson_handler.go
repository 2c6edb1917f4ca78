package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// LessonHandler exposes lesson CRUD and completion tracking.
type LessonHandler struct {
	service *service.LessonService
}

// NewLessonHandler creates a new handler.
func NewLessonHandler(svc *service.LessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// Create godoc
// @Summary Create lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body service.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{courseId}/lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req service.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.service.Create(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Get godoc
// @Summary Get lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// ListByCourse godoc
// @Summary List lessons
// @Tags Lessons
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/lessons [get]
func (h *LessonHandler) ListByCourse(c *gin.Context) {
	lessons, err := h.service.ListByCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// Update godoc
// @Summary Update lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.UpdateLessonRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	var req service.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson payload"))
		return
	}

	lesson, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Delete godoc
// @Summary Delete lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Complete godoc
// @Summary Record lesson progress
// @Description Upsert the acting student's completion entry for a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.CompleteLessonRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id}/complete [post]
func (h *LessonHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CompleteLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}

	completion, err := h.service.SetCompletion(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, completion, nil)
}

// CompletedStudents godoc
// @Summary List students who completed a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/completions [get]
func (h *LessonHandler) CompletedStudents(c *gin.Context) {
	students, err := h.service.CompletedStudents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}
