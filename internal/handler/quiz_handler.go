package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// QuizHandler exposes quiz CRUD and scored submissions.
type QuizHandler struct {
	service *service.QuizService
}

// NewQuizHandler creates a new handler.
func NewQuizHandler(svc *service.QuizService) *QuizHandler {
	return &QuizHandler{service: svc}
}

// Create godoc
// @Summary Create quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body service.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{courseId}/quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	var req service.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quiz payload"))
		return
	}

	quiz, err := h.service.Create(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// Get godoc
// @Summary Get quiz with questions
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	quiz, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// ListByCourse godoc
// @Summary List quizzes
// @Tags Quizzes
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/quizzes [get]
func (h *QuizHandler) ListByCourse(c *gin.Context) {
	quizzes, err := h.service.ListByCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Update godoc
// @Summary Update quiz
// @Description Rename a quiz and optionally replace its question set
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body service.UpdateQuizRequest true "Quiz payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id} [put]
func (h *QuizHandler) Update(c *gin.Context) {
	var req service.UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quiz payload"))
		return
	}

	quiz, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Delete godoc
// @Summary Delete quiz
// @Tags Quizzes
// @Param id path string true "Quiz ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit quiz answers
// @Description Score the answers server-side and upsert the attempt
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body service.SubmitQuizRequest true "Answers payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id}/submissions [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitQuizRequest
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

// MySubmission godoc
// @Summary Get own quiz attempt
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id}/submissions/me [get]
func (h *QuizHandler) MySubmission(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	submission, err := h.service.Submission(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Submissions godoc
// @Summary List quiz attempts
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/submissions [get]
func (h *QuizHandler) Submissions(c *gin.Context) {
	submissions, err := h.service.Submissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
