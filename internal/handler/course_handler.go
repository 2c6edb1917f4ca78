package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// CourseHandler exposes course CRUD and the composed catalog.
type CourseHandler struct {
	service *service.CourseService
	catalog *service.CatalogService
}

// NewCourseHandler creates a new handler.
func NewCourseHandler(svc *service.CourseService, catalog *service.CatalogService) *CourseHandler {
	return &CourseHandler{service: svc, catalog: catalog}
}

// Create godoc
// @Summary Create course
// @Description Create a course with optional media attachments
// @Tags Courses
// @Accept mpfd
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param price formData number false "Price"
// @Param media formData file false "Media files"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req, files, err := parseCourseForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	course, err := h.service.Create(c.Request.Context(), req, files, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param category query string false "Category filter"
// @Param instructor_id query string false "Instructor filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	filter := models.CourseFilter{
		Category:     c.Query("category"),
		InstructorID: c.Query("instructor_id"),
		Page:         intQuery(c, "page", 1),
		PageSize:     intQuery(c, "page_size", 20),
	}

	courses, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Catalog godoc
// @Summary Composed catalog
// @Description Courses with instructor and child collections resolved
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/catalog [get]
func (h *CourseHandler) Catalog(c *gin.Context) {
	views, err := h.catalog.Compose(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.service.Update(c.Request.Context(), c.Param("courseId"), req, nil, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("courseId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseCourseForm(c *gin.Context) (service.CreateCourseRequest, []service.CourseMedia, error) {
	var req service.CreateCourseRequest
	req.Title = c.PostForm("title")
	req.Description = c.PostForm("description")
	req.Duration = c.PostForm("duration")
	req.Category = c.PostForm("category")
	if raw := c.PostForm("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, nil, appErrors.Clone(appErrors.ErrValidation, "invalid price")
		}
		req.Price = price
	}

	form, err := c.MultipartForm()
	if err != nil {
		// JSON bodies are accepted when no media is attached.
		if bindErr := c.ShouldBindJSON(&req); bindErr == nil {
			return req, nil, nil
		}
		return req, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload")
	}

	var files []service.CourseMedia
	for _, header := range form.File["media"] {
		file, err := header.Open()
		if err != nil {
			return req, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable media file")
		}
		files = append(files, service.CourseMedia{Filename: header.Filename, Content: file})
	}
	return req, files, nil
}
