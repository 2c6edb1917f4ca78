package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/service"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// ExportHandler exposes asynchronous roster export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Request godoc
// @Summary Request roster export
// @Description Queue a CSV or PDF export of a course roster
// @Tags Exports
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body service.RequestExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{courseId}/exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RequestExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.service.Request(c.Request.Context(), c.Param("courseId"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Get godoc
// @Summary Get export job
// @Description Job status plus a signed download link once finished
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download export artifact
// @Description Stream the file referenced by a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, job, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(file.Name())
	contentType := "text/csv"
	if job.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
