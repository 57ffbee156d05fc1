package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/komunitas-api/internal/models"
	"github.com/noah-isme/komunitas-api/internal/service"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
	"github.com/noah-isme/komunitas-api/pkg/response"
)

// ExportHandler exposes the admin engagement report downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// EngagementReport godoc
// @Summary Download the engagement report of a content item
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param kind path string true "Content kind" Enums(announcement, event, help_post)
// @Param id path string true "Content ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /exports/engagement/{kind}/{id} [get]
func (h *ExportHandler) EngagementReport(c *gin.Context) {
	kind := models.ContentKind(c.Param("kind"))
	result, err := h.exports.EngagementReport(c.Request.Context(), kind, c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+result.FileName)
	c.Data(200, result.ContentType, result.Payload)
}
