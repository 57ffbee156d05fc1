package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/komunitas-api/internal/models"
	"github.com/noah-isme/komunitas-api/internal/service"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
	"github.com/noah-isme/komunitas-api/pkg/response"
)

// EngagementHandler exposes the like and comment endpoints shared by all
// content kinds. Routes carry the kind as a path segment.
type EngagementHandler struct {
	engagement *service.EngagementService
	resolver   *service.AccessResolver
}

// NewEngagementHandler constructs handler.
func NewEngagementHandler(engagement *service.EngagementService, resolver *service.AccessResolver) *EngagementHandler {
	return &EngagementHandler{engagement: engagement, resolver: resolver}
}

func (h *EngagementHandler) scopeAndKind(c *gin.Context) (models.AccessScope, models.ContentKind, bool) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.AccessScope{}, "", false
	}
	kind := models.ContentKind(c.Param("kind"))
	if !kind.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown content kind"))
		return models.AccessScope{}, "", false
	}
	scope, err := h.resolver.Resolve(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return models.AccessScope{}, "", false
	}
	return scope, kind, true
}

// LikeRequest sets the caller's like state on an item or a comment.
type LikeRequest struct {
	Liked bool `json:"liked"`
}

// ToggleLike godoc
// @Summary Set or clear the caller's like on a content item
// @Tags Engagement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Content kind" Enums(announcement, event, help_post)
// @Param id path string true "Content ID"
// @Param payload body handler.LikeRequest true "Like flag"
// @Success 200 {object} response.Envelope
// @Router /content/{kind}/{id}/like [put]
func (h *EngagementHandler) ToggleLike(c *gin.Context) {
	scope, kind, ok := h.scopeAndKind(c)
	if !ok {
		return
	}
	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.engagement.ToggleLike(c.Request.Context(), scope, kind, c.Param("id"), req.Liked)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListComments godoc
// @Summary List the comment threads of a content item
// @Tags Engagement
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Content kind" Enums(announcement, event, help_post)
// @Param id path string true "Content ID"
// @Param order query string false "newest_first or oldest_first"
// @Success 200 {object} response.Envelope
// @Router /content/{kind}/{id}/comments [get]
func (h *EngagementHandler) ListComments(c *gin.Context) {
	scope, kind, ok := h.scopeAndKind(c)
	if !ok {
		return
	}
	order := models.ThreadOrder(c.DefaultQuery("order", string(models.ThreadNewestFirst)))
	threads, err := h.engagement.GetThread(c.Request.Context(), scope, kind, c.Param("id"), order)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, threads, nil)
}

// AddComment godoc
// @Summary Comment on a content item, optionally replying to a top-level comment
// @Tags Engagement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "Content kind" Enums(announcement, event, help_post)
// @Param id path string true "Content ID"
// @Param payload body service.AddCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /content/{kind}/{id}/comments [post]
func (h *EngagementHandler) AddComment(c *gin.Context) {
	scope, kind, ok := h.scopeAndKind(c)
	if !ok {
		return
	}
	var req service.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comment, err := h.engagement.AddComment(c.Request.Context(), scope, kind, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// ToggleCommentLike godoc
// @Summary Set or clear the caller's like on a comment
// @Tags Engagement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param commentId path string true "Comment ID"
// @Param payload body handler.LikeRequest true "Like flag"
// @Success 200 {object} response.Envelope
// @Router /comments/{commentId}/like [put]
func (h *EngagementHandler) ToggleCommentLike(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	scope, err := h.resolver.Resolve(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.engagement.ToggleCommentLike(c.Request.Context(), scope, c.Param("commentId"), req.Liked)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
