package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/komunitas-api/internal/service"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
	"github.com/noah-isme/komunitas-api/pkg/response"
)

// HelpPostHandler exposes help post endpoints including the moderation
// surface.
type HelpPostHandler struct {
	posts    *service.HelpPostService
	resolver *service.AccessResolver
}

// NewHelpPostHandler constructs handler.
func NewHelpPostHandler(posts *service.HelpPostService, resolver *service.AccessResolver) *HelpPostHandler {
	return &HelpPostHandler{posts: posts, resolver: resolver}
}

// List godoc
// @Summary List help posts
// @Tags HelpPosts
// @Produce json
// @Security BearerAuth
// @Param search query string false "Title/body search"
// @Param groupId query string false "Filter by target group"
// @Param category query string false "Filter by category"
// @Param sort query string false "newest, oldest, most_liked or most_viewed"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Param mine query bool false "Only the caller's own posts"
// @Param status query string false "Moderation status (admins and own posts)"
// @Success 200 {object} response.Envelope
// @Router /help-posts [get]
func (h *HelpPostHandler) List(c *gin.Context) {
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

	req := service.HelpPostListRequest{
		Search:   c.Query("search"),
		GroupID:  c.Query("groupId"),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 0),
		Mine:     queryBool(c, "mine"),
		Status:   c.Query("status"),
	}
	items, pagination, err := h.posts.List(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Fetch one help post and record the view
// @Tags HelpPosts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Help post ID"
// @Success 200 {object} response.Envelope
// @Router /help-posts/{id} [get]
func (h *HelpPostHandler) Get(c *gin.Context) {
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
	item, err := h.posts.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Submit a help post for moderation
// @Tags HelpPosts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateHelpPostRequest true "Help post payload"
// @Success 201 {object} response.Envelope
// @Router /help-posts [post]
func (h *HelpPostHandler) Create(c *gin.Context) {
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
	var req service.CreateHelpPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.posts.Create(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit a help post
// @Tags HelpPosts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Help post ID"
// @Param payload body service.UpdateHelpPostRequest true "Help post payload"
// @Success 200 {object} response.Envelope
// @Router /help-posts/{id} [put]
func (h *HelpPostHandler) Update(c *gin.Context) {
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
	var req service.UpdateHelpPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.posts.Update(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Moderate godoc
// @Summary Approve or reject a help post
// @Tags HelpPosts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Help post ID"
// @Param payload body service.ModerateHelpPostRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /help-posts/{id}/moderate [post]
func (h *HelpPostHandler) Moderate(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ModerateHelpPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.posts.Moderate(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Pin godoc
// @Summary Pin or unpin an approved help post
// @Tags HelpPosts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Help post ID"
// @Param payload body handler.PinRequest true "Pin flag"
// @Success 200 {object} response.Envelope
// @Router /help-posts/{id}/pin [post]
func (h *HelpPostHandler) Pin(c *gin.Context) {
	var req PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.posts.SetPinned(c.Request.Context(), c.Param("id"), req.Pinned)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a help post
// @Tags HelpPosts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Help post ID"
// @Success 204 "No Content"
// @Router /help-posts/{id} [delete]
func (h *HelpPostHandler) Delete(c *gin.Context) {
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
	if err := h.posts.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PinRequest toggles the pinned flag of a help post.
type PinRequest struct {
	Pinned bool `json:"pinned"`
}
