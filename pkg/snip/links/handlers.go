package links

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snipdev/snip/pkg/snip/apperr"
	"github.com/snipdev/snip/pkg/snip/auth"
)

// Handler handles link-related requests
type Handler struct {
	service *Service
	auth    auth.TokenValidator
	baseURL string
}

// NewHandler creates a new links handler. An empty baseURL derives the
// origin of short URLs from each request.
func NewHandler(service *Service, validator auth.TokenValidator, baseURL string) *Handler {
	return &Handler{
		service: service,
		auth:    validator,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ShortenRequest represents the request to shorten a URL
type ShortenRequest struct {
	OriginalURL string     `json:"originalUrl" binding:"required,url"`
	CustomAlias string     `json:"customAlias" binding:"omitempty,max=10"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// UpdateRequest represents the request to retarget a link
type UpdateRequest struct {
	OriginalURL string `json:"originalUrl" binding:"required,url"`
}

// BaseURL returns the configured origin, or the scheme and host the request came in on
func BaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	// Only a well-known scheme from the proxy header is trusted
	switch proto := strings.ToLower(strings.TrimSpace(strings.Split(c.GetHeader("X-Forwarded-Proto"), ",")[0])); proto {
	case "http", "https":
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}

// Shorten creates a short link, or returns the caller's existing one for the URL
// @Summary Shorten a URL
// @Tags links
// @Accept json
// @Produce json
// @Param request body ShortenRequest true "URL to shorten"
// @Success 201 {object} LinkView
// @Failure 400 {object} apperr.Response "Validation error or alias in use"
// @Failure 401 {object} apperr.Response "Invalid token"
// @Router /shorten [post]
func (h *Handler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.AbortWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := auth.GetUserID(c)
	view, err := h.service.Shorten(c.Request.Context(), ShortenInput{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
	}, userID, BaseURL(c, h.baseURL))
	if err != nil {
		apperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// MyURLs lists the caller's links
// @Summary List my links
// @Tags links
// @Produce json
// @Success 200 {array} LinkView
// @Failure 401 {object} apperr.Response "Authentication required"
// @Security BearerAuth
// @Router /my-urls [get]
func (h *Handler) MyURLs(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	views, err := h.service.ListByOwner(c.Request.Context(), userID, BaseURL(c, h.baseURL))
	if err != nil {
		apperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// Update retargets a link
// @Summary Update a link
// @Tags links
// @Accept json
// @Produce json
// @Param shortCode path string true "Short code"
// @Param request body UpdateRequest true "New target"
// @Success 200 {object} LinkView
// @Failure 403 {object} apperr.Response "Not the owner"
// @Failure 404 {object} apperr.Response "Link not found"
// @Security BearerAuth
// @Router /urls/{shortCode} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.AbortWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.service.Update(c.Request.Context(), c.Param("shortCode"), req.OriginalURL, userID, BaseURL(c, h.baseURL))
	if err != nil {
		apperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Delete soft deletes a link
// @Summary Delete a link
// @Tags links
// @Produce json
// @Param shortCode path string true "Short code"
// @Success 200 {object} map[string]string "URL deleted"
// @Failure 403 {object} apperr.Response "Not the owner"
// @Failure 404 {object} apperr.Response "Link not found"
// @Security BearerAuth
// @Router /urls/{shortCode} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	if err := h.service.Delete(c.Request.Context(), c.Param("shortCode"), userID); err != nil {
		apperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "URL deleted successfully"})
}

// Stats returns a link's view without counting a click
// @Summary Link statistics
// @Tags links
// @Produce json
// @Param shortCode path string true "Short code"
// @Success 200 {object} LinkView
// @Failure 404 {object} apperr.Response "Link not found"
// @Router /stats/{shortCode} [get]
func (h *Handler) Stats(c *gin.Context) {
	view, err := h.service.Stats(c.Request.Context(), c.Param("shortCode"), BaseURL(c, h.baseURL))
	if err != nil {
		apperr.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// RegisterRoutes registers link routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	required := auth.AuthMiddleware(h.auth)

	r.POST("/shorten", auth.OptionalAuthMiddleware(h.auth), h.Shorten)
	r.GET("/my-urls", required, h.MyURLs)
	r.PUT("/urls/:shortCode", required, h.Update)
	r.DELETE("/urls/:shortCode", required, h.Delete)
	r.GET("/stats/:shortCode", h.Stats)
}
