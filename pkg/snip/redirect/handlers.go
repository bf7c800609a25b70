package redirect

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snipdev/snip/pkg/snip/apperr"
	"github.com/snipdev/snip/pkg/snip/metrics"
)

// Resolver turns a short code into its target, counting the click
type Resolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

// Handler handles redirect requests
type Handler struct {
	links Resolver
}

// NewHandler creates a new redirect handler
func NewHandler(links Resolver) *Handler {
	return &Handler{links: links}
}

// Redirect handles short URL redirects.
// Every successful redirect has already been counted when Resolve returns.
func (h *Handler) Redirect(c *gin.Context) {
	url, err := h.links.Resolve(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			metrics.RedirectMissed()
			apperr.AbortWithStatus(c, http.StatusNotFound, "URL not found")
			return
		}
		apperr.Abort(c, err)
		return
	}

	metrics.RedirectServed()
	c.Redirect(http.StatusMovedPermanently, url)
}

// RegisterRoutes registers redirect routes on the root router
// This should be called AFTER all other routes to avoid conflicts
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/:shortCode", h.Redirect)
}
