package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewRouter builds the gin.Engine exposing the single webhook route the
// orchestrator serves alongside its background loops.
func NewRouter(h *Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.PureJSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/webhook/filevine", h.serveHTTP)

	return r.Handler()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("requestId", id)
		c.Next()
		slog.Info("webhook request", "requestId", id, "status", c.Writer.Status(), "path", c.Request.URL.Path)
	}
}

// serveHTTP adapts the gin.Context to Handle, reading the raw body and
// returning HTTP 200 with a minimal JSON envelope whether or not handling
// succeeded (only an unreadable body gets a 400) — Origin's webhook
// delivery retries on non-2xx, and a processing failure here is already
// logged and recoverable on the next full pass, so a 500 would only trigger
// pointless redelivery storms.
func (h *Handler) serveHTTP(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if err := h.Handle(c.Request.Context(), body); err != nil {
		slog.Error("webhook handling failed", "error", err)
		c.PureJSON(http.StatusOK, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.PureJSON(http.StatusOK, gin.H{"status": "ok"})
}
