package intake

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"crm_intake_backend/platform/config"
)

// WebhookAuth guards the legacy intake endpoints with a shared-secret
// header. The response for a bad or missing token carries no detail about
// which check failed.
func WebhookAuth(cfg config.WebhookConfig) gin.HandlerFunc {
	token := []byte(cfg.GetWebhookToken())
	return func(c *gin.Context) {
		provided := []byte(c.GetHeader("x-webhook-token"))
		if len(provided) == 0 || subtle.ConstantTimeCompare(provided, token) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
