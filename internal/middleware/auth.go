package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opendiscourse/corpusd/internal/pkg/errcode"
	"github.com/opendiscourse/corpusd/internal/pkg/keyset"
	"github.com/opendiscourse/corpusd/internal/pkg/response"
)

// BearerAuth validates the Authorization header against the key set. When
// the verifier does not require auth the header is ignored entirely.
func BearerAuth(verifier *keyset.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.Required() {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, errcode.Unauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, http.StatusUnauthorized, errcode.Unauthorized, "invalid authorization")
			c.Abort()
			return
		}
		if err := verifier.Verify(c.Request.Context(), parts[1]); err != nil {
			response.Error(c, http.StatusUnauthorized, errcode.Unauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Next()
	}
}
