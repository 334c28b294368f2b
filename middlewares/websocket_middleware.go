package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor-sync/kds"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

const identityKey = "kds_identity"

// WebSocketIdentity -> token opsional (?token= atau Authorization: Bearer) untuk nama di roster presence.
// Tanpa token koneksi tetap diterima sebagai anonim; token rusak ditolak.
func WebSocketIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.Next()
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(identityKey, kds.Identity{
			UserID:   claims.UserID,
			Name:     claims.Name,
			Role:     claims.Role,
			PhotoURL: claims.PhotoURL,
		})
		c.Next()
	}
}

// IdentityFrom -> identitas yang dipasang WebSocketIdentity, kosong untuk koneksi anonim
func IdentityFrom(c *gin.Context) kds.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(kds.Identity); ok {
			return id
		}
	}
	return kds.Identity{}
}
