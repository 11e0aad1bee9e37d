package middlewares

import (
	"encoding/json"
	"net/http"

	"bitbucket.org/mmdatafocus/pos_ledger_backend/config"
	"bitbucket.org/mmdatafocus/pos_ledger_backend/utils"
	"github.com/gin-gonic/gin"
)

// Session is what a Redis "Token:<token>" key holds.
type Session struct {
	UserId int    `json:"id"`
	Name   string `json:"name"`
}

// SessionMiddleware resolves the acting user from the token header. The token
// is tried as a signed JWT first, then as a Redis session key. Requests
// without a token pass through anonymously.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		session, ok := resolveSession(token)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), session.UserId)
		ctx = utils.SetUserNameInContext(ctx, session.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func resolveSession(token string) (*Session, bool) {
	if claims, err := utils.JwtValidate(token); err == nil {
		return &Session{UserId: claims.ID, Name: claims.Name}, true
	}
	raw, exists, err := config.GetRedisValue("Token:" + token)
	if err != nil || !exists {
		return nil, false
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.UserId <= 0 {
		return nil, false
	}
	return &session, true
}
