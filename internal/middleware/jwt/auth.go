package jwt

import (
	"strings"

	"RxDash/pkg/back"
	"RxDash/pkg/util/myjwt"
	"RxDash/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// PrincipalSource 当前同步会话的登录主体
type PrincipalSource interface {
	Principal() string
}

// Auth 校验仪表盘运营账号的 Bearer token，通过后把 uuid / username 写入上下文。
// key 为空时拒绝全部请求；token 主体必须与当前同步会话一致。
func Auth(key string, session PrincipalSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			back.Error(c, xerr.Unauthorized, "token verification key not configured")
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			back.Error(c, xerr.Unauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := myjwt.ParseToken(key, tokenString)
		if err != nil || claims.Principal() == "" {
			back.Error(c, xerr.Unauthorized, "invalid token")
			c.Abort()
			return
		}
		if session == nil || claims.Principal() != session.Principal() {
			back.Error(c, xerr.Forbidden, "token does not belong to the active session")
			c.Abort()
			return
		}

		c.Set("uuid", claims.Principal())
		c.Set("username", claims.Username)
		c.Next()
	}
}
