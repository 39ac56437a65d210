package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/resp"
	"github.com/MorseWayne/shopcart/internal/service"
)

const (
	// HeaderCartSession 携带匿名购物车会话令牌的请求/响应头
	HeaderCartSession = "X-Cart-Session"

	// ContextKeyCartSession gin 上下文中保存会话 ID 的键
	ContextKeyCartSession = "cart_session_id"

	// ContextKeyNewCartSession 本次请求新开的会话为 true（请求未携带有效令牌）
	ContextKeyNewCartSession = "cart_session_new"
)

// CartSession 匿名购物车会话中间件。
// 请求头中的令牌有效时沿用其会话；缺失、过期或无效时开启新会话。
// 新签发或续签的令牌通过响应头 X-Cart-Session 返回，前端应保存并在后续请求中带上。
func CartSession(tokens service.SessionTokenService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := RequestIDFromContext(c.Request.Context())
		c.Set("request_id", reqID)

		var sessionID string
		if token := c.GetHeader(HeaderCartSession); token != "" {
			claims, err := tokens.Validate(token)
			switch {
			case err == nil:
				sessionID = claims.SessionID
				if tokens.NeedsRenewal(claims) {
					if renewed, err := tokens.Issue(sessionID); err == nil {
						c.Header(HeaderCartSession, renewed)
					} else {
						logger.Warn("failed to renew cart session token",
							zap.String("request_id", reqID), zap.Error(err))
					}
				}
			default:
				logger.Debug("cart session token rejected, starting new session",
					zap.String("request_id", reqID), zap.Error(err))
			}
		}

		if sessionID == "" {
			id, token, err := tokens.NewSession()
			if err != nil {
				logger.Error("failed to issue cart session token",
					zap.String("request_id", reqID), zap.Error(err))
				resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError,
					"failed to start cart session", reqID, "")
				c.Abort()
				return
			}
			sessionID = id
			c.Header(HeaderCartSession, token)
			c.Set(ContextKeyNewCartSession, true)
		}

		c.Set(ContextKeyCartSession, sessionID)
		c.Request = c.Request.WithContext(withCartSession(c.Request.Context(), sessionID))
		c.Next()
	}
}

// CartSessionID 读取 CartSession 中间件写入的会话 ID
func CartSessionID(c *gin.Context) string {
	if id := c.GetString(ContextKeyCartSession); id != "" {
		return id
	}
	return CartSessionFromContext(c.Request.Context())
}
