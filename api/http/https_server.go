package http

import (
	"net/http"

	"RxDash/internal/config"
	jwtMiddleware "RxDash/internal/middleware/jwt"
	"RxDash/internal/modules/notification/application/service"
	notificationHandler "RxDash/internal/modules/notification/interface/http"
	"RxDash/pkg/ssl"
	"RxDash/pkg/ws"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps 路由依赖；MCP 为 nil 时不挂载 /mcp
type Deps struct {
	Conf          *config.Config
	Hub           *ws.Hub
	Notifications service.NotificationService
	Session       service.SessionService
	MCP           http.Handler
}

func NewEngine(d Deps) *gin.Engine {
	GE := gin.New()
	GE.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Mcp-Session-Id"}
	GE.Use(cors.New(corsConfig))
	if d.Conf.TLSRedirect {
		GE.Use(ssl.TlsHandler(d.Conf.MainConfig.Host, d.Conf.MainConfig.Port))
	}

	notificationH := notificationHandler.NewNotificationHandler(d.Notifications)
	sessionH := notificationHandler.NewSessionHandler(d.Session, d.Notifications)
	wsH := notificationHandler.NewWsHandler(d.Hub, d.Notifications, d.Session, d.Conf.JwtConfig.Key)

	GE.POST("/session/token", sessionH.SetToken)
	GE.GET("/session/status", sessionH.Status)
	GE.GET("/wss", wsH.Connect)

	authed := GE.Group("/")
	authed.Use(jwtMiddleware.Auth(d.Conf.JwtConfig.Key, d.Session))
	authed.GET("/auth/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"uuid":     c.GetString("uuid"),
			"username": c.GetString("username"),
		})
	})
	authed.POST("/session/logout", sessionH.Logout)
	authed.GET("/notification/list", notificationH.List)
	authed.POST("/notification/read", notificationH.MarkRead)
	authed.POST("/notification/readAll", notificationH.MarkAllRead)
	authed.POST("/notification/remove", notificationH.Remove)
	authed.POST("/notification/history", notificationH.RequestHistory)
	authed.GET("/notification/audits", notificationH.ListReadAudits)
	if d.MCP != nil {
		authed.Any("/mcp", gin.WrapH(d.MCP))
	}
	return GE
}
