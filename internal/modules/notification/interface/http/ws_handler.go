package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"RxDash/internal/modules/notification/application/dto/request"
	"RxDash/internal/modules/notification/application/dto/respond"
	"RxDash/internal/modules/notification/application/service"
	"RxDash/pkg/util/myjwt"
	"RxDash/pkg/ws"
	"RxDash/pkg/xerr"
	"RxDash/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const actionTimeout = 15 * time.Second

// PrincipalSource 当前同步会话的登录主体
type PrincipalSource interface {
	Principal() string
}

type WsHandler struct {
	hub     *ws.Hub
	svc     service.NotificationService
	session PrincipalSource
	jwtKey  string
}

func NewWsHandler(hub *ws.Hub, svc service.NotificationService, session PrincipalSource, jwtKey string) *WsHandler {
	return &WsHandler{hub: hub, svc: svc, session: session, jwtKey: jwtKey}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connect 浏览器原生 WebSocket 不能带自定义 Header，token 走 query 参数，不经过鉴权中间件
func (h *WsHandler) Connect(c *gin.Context) {
	if h.jwtKey == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims, err := myjwt.ParseToken(h.jwtKey, c.Query("token"))
	if err != nil || claims.Principal() == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	principal := claims.Principal()
	if h.session == nil || principal != h.session.Principal() {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Error("ws upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(principal, conn)
	// 注册与快照入队在变更投递的间隙完成，之后的变更帧一定排在快照后面
	h.svc.ViewList(func(list respond.NotificationListRespond) {
		h.hub.Register(client)
		client.SendJSON(respond.PushFrame{Event: respond.FrameSnapshot, Data: list})
	})
	defer h.hub.Unregister(client)
	go client.WritePump()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(ws.PongWait))
		return nil
	})

	zlog.Info("dashboard client connected", zap.String("principal", principal), zap.Int("online", h.hub.Count()))
	for {
		var req request.WsActionRequest
		if err := conn.ReadJSON(&req); err != nil {
			zlog.Debug("dashboard client disconnected", zap.String("principal", principal), zap.Error(err))
			return
		}
		client.SendJSON(h.dispatch(c.Request.Context(), req))
	}
}

func (h *WsHandler) dispatch(parent context.Context, req request.WsActionRequest) respond.PushFrame {
	action := strings.TrimSpace(req.Action)
	id := strings.TrimSpace(req.NotificationId)

	switch action {
	case request.WsActionRead:
		if id == "" {
			return actionError(action, xerr.ErrParam)
		}
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		res := h.svc.MarkNotificationAsRead(ctx, id)
		return actionResult(action, respond.NewReadRespond(id, res, h.svc.UnreadCount()))
	case request.WsActionReadAll:
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		res := h.svc.MarkAllNotificationsAsRead(ctx)
		return actionResult(action, respond.NewReadRespond("", res, h.svc.UnreadCount()))
	case request.WsActionRemove:
		if id == "" {
			return actionError(action, xerr.ErrParam)
		}
		if !h.svc.RemoveNotificationById(id) {
			return actionError(action, xerr.ErrDisconnected)
		}
		return actionResult(action, respond.RemoveRespond{NotificationId: id, UnreadCount: h.svc.UnreadCount()})
	case request.WsActionHistory:
		if !h.svc.RequestNotificationHistory() {
			return actionError(action, xerr.ErrDisconnected)
		}
		return actionResult(action, nil)
	default:
		return actionError(action, xerr.New(xerr.BadRequest, "未知动作"))
	}
}

func actionResult(action string, result any) respond.PushFrame {
	return respond.PushFrame{Event: respond.FrameResult, Data: respond.ActionResult{Action: action, Result: result}}
}

func actionError(action string, e *xerr.CodeError) respond.PushFrame {
	return respond.PushFrame{Event: respond.FrameError, Data: respond.ActionError{Action: action, Code: e.Code, Message: e.Message}}
}
