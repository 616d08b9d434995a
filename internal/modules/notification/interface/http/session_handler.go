package handler

import (
	"time"

	"RxDash/internal/modules/notification/application/dto/request"
	"RxDash/internal/modules/notification/application/dto/respond"
	"RxDash/internal/modules/notification/application/service"
	"RxDash/pkg/back"
	"RxDash/pkg/xerr"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	session service.SessionService
	svc     service.NotificationService
}

func NewSessionHandler(session service.SessionService, svc service.NotificationService) *SessionHandler {
	return &SessionHandler{session: session, svc: svc}
}

// SetToken 前端登录后把上游签发的 token 交给同步服务
func (h *SessionHandler) SetToken(c *gin.Context) {
	var req request.SetTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	if err := h.session.SetToken(req.Token); err != nil {
		back.Result(c, nil, err)
		return
	}
	back.Success(c, h.status())
}

func (h *SessionHandler) Logout(c *gin.Context) {
	h.session.Logout()
	back.Success(c, h.status())
}

func (h *SessionHandler) Status(c *gin.Context) {
	back.Success(c, h.status())
}

func (h *SessionHandler) status() respond.SessionStatusRespond {
	st := h.session.State()
	out := respond.SessionStatusRespond{
		Authenticated: st.Authenticated,
		Principal:     st.Principal,
		Username:      st.Username,
		IsConnected:   h.svc.IsConnected(),
	}
	if !st.ExpiresAt.IsZero() {
		out.ExpiresAt = st.ExpiresAt.Format(time.RFC3339)
	}
	return out
}
