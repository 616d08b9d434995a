package handler

import (
	"strings"

	"RxDash/internal/modules/notification/application/dto/request"
	"RxDash/internal/modules/notification/application/dto/respond"
	"RxDash/internal/modules/notification/application/service"
	"RxDash/pkg/back"
	"RxDash/pkg/xerr"
	"RxDash/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(c *gin.Context) {
	back.Success(c, h.svc.List())
}

// MarkRead 上游接口失败时仍返回成功，结果放在 outcome 字段
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := bindNotificationID(c)
	if !ok {
		return
	}
	res := h.svc.MarkNotificationAsRead(c.Request.Context(), id)
	back.Success(c, respond.NewReadRespond(id, res, h.svc.UnreadCount()))
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	res := h.svc.MarkAllNotificationsAsRead(c.Request.Context())
	back.Success(c, respond.NewReadRespond("", res, h.svc.UnreadCount()))
}

func (h *NotificationHandler) Remove(c *gin.Context) {
	id, ok := bindNotificationID(c)
	if !ok {
		return
	}
	if !h.svc.RemoveNotificationById(id) {
		back.Result(c, nil, xerr.ErrDisconnected)
		return
	}
	back.Success(c, respond.RemoveRespond{NotificationId: id, UnreadCount: h.svc.UnreadCount()})
}

func (h *NotificationHandler) RequestHistory(c *gin.Context) {
	if !h.svc.RequestNotificationHistory() {
		back.Result(c, nil, xerr.ErrDisconnected)
		return
	}
	back.Success(c, nil)
}

func (h *NotificationHandler) ListReadAudits(c *gin.Context) {
	var req request.AuditListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.ListReadAudits(c.Request.Context(), req)
	back.Result(c, data, err)
}

func bindNotificationID(c *gin.Context) (string, bool) {
	var req request.NotificationIdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Warn("bind notification request failed", zap.Error(err))
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return "", false
	}
	id := strings.TrimSpace(req.NotificationId)
	if id == "" {
		back.Error(c, xerr.BadRequest, "notificationId 不能为空")
		return "", false
	}
	return id, true
}
