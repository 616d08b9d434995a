package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"RxDash/internal/modules/notification/application/dto/respond"
	"RxDash/internal/modules/notification/domain/remote"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NotificationOperator MCP 工具用到的通知操作
type NotificationOperator interface {
	List() respond.NotificationListRespond
	MarkNotificationAsRead(ctx context.Context, localID string) remote.Result
	MarkAllNotificationsAsRead(ctx context.Context) remote.Result
	RemoveNotificationById(localID string) bool
}

type NotificationToolHandler struct {
	svc NotificationOperator
}

func NewNotificationToolHandler(svc NotificationOperator) *NotificationToolHandler {
	return &NotificationToolHandler{svc: svc}
}

func (h *NotificationToolHandler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_notifications",
		mcp.WithDescription("列出当前运营账号的通知，含未读数与推送通道连接状态。"),
		mcp.WithBoolean("unread_only", mcp.Description("只返回未读通知")),
	), h.handleList)

	s.AddTool(mcp.NewTool("mark_notification_read",
		mcp.WithDescription("把一条通知标记为已读。本地立即生效，上游接口失败不会回滚。"),
		mcp.WithString("notificationId", mcp.Required(), mcp.Description("通知的本地 ID（列表中的 id 字段）")),
	), h.handleMarkRead)

	s.AddTool(mcp.NewTool("mark_all_notifications_read",
		mcp.WithDescription("把全部通知标记为已读。"),
	), h.handleMarkAllRead)

	s.AddTool(mcp.NewTool("remove_notification",
		mcp.WithDescription("移除一条通知。推送通道未连接时不会执行。"),
		mcp.WithString("notificationId", mcp.Required(), mcp.Description("通知的本地 ID")),
	), h.handleRemove)
}

func (h *NotificationToolHandler) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unreadOnly := false
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		unreadOnly, _ = args["unread_only"].(bool)
	}

	list := h.svc.List()
	if unreadOnly {
		items := make([]respond.NotificationItem, 0, list.UnreadCount)
		for _, it := range list.Items {
			if !it.IsRead {
				items = append(items, it)
			}
		}
		list.Items = items
	}
	return jsonResult(list)
}

func (h *NotificationToolHandler) handleMarkRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := notificationID(request)
	if errResult != nil {
		return errResult, nil
	}
	res := h.svc.MarkNotificationAsRead(ctx, id)
	return jsonResult(respond.NewReadRespond(id, res, h.svc.List().UnreadCount))
}

func (h *NotificationToolHandler) handleMarkAllRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := h.svc.MarkAllNotificationsAsRead(ctx)
	return jsonResult(respond.NewReadRespond("", res, h.svc.List().UnreadCount))
}

func (h *NotificationToolHandler) handleRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := notificationID(request)
	if errResult != nil {
		return errResult, nil
	}
	if !h.svc.RemoveNotificationById(id) {
		return mcp.NewToolResultError("notification socket is not connected, nothing removed"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Notification %s removed", id)), nil
}

func notificationID(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", mcp.NewToolResultError("invalid arguments format")
	}
	id, _ := args["notificationId"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return "", mcp.NewToolResultError("notificationId cannot be empty")
	}
	return id, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
