package request

// NotificationIdRequest 单条通知操作（已读 / 移除），notificationId 为本地 ID
type NotificationIdRequest struct {
	NotificationId string `json:"notificationId"`
}

// AuditListRequest 已读审计查询
type AuditListRequest struct {
	Outcome string `form:"outcome"`
	Limit   int    `form:"limit"`
}

// 浏览器 websocket 上行动作
const (
	WsActionRead    = "read"
	WsActionReadAll = "read_all"
	WsActionRemove  = "remove"
	WsActionHistory = "history"
)

type WsActionRequest struct {
	Action         string `json:"action"`
	NotificationId string `json:"notificationId"`
}
