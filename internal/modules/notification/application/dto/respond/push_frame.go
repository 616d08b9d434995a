package respond

import "time"

// 浏览器 websocket 下行事件
const (
	FrameSnapshot = "snapshot"
	FrameChange   = "change"
	FrameResult   = "result"
	FrameError    = "error"
)

type PushFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ChangeEvent 发往 Kafka 的通知变更事件
type ChangeEvent struct {
	Kind         string            `json:"kind"`
	Version      uint64            `json:"version"`
	Principal    string            `json:"principal,omitempty"`
	LocalId      string            `json:"localId,omitempty"`
	Notification *NotificationItem `json:"notification,omitempty"`
	UnreadCount  int               `json:"unreadCount"`
	Total        int               `json:"total"`
	At           time.Time         `json:"at"`
}

// ActionResult 浏览器上行动作的处理结果
type ActionResult struct {
	Action string `json:"action"`
	Result any    `json:"result,omitempty"`
}

type ActionError struct {
	Action  string `json:"action"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
