package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// 推送通道事件名
const (
	EventNewNotification     = "new_notification"
	EventNotificationHistory = "notification_history"
	EventNotificationRemoved = "notification_removed"

	EventRemoveNotification = "remove_notification"
	EventGetHistory         = "get_notification_history"
)

// Frame 推送通道上的一帧 {"event": "...", "data": ...}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PushNotification 上游推送/历史中的通知对象
type PushNotification struct {
	ID        string `json:"id"`
	ServerID  string `json:"_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	IsRead    bool   `json:"isRead"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownPushKeys = map[string]struct{}{
	"id": {}, "_id": {}, "title": {}, "message": {}, "type": {}, "createdAt": {}, "isRead": {},
}

// UnmarshalJSON 解析已知字段，其余字段原样保留到 Extra
func (p *PushNotification) UnmarshalJSON(b []byte) error {
	type plain PushNotification
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, val := range raw {
		if _, ok := knownPushKeys[k]; ok {
			continue
		}
		if v.Extra == nil {
			v.Extra = make(map[string]json.RawMessage)
		}
		v.Extra[k] = val
	}
	*p = PushNotification(v)
	return nil
}

// ToNotification 转换为存储记录；没有客户端 ID 时使用 newID 生成
func (p PushNotification) ToNotification(newID func() string, now time.Time) Notification {
	localID := strings.TrimSpace(p.ID)
	if localID == "" {
		localID = newID()
	}
	return Notification{
		LocalID:  localID,
		ServerID: strings.TrimSpace(p.ServerID),
		Payload: Payload{
			Title:     p.Title,
			Message:   p.Message,
			Category:  p.Type,
			CreatedAt: p.CreatedAt,
			Extra:     p.Extra,
		},
		IsRead:     p.IsRead,
		ReceivedAt: now,
	}
}

// HistoryBatch notification_history 的数据，兼容数组与 {"notifications": [...]} 两种形态
type HistoryBatch []PushNotification

func (h *HistoryBatch) UnmarshalJSON(b []byte) error {
	var list []PushNotification
	if err := json.Unmarshal(b, &list); err == nil {
		*h = list
		return nil
	}
	var wrapped struct {
		Notifications []PushNotification `json:"notifications"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*h = wrapped.Notifications
	return nil
}

// RemovePayload remove_notification / notification_removed 的数据
type RemovePayload struct {
	NotificationID string `json:"notificationId"`
}
