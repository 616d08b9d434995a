package respond

import (
	"encoding/json"
	"time"

	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/remote"
)

type NotificationItem struct {
	Id         string                     `json:"id"`
	ServerId   string                     `json:"serverId,omitempty"`
	Title      string                     `json:"title,omitempty"`
	Message    string                     `json:"message,omitempty"`
	Type       string                     `json:"type,omitempty"`
	CreatedAt  string                     `json:"createdAt,omitempty"`
	IsRead     bool                       `json:"isRead"`
	ReceivedAt string                     `json:"receivedAt,omitempty"`
	Extra      map[string]json.RawMessage `json:"extra,omitempty"`
}

// NotificationListRespond 列表快照；Version 与 change 帧的 version 同源，
// 客户端丢弃 version <= 快照 Version 的 change 帧
type NotificationListRespond struct {
	Items       []NotificationItem `json:"items"`
	UnreadCount int                `json:"unreadCount"`
	Total       int                `json:"total"`
	IsConnected bool               `json:"isConnected"`
	Version     uint64             `json:"version"`
}

func NewNotificationListRespond(list []entity.Notification, version uint64, connected bool) NotificationListRespond {
	unread := 0
	for i := range list {
		if !list[i].IsRead {
			unread++
		}
	}
	return NotificationListRespond{
		Items:       ToNotificationItems(list),
		UnreadCount: unread,
		Total:       len(list),
		IsConnected: connected,
		Version:     version,
	}
}

// ReadRespond 已读操作结果；本地状态已更新，Outcome 只反映上游接口
type ReadRespond struct {
	NotificationId string `json:"notificationId,omitempty"`
	Outcome        string `json:"outcome"`
	Status         int    `json:"status,omitempty"`
	Error          string `json:"error,omitempty"`
	UnreadCount    int    `json:"unreadCount"`
}

type RemoveRespond struct {
	NotificationId string `json:"notificationId"`
	UnreadCount    int    `json:"unreadCount"`
}

func ToNotificationItem(n entity.Notification) NotificationItem {
	item := NotificationItem{
		Id:        n.LocalID,
		ServerId:  n.ServerID,
		Title:     n.Payload.Title,
		Message:   n.Payload.Message,
		Type:      n.Payload.Category,
		CreatedAt: n.Payload.CreatedAt,
		IsRead:    n.IsRead,
		Extra:     n.Payload.Extra,
	}
	if !n.ReceivedAt.IsZero() {
		item.ReceivedAt = n.ReceivedAt.Format(time.RFC3339)
	}
	return item
}

func ToNotificationItems(list []entity.Notification) []NotificationItem {
	out := make([]NotificationItem, 0, len(list))
	for i := range list {
		out = append(out, ToNotificationItem(list[i]))
	}
	return out
}

func NewReadRespond(id string, res remote.Result, unread int) ReadRespond {
	out := ReadRespond{
		NotificationId: id,
		Outcome:        res.Outcome(),
		Status:         res.StatusCode,
		UnreadCount:    unread,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
