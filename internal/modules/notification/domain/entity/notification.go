package entity

import (
	"encoding/json"
	"time"
)

// Payload 通知展示数据，本服务不解释其含义
type Payload struct {
	Title     string                     `json:"title,omitempty"`
	Message   string                     `json:"message,omitempty"`
	Category  string                     `json:"type,omitempty"`
	CreatedAt string                     `json:"createdAt,omitempty"`
	Extra     map[string]json.RawMessage `json:"extra,omitempty"`
}

// Notification 会话内的一条通知记录
//
// LocalID 由客户端分配，在存储中唯一；ServerID 为上游持久化后分配的 ID，可能为空，
// 非空时同样唯一。已读接口使用 ServerID。
type Notification struct {
	LocalID    string    `json:"id"`
	ServerID   string    `json:"serverId,omitempty"`
	Payload    Payload   `json:"payload"`
	IsRead     bool      `json:"isRead"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Clone 深拷贝，快照与订阅回调不共享 Extra
func (n Notification) Clone() Notification {
	if n.Payload.Extra != nil {
		extra := make(map[string]json.RawMessage, len(n.Payload.Extra))
		for k, v := range n.Payload.Extra {
			extra[k] = v
		}
		n.Payload.Extra = extra
	}
	return n
}
