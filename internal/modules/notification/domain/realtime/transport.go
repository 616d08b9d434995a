package realtime

import (
	"errors"

	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/store"
)

var ErrNotConnected = errors.New("notification socket is not connected")

// Phase 推送通道连接阶段
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhaseClosed       Phase = "closed"
)

// Transport 双向推送通道。各 On* 方法返回可释放的订阅。
type Transport interface {
	IsConnected() bool
	Emit(event string, data any) error

	OnConnect(fn func()) store.Subscription
	OnDisconnect(fn func(err error)) store.Subscription
	OnPush(fn func(entity.PushNotification)) store.Subscription
	OnHistoryBatch(fn func(entity.HistoryBatch)) store.Subscription
	OnRemove(fn func(entity.RemovePayload)) store.Subscription
}
