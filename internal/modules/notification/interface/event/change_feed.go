package event

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"RxDash/internal/modules/notification/application/dto/respond"
	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/repository"
	"RxDash/internal/modules/notification/domain/store"
	"RxDash/internal/modules/notification/infrastructure/mq"
	"RxDash/pkg/zlog"

	"go.uber.org/zap"
)

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// ChangeSource 通知变更来源
type ChangeSource interface {
	Subscribe(fn func(store.Change)) store.Subscription
	Notifications() []entity.Notification
}

type PrincipalSource interface {
	Principal() string
}

// Broadcaster 按账号投递到浏览器连接
type Broadcaster interface {
	SendJSON(userID string, v interface{}) error
}

type FeedOptions struct {
	Publisher mq.Publisher
	Topic     string
	Snapshots repository.SnapshotRepository
}

// ChangeFeed 把存储变更同步推给当前账号的浏览器连接，并异步写入 Kafka 与 Redis 快照
//
// 浏览器推送在存储回调中完成，保证与变更同序；Kafka 与 Redis 在 Run 的工作协程中执行，
// 队列满时丢弃该条 Kafka 事件，快照仍会在下一次变更时整体覆盖。
type ChangeFeed struct {
	source    ChangeSource
	session   PrincipalSource
	hub       Broadcaster
	publisher mq.Publisher
	topic     string
	snapshots repository.SnapshotRepository

	queue chan queued

	mu            sync.Mutex
	sub           store.Subscription
	lastPrincipal string
	pushedTo      string
}

type queued struct {
	change    store.Change
	principal string
}

func NewChangeFeed(source ChangeSource, session PrincipalSource, hub Broadcaster, opts FeedOptions) *ChangeFeed {
	return &ChangeFeed{
		source:    source,
		session:   session,
		hub:       hub,
		publisher: opts.Publisher,
		topic:     opts.Topic,
		snapshots: opts.Snapshots,
		queue:     make(chan queued, queueSize),
	}
}

func (f *ChangeFeed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub != nil {
		return
	}
	f.lastPrincipal = f.session.Principal()
	f.pushedTo = f.lastPrincipal
	f.sub = f.source.Subscribe(f.onChange)
}

func (f *ChangeFeed) Stop() {
	f.mu.Lock()
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Run 处理 Kafka 发布与快照写入，直到 ctx 结束；结束前把队列里剩余的变更处理完
func (f *ChangeFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return nil
		case q := <-f.queue:
			f.handle(ctx, q)
		}
	}
}

// SaveSnapshot 立即保存当前列表快照
func (f *ChangeFeed) SaveSnapshot(ctx context.Context) error {
	if f.snapshots == nil {
		return nil
	}
	principal := f.session.Principal()
	if principal == "" {
		return nil
	}
	return f.snapshots.Save(ctx, principal, f.source.Notifications())
}

func (f *ChangeFeed) onChange(ch store.Change) {
	principal := f.session.Principal()
	ev := toChangeEvent(ch, principal)

	if f.hub != nil {
		f.push(ch, principal, respond.PushFrame{Event: respond.FrameChange, Data: ev})
	}

	if f.publisher == nil && f.snapshots == nil {
		return
	}
	select {
	case f.queue <- queued{change: ch, principal: principal}:
	default:
		zlog.Warn("change feed: queue full, change dropped",
			zap.Uint64("version", ch.Version), zap.String("kind", string(ch.Kind)))
	}
}

// push 只投递给变更发生时的登录账号；清空还要通知上一个账号的页面
func (f *ChangeFeed) push(ch store.Change, principal string, frame respond.PushFrame) {
	f.mu.Lock()
	targets := make([]string, 0, 2)
	if principal != "" {
		targets = append(targets, principal)
	}
	if ch.Kind == store.ChangeCleared && f.pushedTo != "" && f.pushedTo != principal {
		targets = append(targets, f.pushedTo)
	}
	if principal != "" {
		f.pushedTo = principal
	}
	f.mu.Unlock()

	for _, target := range targets {
		if err := f.hub.SendJSON(target, frame); err != nil {
			zlog.Error("change feed: push failed", zap.String("principal", target), zap.Error(err))
		}
	}
}

func (f *ChangeFeed) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for {
		select {
		case q := <-f.queue:
			f.handle(ctx, q)
		default:
			return
		}
	}
}

func (f *ChangeFeed) handle(ctx context.Context, q queued) {
	if f.publisher != nil && f.topic != "" {
		f.publish(ctx, q)
	}
	if f.snapshots == nil {
		return
	}

	f.mu.Lock()
	prev := f.lastPrincipal
	f.lastPrincipal = q.principal
	f.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// 登出或换账号后旧账号的快照作废
	if prev != "" && prev != q.principal {
		if err := f.snapshots.Delete(sctx, prev); err != nil {
			zlog.Warn("change feed: snapshot delete failed", zap.String("principal", prev), zap.Error(err))
		}
	}
	if q.principal == "" {
		return
	}
	// 后面还有排队的变更时跳过，由最后一条写入完整快照
	if len(f.queue) > 0 {
		return
	}
	if err := f.SaveSnapshot(sctx); err != nil {
		zlog.Warn("change feed: snapshot save failed", zap.Error(err))
	}
}

func (f *ChangeFeed) publish(ctx context.Context, q queued) {
	ev := toChangeEvent(q.change, q.principal)
	value, err := json.Marshal(ev)
	if err != nil {
		zlog.Error("change feed: encode failed", zap.Error(err))
		return
	}
	key := q.change.LocalID
	if key == "" {
		key = q.principal
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := f.publisher.Publish(pctx, mq.Message{
		Topic: f.topic,
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"kind":    string(q.change.Kind),
			"version": strconv.FormatUint(q.change.Version, 10),
		},
	}); err != nil {
		zlog.Warn("change feed: kafka publish failed",
			zap.String("topic", f.topic), zap.Uint64("version", q.change.Version), zap.Error(err))
	}
}

func toChangeEvent(ch store.Change, principal string) respond.ChangeEvent {
	ev := respond.ChangeEvent{
		Kind:        string(ch.Kind),
		Version:     ch.Version,
		Principal:   principal,
		LocalId:     ch.LocalID,
		UnreadCount: ch.UnreadCount,
		Total:       ch.Total,
		At:          time.Now(),
	}
	if ch.Notification != nil {
		item := respond.ToNotificationItem(*ch.Notification)
		ev.Notification = &item
	}
	return ev
}
