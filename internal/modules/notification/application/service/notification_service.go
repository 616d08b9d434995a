package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"RxDash/internal/modules/notification/application/dto/request"
	"RxDash/internal/modules/notification/application/dto/respond"
	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/realtime"
	"RxDash/internal/modules/notification/domain/remote"
	"RxDash/internal/modules/notification/domain/repository"
	"RxDash/internal/modules/notification/domain/store"
	"RxDash/pkg/util"
	"RxDash/pkg/xerr"
	"RxDash/pkg/zlog"

	"go.uber.org/zap"
)

const (
	auditWriteTimeout   = 5 * time.Second
	snapshotLoadTimeout = 5 * time.Second
)

// NotificationService 通知同步的唯一协调层：推送事件、本地存储与已读接口只在这里汇合
type NotificationService interface {
	// Start 订阅推送通道与会话变化；重复调用无效果
	Start()
	Stop()

	// MarkNotificationAsRead 先更新本地，再调用上游接口。上游失败只记录，不回滚也不返回错误。
	MarkNotificationAsRead(ctx context.Context, localID string) remote.Result
	MarkAllNotificationsAsRead(ctx context.Context) remote.Result
	// RemoveNotificationById 仅在推送通道已连接时生效，返回是否执行
	RemoveNotificationById(localID string) bool
	// RequestNotificationHistory 已连接时请求历史，返回是否发出
	RequestNotificationHistory() bool

	List() respond.NotificationListRespond
	// ViewList 不能在 Subscribe 回调中调用
	ViewList(fn func(respond.NotificationListRespond))
	Notifications() []entity.Notification
	UnreadCount() int
	IsConnected() bool
	Subscribe(fn func(store.Change)) store.Subscription
	ListReadAudits(ctx context.Context, req request.AuditListRequest) ([]*entity.ReadAudit, error)
}

type notificationServiceImpl struct {
	store     *store.Store
	transport realtime.Transport
	api       remote.ReadStatusClient
	session   SessionService
	audits    repository.ReadAuditRepository

	newID func() string
	now   func() time.Time

	snapshots SnapshotLoader

	mu        sync.Mutex
	started   bool
	subs      []store.Subscription
	connected bool
	principal string
}

// SnapshotLoader 按登录主体读取保存过的列表快照
type SnapshotLoader interface {
	Load(ctx context.Context, principal string) ([]entity.Notification, error)
}

type Option func(*notificationServiceImpl)

// WithSnapshots 会话确定登录主体后，先用该主体的快照回填空列表，再请求历史
func WithSnapshots(l SnapshotLoader) Option {
	return func(s *notificationServiceImpl) {
		s.snapshots = l
	}
}

// NewNotificationService 创建协调服务。audits 可为 nil（未配置 MySQL）。
func NewNotificationService(st *store.Store, transport realtime.Transport, api remote.ReadStatusClient, session SessionService, audits repository.ReadAuditRepository, opts ...Option) NotificationService {
	s := &notificationServiceImpl{
		store:     st,
		transport: transport,
		api:       api,
		session:   session,
		audits:    audits,
		newID:     util.GenerateNotificationID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *notificationServiceImpl) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.subs = append(s.subs,
		s.transport.OnConnect(s.handleConnect),
		s.transport.OnDisconnect(s.handleDisconnect),
		s.transport.OnPush(s.handlePush),
		s.transport.OnHistoryBatch(s.handleHistory),
		s.transport.OnRemove(s.handleRemove),
		s.session.Subscribe(s.handleSession),
	)
	// 订阅之后再读当前状态，期间到达的回调会在锁上等待并看到这里的结果
	connected := s.transport.IsConnected()
	st := s.session.State()
	s.connected = connected
	s.principal = st.Principal
	s.mu.Unlock()

	zlog.Info("notification sync started", zap.Bool("connected", connected), zap.Bool("authenticated", st.Authenticated))
	if st.Authenticated {
		s.restoreSnapshot(st.Principal)
	}
	syncNow := connected && st.Authenticated
	if syncNow {
		s.RequestNotificationHistory()
	}
}

func (s *notificationServiceImpl) Stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.started = false
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (s *notificationServiceImpl) MarkNotificationAsRead(ctx context.Context, localID string) remote.Result {
	localID = strings.TrimSpace(localID)

	realID := localID
	if n, ok := s.store.Get(localID); ok && n.ServerID != "" {
		realID = n.ServerID
	} else {
		// 没有 serverId 时沿用本地 ID 调用上游，上游很可能不认识它
		zlog.Warn("mark read: no server id, using local id",
			zap.String("local_id", localID), zap.Bool("known", ok))
	}

	s.store.MarkRead(localID)

	res := s.api.MarkOneRead(ctx, realID)
	s.report(ctx, entity.AuditActionReadOne, localID, realID, res)
	return res
}

func (s *notificationServiceImpl) MarkAllNotificationsAsRead(ctx context.Context) remote.Result {
	changed := s.store.MarkAllRead()
	zlog.Debug("mark all read applied locally", zap.Int("changed", changed))

	res := s.api.MarkAllRead(ctx)
	s.report(ctx, entity.AuditActionReadAll, "", "", res)
	return res
}

func (s *notificationServiceImpl) RemoveNotificationById(localID string) bool {
	localID = strings.TrimSpace(localID)
	if !s.transport.IsConnected() {
		zlog.Warn("remove skipped: notification socket disconnected", zap.String("local_id", localID))
		return false
	}
	// 通过连接检查后本地移除不再依赖 emit 结果，连接在两步之间断开时上游由下一次历史合并修正
	if err := s.transport.Emit(entity.EventRemoveNotification, entity.RemovePayload{NotificationID: localID}); err != nil {
		zlog.Warn("remove emit failed, removing locally", zap.String("local_id", localID), zap.Error(err))
	}
	s.store.Remove(localID)
	return true
}

func (s *notificationServiceImpl) RequestNotificationHistory() bool {
	if !s.transport.IsConnected() {
		return false
	}
	if err := s.transport.Emit(entity.EventGetHistory, struct{}{}); err != nil {
		zlog.Warn("history request failed", zap.Error(err))
		return false
	}
	zlog.Debug("history requested")
	return true
}

func (s *notificationServiceImpl) List() respond.NotificationListRespond {
	snap, version := s.store.SnapshotVersion()
	return respond.NewNotificationListRespond(snap, version, s.transport.IsConnected())
}

// ViewList 在变更投递序列中取快照：fn 执行期间不会有新的变更送达订阅者
func (s *notificationServiceImpl) ViewList(fn func(respond.NotificationListRespond)) {
	connected := s.transport.IsConnected()
	s.store.View(func(items []entity.Notification, version uint64) {
		fn(respond.NewNotificationListRespond(items, version, connected))
	})
}

func (s *notificationServiceImpl) Notifications() []entity.Notification {
	return s.store.Snapshot()
}

func (s *notificationServiceImpl) UnreadCount() int {
	return s.store.UnreadCount()
}

func (s *notificationServiceImpl) IsConnected() bool {
	return s.transport.IsConnected()
}

func (s *notificationServiceImpl) Subscribe(fn func(store.Change)) store.Subscription {
	return s.store.Subscribe(fn)
}

func (s *notificationServiceImpl) ListReadAudits(ctx context.Context, req request.AuditListRequest) ([]*entity.ReadAudit, error) {
	if s.audits == nil {
		return nil, xerr.New(xerr.NotFound, "未启用已读审计")
	}
	principal := s.session.Principal()
	if principal == "" {
		return nil, xerr.ErrUnauthenticated
	}
	audits, err := s.audits.ListRecent(ctx, principal, strings.TrimSpace(req.Outcome), req.Limit)
	if err != nil {
		zlog.Error("list read audits failed", zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return audits, nil
}

func (s *notificationServiceImpl) handleConnect() {
	s.mu.Lock()
	was := s.connected
	s.connected = true
	s.mu.Unlock()

	if was {
		return
	}
	if !s.session.IsAuthenticated() {
		zlog.Info("socket connected without session, history deferred")
		return
	}
	s.RequestNotificationHistory()
}

func (s *notificationServiceImpl) handleDisconnect(err error) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *notificationServiceImpl) handleSession(st SessionState) {
	s.mu.Lock()
	prev := s.principal
	s.principal = st.Principal
	s.mu.Unlock()

	if !st.Authenticated {
		if prev != "" {
			s.store.Clear()
			zlog.Info("session ended, notifications cleared", zap.String("principal", prev))
		}
		return
	}
	if prev != "" && prev != st.Principal {
		s.store.Clear()
		zlog.Info("session principal changed, notifications cleared",
			zap.String("from", prev), zap.String("to", st.Principal))
	}
	if prev != st.Principal {
		s.restoreSnapshot(st.Principal)
	}
	s.RequestNotificationHistory()
}

// restoreSnapshot 只回填空列表，已经到达的推送不会被覆盖
func (s *notificationServiceImpl) restoreSnapshot(principal string) {
	if s.snapshots == nil || principal == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotLoadTimeout)
	defer cancel()
	records, err := s.snapshots.Load(ctx, principal)
	if err != nil {
		zlog.Warn("snapshot load failed", zap.String("principal", principal), zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}
	kept, ok := s.store.RestoreIfEmpty(records)
	if !ok {
		zlog.Debug("snapshot skipped, notifications already present", zap.String("principal", principal))
		return
	}
	zlog.Info("notification snapshot restored", zap.String("principal", principal), zap.Int("count", kept))
}

func (s *notificationServiceImpl) handlePush(p entity.PushNotification) {
	n := p.ToNotification(s.newID, s.now())
	if !s.store.Insert(n) {
		zlog.Debug("duplicate notification ignored",
			zap.String("local_id", n.LocalID), zap.String("server_id", n.ServerID))
	}
}

func (s *notificationServiceImpl) handleHistory(batch entity.HistoryBatch) {
	now := s.now()
	records := make([]entity.Notification, 0, len(batch))
	for _, p := range batch {
		records = append(records, p.ToNotification(s.newID, now))
	}
	res := s.store.Merge(records)
	zlog.Info("notification history merged",
		zap.Int("received", len(batch)),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
}

func (s *notificationServiceImpl) handleRemove(p entity.RemovePayload) {
	id := strings.TrimSpace(p.NotificationID)
	if id == "" {
		return
	}
	if _, ok := s.store.RemoveByServerID(id); ok {
		return
	}
	if !s.store.Remove(id) {
		zlog.Debug("remove event for unknown notification", zap.String("notification_id", id))
	}
}

// report 已读接口结果只进日志与审计，这是有意保留的不一致窗口，由下一次历史合并修正
func (s *notificationServiceImpl) report(ctx context.Context, action, localID, remoteID string, res remote.Result) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("local_id", localID),
		zap.String("remote_id", remoteID),
		zap.Int("status", res.StatusCode),
	}
	switch res.Kind {
	case remote.FailureNone:
		zlog.Debug("read status synced", fields...)
	case remote.FailureTransient:
		zlog.Warn("read status sync failed, local state kept", append(fields, zap.Error(res.Err))...)
	default:
		zlog.Error("read status rejected, local state kept", append(fields, zap.Error(res.Err))...)
	}

	if s.audits == nil {
		return
	}
	audit := &entity.ReadAudit{
		AuditId:   util.GenerateAuditID(),
		Principal: s.session.Principal(),
		Action:    action,
		LocalId:   localID,
		RemoteId:  remoteID,
		Outcome:   res.Outcome(),
		Status:    res.StatusCode,
		CreatedAt: s.now(),
	}
	if res.Err != nil {
		audit.Error = truncate(res.Err.Error(), 512)
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := s.audits.Record(actx, audit); err != nil {
		zlog.Error("read audit write failed", zap.String("audit_id", audit.AuditId), zap.Error(err))
	}
}

// truncate 按字节截断，回退到 rune 边界，保证写入 utf8mb4 列的是合法 UTF-8
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
