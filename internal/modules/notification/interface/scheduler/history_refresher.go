package scheduler

import (
	"context"
	"sync"
	"time"

	"RxDash/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const snapshotTimeout = 10 * time.Second

type HistoryRequester interface {
	RequestNotificationHistory() bool
}

type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context) error
}

// HistoryRefresher 定时补拉历史通知并落一次快照，弥补断线期间可能漏掉的推送
type HistoryRefresher struct {
	cron      *cron.Cron
	spec      string
	requester HistoryRequester
	saver     SnapshotSaver

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// NewHistoryRefresher spec 为标准 5 段 Cron 表达式或 @every 描述符；saver 可为 nil
func NewHistoryRefresher(spec string, requester HistoryRequester, saver SnapshotSaver) *HistoryRefresher {
	return &HistoryRefresher{
		cron:      cron.New(),
		spec:      spec,
		requester: requester,
		saver:     saver,
	}
}

func (r *HistoryRefresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	id, err := r.cron.AddFunc(r.spec, func() { r.RunOnce(context.Background()) })
	if err != nil {
		return err
	}
	r.entryID = id
	r.started = true
	r.cron.Start()
	zlog.Info("history refresher started", zap.String("spec", r.spec))
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (r *HistoryRefresher) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.cron.Remove(r.entryID)
	r.mu.Unlock()

	<-r.cron.Stop().Done()
}

func (r *HistoryRefresher) RunOnce(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			zlog.Error("history refresh panicked", zap.Any("panic", p))
		}
	}()

	if !r.requester.RequestNotificationHistory() {
		zlog.Debug("history refresh skipped: transport offline or session missing")
	}
	if r.saver == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	if err := r.saver.SaveSnapshot(sctx); err != nil {
		zlog.Warn("history refresh: snapshot save failed", zap.Error(err))
	}
}
