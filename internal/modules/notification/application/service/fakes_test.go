package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/realtime"
	"RxDash/internal/modules/notification/domain/remote"
	"RxDash/internal/modules/notification/domain/store"
	"RxDash/pkg/util/myjwt"

	"github.com/stretchr/testify/require"
)

const testJWTKey = "rxdash-test-key"

type emission struct {
	Event string
	Data  any
}

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	emitErr   error
	emits     []emission

	connectFns    []func()
	disconnectFns []func(error)
	pushFns       []func(entity.PushNotification)
	historyFns    []func(entity.HistoryBatch)
	removeFns     []func(entity.RemovePayload)
}

var _ realtime.Transport = (*fakeTransport)(nil)

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Emit(event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return realtime.ErrNotConnected
	}
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, emission{Event: event, Data: data})
	return nil
}

func (f *fakeTransport) emitted(event string) []emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emission
	for _, e := range f.emits {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func register[T any](f *fakeTransport, list *[]T, fn T) store.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	*list = append(*list, fn)
	i := len(*list) - 1
	return store.NewSubscription(func() {
		f.mu.Lock()
		var zero T
		(*list)[i] = zero
		f.mu.Unlock()
	})
}

func snapshotFns[T any](f *fakeTransport, list *[]T) []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), (*list)...)
}

func (f *fakeTransport) OnConnect(fn func()) store.Subscription {
	return register(f, &f.connectFns, fn)
}

func (f *fakeTransport) OnDisconnect(fn func(error)) store.Subscription {
	return register(f, &f.disconnectFns, fn)
}

func (f *fakeTransport) OnPush(fn func(entity.PushNotification)) store.Subscription {
	return register(f, &f.pushFns, fn)
}

func (f *fakeTransport) OnHistoryBatch(fn func(entity.HistoryBatch)) store.Subscription {
	return register(f, &f.historyFns, fn)
}

func (f *fakeTransport) OnRemove(fn func(entity.RemovePayload)) store.Subscription {
	return register(f, &f.removeFns, fn)
}

// connect 标记已连接并触发 connect 回调；已连接时再次调用模拟重复的连接信号
func (f *fakeTransport) connect() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	for _, fn := range snapshotFns(f, &f.connectFns) {
		if fn != nil {
			fn()
		}
	}
}

func (f *fakeTransport) disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	for _, fn := range snapshotFns(f, &f.disconnectFns) {
		if fn != nil {
			fn(realtime.ErrNotConnected)
		}
	}
}

func (f *fakeTransport) push(p entity.PushNotification) {
	for _, fn := range snapshotFns(f, &f.pushFns) {
		if fn != nil {
			fn(p)
		}
	}
}

func (f *fakeTransport) history(b entity.HistoryBatch) {
	for _, fn := range snapshotFns(f, &f.historyFns) {
		if fn != nil {
			fn(b)
		}
	}
}

func (f *fakeTransport) removed(id string) {
	for _, fn := range snapshotFns(f, &f.removeFns) {
		if fn != nil {
			fn(entity.RemovePayload{NotificationID: id})
		}
	}
}

type fakeAPI struct {
	mu      sync.Mutex
	result  remote.Result
	oneIDs  []string
	allRead int
}

func (a *fakeAPI) MarkOneRead(_ context.Context, serverID string) remote.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.oneIDs = append(a.oneIDs, serverID)
	return a.result
}

func (a *fakeAPI) MarkAllRead(context.Context) remote.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.allRead++
	return a.result
}

type fakeAudits struct {
	mu      sync.Mutex
	records []*entity.ReadAudit
}

func (r *fakeAudits) Record(_ context.Context, audit *entity.ReadAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, audit)
	return nil
}

func (r *fakeAudits) ListRecent(_ context.Context, principal string, outcome string, limit int) ([]*entity.ReadAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ReadAudit
	for i := len(r.records) - 1; i >= 0; i-- {
		a := r.records[i]
		if a.Principal != principal || (outcome != "" && a.Outcome != outcome) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func signedToken(t *testing.T, uuid string) string {
	t.Helper()
	tok, err := myjwt.GenerateToken(testJWTKey, "rxdash", uuid, "operator-"+uuid, time.Hour)
	require.NoError(t, err)
	return tok
}

type fakeSnapshots struct {
	mu     sync.Mutex
	saved  map[string][]entity.Notification
	loaded []string
}

func (f *fakeSnapshots) Load(_ context.Context, principal string) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, principal)
	return f.saved[principal], nil
}
