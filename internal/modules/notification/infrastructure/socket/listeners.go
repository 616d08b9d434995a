package socket

import (
	"sync"

	"RxDash/internal/modules/notification/domain/store"
	"RxDash/pkg/zlog"

	"go.uber.org/zap"
)

// listeners 一组同类型回调，注册返回可释放订阅
type listeners[T any] struct {
	mu   sync.RWMutex
	next uint64
	fns  map[uint64]func(T)
}

func (l *listeners[T]) add(fn func(T)) store.Subscription {
	if fn == nil {
		return store.NewSubscription(nil)
	}
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[uint64]func(T))
	}
	l.next++
	id := l.next
	l.fns[id] = fn
	l.mu.Unlock()

	return store.NewSubscription(func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	})
}

func (l *listeners[T]) emit(name string, v T) {
	l.mu.RLock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zlog.Error("socket listener panicked", zap.String("event", name), zap.Any("panic", r))
				}
			}()
			fn(v)
		}()
	}
}
