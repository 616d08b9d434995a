package store

import (
	"sync"

	"RxDash/pkg/zlog"

	"go.uber.org/zap"
)

// Subscription is a disposable change listener registration.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// NewSubscription wraps a release function so that it runs at most once.
func NewSubscription(release func()) Subscription {
	if release == nil {
		release = func() {}
	}
	return &subscription{fn: release}
}

// Subscribe registers fn for every change applied after this call. Callbacks run
// one change at a time in version order and may read the store, but must not
// mutate it synchronously.
func (s *Store) Subscribe(fn func(Change)) Subscription {
	if fn == nil {
		return NewSubscription(nil)
	}
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.subMu.Unlock()

	return NewSubscription(func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	})
}

func (s *Store) publish(ch Change) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for s.delivered+1 != ch.Version {
		s.notifyCond.Wait()
	}

	s.subMu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		deliver(fn, ch)
	}
	s.delivered = ch.Version
	s.notifyCond.Broadcast()
}

func deliver(fn func(Change), ch Change) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error("notification store subscriber panicked",
				zap.String("kind", string(ch.Kind)),
				zap.Uint64("version", ch.Version),
				zap.Any("panic", r))
		}
	}()
	fn(ch)
}
