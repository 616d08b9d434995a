package service

import (
	"errors"
	"strings"
	"sync"
	"time"

	"RxDash/internal/modules/notification/domain/store"
	"RxDash/pkg/util/myjwt"
	"RxDash/pkg/xerr"
	"RxDash/pkg/zlog"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SessionState 会话状态快照，订阅回调收到的就是它
type SessionState struct {
	Authenticated bool      `json:"authenticated"`
	Principal     string    `json:"principal,omitempty"`
	Username      string    `json:"username,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt,omitzero"`
}

// SessionService 当前运营账号的 bearer token 与登录态
type SessionService interface {
	SetToken(token string) error
	Logout()
	IsAuthenticated() bool
	Token() string
	Principal() string
	State() SessionState
	// Subscribe 在登录态或登录主体变化时回调；回调中不能再调用 SetToken / Logout
	Subscribe(fn func(SessionState)) store.Subscription
}

type sessionServiceImpl struct {
	key string

	// transitionMu 串行化状态切换与回调，保证订阅者按发生顺序看到变化
	transitionMu sync.Mutex
	expiry       *time.Timer
	expirySeq    uint64

	mu     sync.RWMutex
	token  string
	claims *myjwt.CustomClaims
	now    func() time.Time

	subMu   sync.RWMutex
	subs    map[uint64]func(SessionState)
	nextSub uint64
}

// NewSessionService 创建会话服务。jwtKey 为空时任何 token 都会被拒绝。
func NewSessionService(jwtKey string) SessionService {
	return newSessionService(jwtKey, time.Now)
}

func newSessionService(jwtKey string, now func() time.Time) *sessionServiceImpl {
	return &sessionServiceImpl{
		key:  jwtKey,
		now:  now,
		subs: make(map[uint64]func(SessionState)),
	}
}

func (s *sessionServiceImpl) SetToken(token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return xerr.ErrParam
	}
	claims, err := myjwt.ParseToken(s.key, token)
	if err != nil {
		zlog.Warn("session token rejected", zap.Error(err))
		if errors.Is(err, jwt.ErrTokenExpired) {
			return xerr.New(xerr.Unauthorized, "登录已过期")
		}
		return xerr.ErrUnauthenticated
	}

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	before := s.State()
	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	after := s.State()

	zlog.Info("session token accepted", zap.String("principal", after.Principal))
	s.scheduleExpiry(after)
	if before.Authenticated != after.Authenticated || before.Principal != after.Principal {
		s.notify(after)
	}
	return nil
}

func (s *sessionServiceImpl) Logout() {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	before := s.State()
	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.mu.Unlock()
	s.scheduleExpiry(SessionState{})

	if before.Authenticated {
		zlog.Info("session logged out", zap.String("principal", before.Principal))
		s.notify(SessionState{})
	}
}

// scheduleExpiry 取消上一个到期定时器，并在 st 到期时触发 expire。调用方持有 transitionMu。
func (s *sessionServiceImpl) scheduleExpiry(st SessionState) {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	s.expirySeq++
	if !st.Authenticated || st.ExpiresAt.IsZero() {
		return
	}
	seq := s.expirySeq
	s.expiry = time.AfterFunc(st.ExpiresAt.Sub(s.now()), func() { s.expire(seq) })
}

// expire token 到期后清空会话并通知订阅者
func (s *sessionServiceImpl) expire(seq uint64) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()
	if seq != s.expirySeq {
		return
	}
	if st := s.State(); st.Authenticated {
		s.scheduleExpiry(st)
		return
	}
	s.expiry = nil

	s.mu.Lock()
	principal := s.claims.Principal()
	s.token = ""
	s.claims = nil
	s.mu.Unlock()

	zlog.Info("session token expired", zap.String("principal", principal))
	s.notify(SessionState{})
}

func (s *sessionServiceImpl) IsAuthenticated() bool {
	return s.State().Authenticated
}

// Token 返回当前 token；过期后返回空串
func (s *sessionServiceImpl) Token() string {
	if !s.IsAuthenticated() {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *sessionServiceImpl) Principal() string {
	return s.State().Principal
}

func (s *sessionServiceImpl) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.claims == nil {
		return SessionState{}
	}
	st := SessionState{
		Authenticated: true,
		Principal:     s.claims.Principal(),
		Username:      s.claims.Username,
	}
	if s.claims.ExpiresAt != nil {
		st.ExpiresAt = s.claims.ExpiresAt.Time
		if !st.ExpiresAt.After(s.now()) {
			return SessionState{}
		}
	}
	return st
}

func (s *sessionServiceImpl) Subscribe(fn func(SessionState)) store.Subscription {
	if fn == nil {
		return store.NewSubscription(nil)
	}
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.subMu.Unlock()

	return store.NewSubscription(func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	})
}

func (s *sessionServiceImpl) notify(st SessionState) {
	s.subMu.RLock()
	fns := make([]func(SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zlog.Error("session subscriber panicked", zap.Any("panic", r))
				}
			}()
			fn(st)
		}()
	}
}
