package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"RxDash/internal/modules/notification/domain/entity"
	"RxDash/internal/modules/notification/domain/realtime"
	"RxDash/internal/modules/notification/domain/store"
	"RxDash/pkg/zlog"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

// TokenSource 建连时读取当前会话 token
type TokenSource interface {
	Token() string
}

type Options struct {
	URL              string
	Tokens           TokenSource
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
}

// Client 自动重连的推送通道客户端
//
// 状态机：disconnected → connecting → connected → disconnected（循环），Run 返回后为 closed。
type Client struct {
	opts Options

	mu    sync.RWMutex
	conn  *websocket.Conn
	phase realtime.Phase

	writeMu sync.Mutex
	cancel  context.CancelFunc

	connectL    listeners[struct{}]
	disconnectL listeners[error]
	pushL       listeners[entity.PushNotification]
	historyL    listeners[entity.HistoryBatch]
	removeL     listeners[entity.RemovePayload]
	phaseL      listeners[realtime.Phase]
}

var _ realtime.Transport = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
		if opts.MaxBackoff < opts.MinBackoff {
			opts.MaxBackoff = opts.MinBackoff
		}
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		}
	}
	return &Client{opts: opts, phase: realtime.PhaseDisconnected}
}

func (c *Client) IsConnected() bool {
	return c.Phase() == realtime.PhaseConnected
}

func (c *Client) Phase() realtime.Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Client) OnConnect(fn func()) store.Subscription {
	if fn == nil {
		return store.NewSubscription(nil)
	}
	return c.connectL.add(func(struct{}) { fn() })
}

func (c *Client) OnDisconnect(fn func(err error)) store.Subscription {
	return c.disconnectL.add(fn)
}

func (c *Client) OnPush(fn func(entity.PushNotification)) store.Subscription {
	return c.pushL.add(fn)
}

func (c *Client) OnHistoryBatch(fn func(entity.HistoryBatch)) store.Subscription {
	return c.historyL.add(fn)
}

func (c *Client) OnRemove(fn func(entity.RemovePayload)) store.Subscription {
	return c.removeL.add(fn)
}

// OnPhase 订阅所有阶段变化（含 connecting / closed）
func (c *Client) OnPhase(fn func(realtime.Phase)) store.Subscription {
	return c.phaseL.add(fn)
}

// Emit 发送一个事件帧；未连接时返回 realtime.ErrNotConnected
func (c *Client) Emit(event string, data any) error {
	if data == nil {
		data = struct{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn := c.conn
	connected := c.phase == realtime.PhaseConnected
	c.mu.RUnlock()
	if conn == nil || !connected {
		return realtime.ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(entity.Frame{Event: event, Data: raw})
}

// Run 连接并保持通道，断线后按指数退避重连，直到 ctx 结束或调用 Close
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()
	defer c.setPhase(realtime.PhaseClosed)

	backoff := c.opts.MinBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.setPhase(realtime.PhaseConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.setPhase(realtime.PhaseDisconnected)
			zlog.Warn("notification socket dial failed",
				zap.String("url", c.opts.URL),
				zap.Duration("retry_in", backoff),
				zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff *= 2
			if backoff > c.opts.MaxBackoff {
				backoff = c.opts.MaxBackoff
			}
			continue
		}
		backoff = c.opts.MinBackoff

		c.attach(conn)
		zlog.Info("notification socket connected", zap.String("url", c.opts.URL))
		c.connectL.emit("connect", struct{}{})

		readErr := c.readLoop(ctx, conn)
		c.detach(conn)
		zlog.Warn("notification socket disconnected", zap.Error(readErr))
		c.disconnectL.emit("disconnect", readErr)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
	}
}

// Close 停止 Run 的重连循环
func (c *Client) Close() {
	c.mu.RLock()
	cancel := c.cancel
	c.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if strings.TrimSpace(c.opts.URL) == "" {
		return nil, errors.New("notification socket url is empty")
	}
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.opts.Tokens != nil {
		if tok := strings.TrimSpace(c.opts.Tokens.Token()); tok != "" {
			// 浏览器 WebSocket 不能带自定义 Header，上游同时接受 query 中的 token
			q := u.Query()
			q.Set("token", tok)
			u.RawQuery = q.Encode()
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()
	conn, resp, err := c.opts.Dialer.DialContext(dialCtx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setPhase(realtime.PhaseConnected)
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
	c.setPhase(realtime.PhaseDisconnected)
}

func (c *Client) setPhase(p realtime.Phase) {
	c.mu.Lock()
	changed := c.phase != p
	c.phase = p
	c.mu.Unlock()
	if changed {
		c.phaseL.emit("phase", p)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(stop)
		wg.Wait()
	}()

	conn.SetReadLimit(maxMessageSize)
	pongWait := c.opts.PingInterval * 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	// 只有读错误才断开重连；单个帧解析失败直接丢弃
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame entity.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			zlog.Warn("notification socket: malformed frame dropped", zap.Int("size", len(msg)), zap.Error(err))
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame entity.Frame) {
	switch frame.Event {
	case entity.EventNewNotification:
		var p entity.PushNotification
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			zlog.Warn("notification socket: bad push payload", zap.Error(err))
			return
		}
		c.pushL.emit(frame.Event, p)
	case entity.EventNotificationHistory:
		var batch entity.HistoryBatch
		if err := json.Unmarshal(frame.Data, &batch); err != nil {
			zlog.Warn("notification socket: bad history payload", zap.Error(err))
			return
		}
		c.historyL.emit(frame.Event, batch)
	case entity.EventNotificationRemoved:
		var p entity.RemovePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			zlog.Warn("notification socket: bad remove payload", zap.Error(err))
			return
		}
		c.removeL.emit(frame.Event, p)
	default:
		zlog.Debug("notification socket: ignored event", zap.String("event", frame.Event))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
