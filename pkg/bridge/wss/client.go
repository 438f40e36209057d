package wss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
)

// ErrReconnectExhausted 重连次数用尽
var ErrReconnectExhausted = errors.New("ws reconnect attempts exhausted")

var errClosed = errors.New("subscription closed")

// Config newHeads 订阅配置
type Config struct {
	URL              string
	ProxyString      string
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	ReconnectDelay   time.Duration // 第 n 次重连等待 n*ReconnectDelay
	MaxReconnects    int           // 0 使用默认值, 负数表示不重连
	Buffer           int
	Logger           *zap.Logger
}

// Head 新区块头 (只解析需要的字段)
type Head struct {
	Number     *hexutil.Big   `json:"number"`
	Hash       string         `json:"hash"`
	ParentHash string         `json:"parentHash"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
}

// rpcMessage JSON-RPC 消息 (请求响应与订阅通知共用)
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type notification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// Subscription eth_subscribe("newHeads") 订阅, 断线后自动重连并重新订阅
type Subscription struct {
	config Config
	logger *zap.Logger
	dialer *websocket.Dialer
	nextID atomic.Uint64

	heads chan *Head
	errc  chan error

	mu     sync.Mutex
	conn   *websocket.Conn
	subID  string
	closed bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// SubscribeNewHeads 连接节点并订阅新区块
func SubscribeNewHeads(ctx context.Context, cfg Config) (*Subscription, error) {
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer, err := newDialer(cfg)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		config: cfg,
		logger: logger.With(zap.String("ws", cfg.URL)),
		dialer: dialer,
		heads:  make(chan *Head, cfg.Buffer),
		errc:   make(chan error, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	go s.run(conn)
	return s, nil
}

func newDialer(cfg Config) (*websocket.Dialer, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}

	p, err := common.ParseProxy(cfg.ProxyString)
	if err != nil {
		return nil, err
	}
	switch {
	case p == nil:
	case p.IsSocks():
		d, err := p.Dialer()
		if err != nil {
			return nil, err
		}
		dialer.NetDialContext = d.DialContext
	default:
		dialer.Proxy = http.ProxyURL(p.URL())
	}
	return dialer, nil
}

// Heads 新区块通道, 订阅结束时关闭; 消费过慢时丢弃区块
func (s *Subscription) Heads() <-chan *Head { return s.heads }

// Err 重连失败时收到错误
func (s *Subscription) Err() <-chan error { return s.errc }

// SubscriptionID 当前订阅 ID, 重连后会变化
func (s *Subscription) SubscriptionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subID
}

// Unsubscribe 取消订阅并关闭连接, 可重复调用
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		close(s.stop)

		s.mu.Lock()
		s.closed = true
		conn, subID := s.conn, s.subID
		s.mu.Unlock()

		if conn != nil {
			id := s.nextID.Add(1)
			params, _ := json.Marshal([]string{subID})
			_ = conn.WriteJSON(rpcMessage{JSONRPC: "2.0", ID: &id, Method: "eth_unsubscribe", Params: params})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		}
	})
	<-s.done
}

// connect 拨号并同步完成 eth_subscribe
func (s *Subscription) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.config.URL, err)
	}

	subID, err := s.subscribe(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("eth_subscribe: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return nil, errClosed
	}
	s.conn = conn
	s.subID = subID
	return conn, nil
}

func (s *Subscription) subscribe(conn *websocket.Conn) (string, error) {
	id := s.nextID.Add(1)
	params, _ := json.Marshal([]string{"newHeads"})
	if err := conn.WriteJSON(rpcMessage{JSONRPC: "2.0", ID: &id, Method: "eth_subscribe", Params: params}); err != nil {
		return "", err
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		var m rpcMessage
		if err := conn.ReadJSON(&m); err != nil {
			return "", err
		}
		if m.ID == nil || *m.ID != id {
			continue
		}
		if m.Error != nil {
			return "", fmt.Errorf("%d %s", m.Error.Code, m.Error.Message)
		}
		var subID string
		if err := json.Unmarshal(m.Result, &subID); err != nil || subID == "" {
			return "", fmt.Errorf("invalid subscription id %s", m.Result)
		}
		return subID, nil
	}
}

// run 读取循环, 断线后按次数线性退避重连
func (s *Subscription) run(conn *websocket.Conn) {
	defer close(s.done)
	defer close(s.heads)

	for conn != nil {
		err := s.serve(conn)
		if s.stopped() {
			return
		}
		s.logger.Warn("ws disconnected", zap.Error(err))
		conn = s.reconnect()
	}
}

// serve 处理一个连接直到读取出错
func (s *Subscription) serve(conn *websocket.Conn) error {
	connDone := make(chan struct{})
	defer close(connDone)
	go s.ping(conn, connDone)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return err
		}
		s.handleMessage(msg)
	}
}

func (s *Subscription) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ws ping failed", zap.Error(err))
				return
			}
		case <-done:
			return
		case <-s.stop:
			return
		}
	}
}

func (s *Subscription) reconnect() *websocket.Conn {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()

	if s.config.MaxReconnects < 0 {
		s.fail(ErrReconnectExhausted)
		return nil
	}

	for attempt := 1; attempt <= s.config.MaxReconnects; attempt++ {
		delay := s.config.ReconnectDelay * time.Duration(attempt)
		s.logger.Info("ws reconnecting", zap.Int("attempt", attempt), zap.Duration("delay", delay))

		select {
		case <-s.stop:
			return nil
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.config.HandshakeTimeout)
		conn, err := s.connect(ctx)
		cancel()
		if err == nil {
			return conn
		}
		if errors.Is(err, errClosed) {
			return nil
		}
		s.logger.Warn("ws reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	s.fail(fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, s.config.MaxReconnects))
	return nil
}

func (s *Subscription) fail(err error) {
	select {
	case s.errc <- err:
	default:
	}
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// handleMessage 只处理当前订阅的 eth_subscription 通知
func (s *Subscription) handleMessage(msg []byte) {
	var m rpcMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		s.logger.Debug("ws invalid message", zap.ByteString("msg", msg))
		return
	}
	if m.Method != "eth_subscription" {
		return
	}

	var n notification
	if err := json.Unmarshal(m.Params, &n); err != nil {
		return
	}
	if n.Subscription != s.SubscriptionID() {
		return
	}

	var head Head
	if err := json.Unmarshal(n.Result, &head); err != nil {
		s.logger.Debug("ws invalid head", zap.Error(err))
		return
	}

	select {
	case s.heads <- &head:
	default:
		s.logger.Debug("ws head dropped", zap.String("hash", head.Hash))
	}
}
