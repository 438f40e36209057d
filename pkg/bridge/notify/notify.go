package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level 提示类型
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Toast 一条提示
type Toast struct {
	ID       string `json:"id"`
	Level    Level  `json:"level"`
	Header   string `json:"header"`
	Body     string `json:"body"`
	Link     string `json:"link,omitempty"`
	LinkText string `json:"linkText,omitempty"`
}

// Notifier 提示接口, 相同 id 同一时间只显示一条
type Notifier interface {
	Success(id string, t Toast)
	Error(id string, t Toast)
}

// Sink 提示输出端
type Sink interface {
	// Show 显示提示, replaced 表示替换了同 id 的旧提示
	Show(t Toast, replaced bool)
}

// SinkFunc 函数形式的 Sink
type SinkFunc func(t Toast, replaced bool)

// Show 实现 Sink
func (f SinkFunc) Show(t Toast, replaced bool) { f(t, replaced) }

// CenterConfig 提示中心配置
type CenterConfig struct {
	TTL    time.Duration // 提示自动关闭时间, 0 表示不自动关闭
	Logger *zap.Logger
}

// Center 按 id 去重的提示中心
type Center struct {
	mu     sync.Mutex
	sink   Sink
	config CenterConfig
	logger *zap.Logger
	active map[string]Toast
	shown  map[string]time.Time
	now    func() time.Time
}

// NewCenter 创建提示中心
func NewCenter(sink Sink, cfg CenterConfig) *Center {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{
		sink:   sink,
		config: cfg,
		logger: logger,
		active: make(map[string]Toast),
		shown:  make(map[string]time.Time),
		now:    time.Now,
	}
}

// Success 显示成功提示
func (c *Center) Success(id string, t Toast) {
	t.Level = LevelSuccess
	c.show(id, t)
}

// Error 显示错误提示
func (c *Center) Error(id string, t Toast) {
	t.Level = LevelError
	c.show(id, t)
}

func (c *Center) show(id string, t Toast) {
	t.ID = id

	c.mu.Lock()
	c.expireLocked()
	_, replaced := c.active[id]
	c.active[id] = t
	c.shown[id] = c.now()
	c.mu.Unlock()

	c.logger.Debug("toast",
		zap.String("id", id),
		zap.String("level", string(t.Level)),
		zap.Bool("replaced", replaced),
	)

	if c.sink != nil {
		c.sink.Show(t, replaced)
	}
}

// Dismiss 关闭提示
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, id)
	delete(c.shown, id)
}

// Active 返回当前显示中的提示
func (c *Center) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()

	toasts := make([]Toast, 0, len(c.active))
	for _, t := range c.active {
		toasts = append(toasts, t)
	}
	return toasts
}

// Get 返回 id 对应的提示
func (c *Center) Get(id string) (Toast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	t, ok := c.active[id]
	return t, ok
}

func (c *Center) expireLocked() {
	if c.config.TTL <= 0 {
		return
	}
	now := c.now()
	for id, at := range c.shown {
		if now.Sub(at) >= c.config.TTL {
			delete(c.active, id)
			delete(c.shown, id)
		}
	}
}

// Nop 丢弃所有提示
type Nop struct{}

// Success 实现 Notifier
func (Nop) Success(string, Toast) {}

// Error 实现 Notifier
func (Nop) Error(string, Toast) {}
