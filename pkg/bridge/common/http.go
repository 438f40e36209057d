package common

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ErrInvalidProxy 代理字符串格式错误
var ErrInvalidProxy = errors.New("invalid proxy string")

// Proxy 解析后的代理
// 字符串格式: host:port, host:port:user:pass, host:port:user:pass:socks5
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
	Scheme   string // http 或 socks5
}

// ParseProxy 解析代理字符串, 空字符串返回 nil
func ParseProxy(s string) (*Proxy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2, 4, 5:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, s)
	}
	if parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, s)
	}

	p := &Proxy{Host: parts[0], Port: parts[1], Scheme: "http"}
	if len(parts) >= 4 {
		p.Username, p.Password = parts[2], parts[3]
	}
	if len(parts) == 5 {
		p.Scheme = strings.ToLower(parts[4])
		if p.Scheme != "http" && !p.IsSocks() {
			return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, parts[4])
		}
	}
	return p, nil
}

// Addr host:port
func (p *Proxy) Addr() string {
	return net.JoinHostPort(p.Host, p.Port)
}

// IsSocks 是否为 SOCKS 代理
func (p *Proxy) IsSocks() bool {
	return strings.HasPrefix(p.Scheme, "socks")
}

// URL HTTP 代理地址
func (p *Proxy) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Addr()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// Dialer SOCKS5 拨号器
func (p *Proxy) Dialer() (proxy.ContextDialer, error) {
	var auth *proxy.Auth
	if p.Username != "" {
		auth = &proxy.Auth{User: p.Username, Password: p.Password}
	}
	d, err := proxy.SOCKS5("tcp", p.Addr(), auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return contextDialer{d}, nil
	}
	return cd, nil
}

type contextDialer struct{ proxy.Dialer }

func (d contextDialer) DialContext(_ context.Context, network, addr string) (net.Conn, error) {
	return d.Dial(network, addr)
}

// HTTPClientConfig HTTP 客户端配置
type HTTPClientConfig struct {
	Timeout     time.Duration
	ProxyString string
}

// NewHTTPClient 创建 JSON-RPC 使用的 HTTP 客户端, 代理字符串错误时返回错误
func NewHTTPClient(cfg HTTPClientConfig) (*http.Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	p, err := ParseProxy(cfg.ProxyString)
	if err != nil {
		return nil, err
	}
	switch {
	case p == nil:
	case p.IsSocks():
		dialer, err := p.Dialer()
		if err != nil {
			return nil, err
		}
		transport.DialContext = dialer.DialContext
	default:
		transport.Proxy = http.ProxyURL(p.URL())
	}

	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}
