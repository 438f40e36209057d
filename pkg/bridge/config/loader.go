package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	// NetworksFile 网络配置文件名
	NetworksFile = "networks.json"
	// TokensDir 代币配置目录, 每条链一个 <chainId>.json
	TokensDir = "tokens"
)

var validate = validator.New()

// Validate 校验配置结构体
func Validate(v any) error {
	return validate.Struct(v)
}

// LoadJSON 从文件加载 JSON 配置到指定结构体
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// LoadNetworks 加载网络配置
func LoadNetworks(dir string) ([]Network, error) {
	var networks []Network
	if err := LoadJSON(filepath.Join(dir, NetworksFile), &networks); err != nil {
		return nil, fmt.Errorf("load networks: %w", err)
	}

	seen := make(map[int64]bool)
	for i, n := range networks {
		if err := Validate(n); err != nil {
			return nil, fmt.Errorf("network #%d (%s): %w", i, n.Name, err)
		}
		if seen[n.ChainID] {
			return nil, fmt.Errorf("duplicate chainId: %d", n.ChainID)
		}
		seen[n.ChainID] = true
	}
	return networks, nil
}

// LoadTokens 加载指定链的代币列表
// 文件缺失或格式错误时记录日志并返回空列表
func LoadTokens(dir string, chainID int64, logger *zap.Logger) []Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := []Token{}
	if chainID == 0 {
		return tokens
	}

	path := filepath.Join(dir, TokensDir, strconv.FormatInt(chainID, 10)+".json")
	var raw []Token
	if err := LoadJSON(path, &raw); err != nil {
		logger.Error("load tokens", zap.Int64("chainId", chainID), zap.String("path", path), zap.Error(err))
		return tokens
	}

	for _, t := range raw {
		if err := Validate(t); err != nil {
			logger.Warn("skip invalid token", zap.Int64("chainId", chainID), zap.String("symbol", t.Symbol), zap.Error(err))
			continue
		}
		tokens = append(tokens, Token{
			Name:     t.Name,
			Address:  t.Address,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			LogoURI:  t.LogoURI,
		})
	}
	return tokens
}

// Registry 网络与代币的静态配置
type Registry struct {
	dir      string
	logger   *zap.Logger
	networks []Network

	mu     sync.Mutex
	tokens map[int64][]Token
}

// NewRegistry 从配置目录创建 Registry
func NewRegistry(dir string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	networks, err := LoadNetworks(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].ChainID < networks[j].ChainID })

	return &Registry{
		dir:      dir,
		logger:   logger,
		networks: networks,
		tokens:   make(map[int64][]Token),
	}, nil
}

// Networks 返回所有网络
func (r *Registry) Networks() []Network {
	out := make([]Network, len(r.networks))
	copy(out, r.networks)
	return out
}

// Network 按 chainId 查找网络
func (r *Registry) Network(chainID int64) (Network, bool) {
	for _, n := range r.networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// NetworkByName 按名称查找网络 (不区分大小写), 也接受 chainId 字符串
func (r *Registry) NetworkByName(name string) (Network, bool) {
	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		return r.Network(id)
	}
	for _, n := range r.networks {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Network{}, false
}

// Tokens 返回链上可用代币, 首次访问时从文件加载
func (r *Registry) Tokens(chainID int64) []Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tokens, ok := r.tokens[chainID]; ok {
		return tokens
	}
	tokens := LoadTokens(r.dir, chainID, r.logger)
	r.tokens[chainID] = tokens
	return tokens
}

// Token 按符号或地址查找代币
func (r *Registry) Token(chainID int64, symbolOrAddress string) (Token, bool) {
	for _, t := range r.Tokens(chainID) {
		if strings.EqualFold(t.Symbol, symbolOrAddress) || strings.EqualFold(t.Address, symbolOrAddress) {
			return t, true
		}
	}
	return Token{}, false
}
