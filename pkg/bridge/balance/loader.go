package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
)

// DisplayPlaces 余额展示保留的小数位
const DisplayPlaces = 4

// Reader 读取代币余额
type Reader interface {
	BalanceOf(ctx context.Context, token, owner ethcommon.Address) (*big.Int, error)
}

// Key 缓存 key
type Key struct {
	Account string
	ChainID int64
	Token   string
}

func newKey(account string, chainID int64, token config.Token) Key {
	return Key{
		Account: strings.ToLower(account),
		ChainID: chainID,
		Token:   strings.ToLower(token.Address),
	}
}

// Balance 余额快照
type Balance struct {
	Key      Key
	Raw      *big.Int
	Decimals int
	Symbol   string
}

// Formatted 完整精度的余额
func (b Balance) Formatted() string {
	return common.FormatUnits(b.Raw, b.Decimals)
}

// Display 保留 4 位小数并加千分位
func (b Balance) Display() string {
	if b.Raw == nil || b.Raw.Sign() == 0 {
		return "0"
	}
	return common.FormatNumber(common.FormatFixed(b.Raw, b.Decimals, DisplayPlaces))
}

// Loader 只缓存最近一次 (account, chainId, token) 的余额
type Loader struct {
	mu      sync.Mutex
	reader  Reader
	logger  *zap.Logger
	current *Balance
	loading bool
}

// NewLoader 创建余额加载器
func NewLoader(reader Reader, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{reader: reader, logger: logger}
}

// Load 返回余额, key 未变化时直接返回缓存
// 读取失败时返回上一次的余额和错误
func (l *Loader) Load(ctx context.Context, account string, chainID int64, token config.Token) (Balance, error) {
	key := newKey(account, chainID, token)

	l.mu.Lock()
	if l.current != nil && l.current.Key == key {
		b := *l.current
		l.mu.Unlock()
		return b, nil
	}
	l.loading = true
	l.mu.Unlock()

	raw, err := l.reader.BalanceOf(ctx, ethcommon.HexToAddress(token.Address), ethcommon.HexToAddress(account))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if err != nil {
		l.logger.Warn("load balance failed",
			zap.String("account", account),
			zap.Int64("chainId", chainID),
			zap.String("token", token.Symbol),
			zap.Error(err))
		prev := Balance{}
		if l.current != nil {
			prev = *l.current
		}
		return prev, fmt.Errorf("load %s balance: %w", token.Symbol, err)
	}

	l.current = &Balance{Key: key, Raw: raw, Decimals: token.Decimals, Symbol: token.Symbol}
	return *l.current, nil
}

// Refresh 丢弃缓存后重新读取
func (l *Loader) Refresh(ctx context.Context, account string, chainID int64, token config.Token) (Balance, error) {
	l.Invalidate()
	return l.Load(ctx, account, chainID, token)
}

// Invalidate 清除缓存
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = nil
}

// Loading 是否正在读取
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Max 返回缓存余额的十进制字符串, 用于 "Max" 快捷输入
func (l *Loader) Max() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil || l.current.Raw == nil {
		return "0"
	}
	return l.current.Formatted()
}

// Current 返回缓存的余额
func (l *Loader) Current() (Balance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return Balance{}, false
	}
	return *l.current, true
}
