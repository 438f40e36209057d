package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shuail0/cross-bridge/pkg/bridge/chain"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
	"github.com/shuail0/cross-bridge/pkg/bridge/ledger"
	"github.com/shuail0/cross-bridge/pkg/bridge/notify"
)

// app 命令共享的运行环境
type app struct {
	configPath string
	envPath    string
	logLevel   string

	out         io.Writer
	in          io.Reader
	interactive func() bool

	cfg      *config.AppConfig
	logger   *zap.Logger
	registry *config.Registry
}

// setup 加载 .env, 应用配置, 日志和网络配置
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnv(a.envPath); err != nil {
		return err
	}

	cfg, err := config.LoadApp(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	registry, err := config.NewRegistry(cfg.ConfigDir, logger)
	if err != nil {
		return fmt.Errorf("load networks: %w", err)
	}
	a.registry = registry
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newLogger debug 级别使用开发模式输出, 其余使用 JSON
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var zcfg zap.Config
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// network 按名称或 chainId 查找网络
func (a *app) network(nameOrID string) (config.Network, error) {
	n, ok := a.registry.NetworkByName(nameOrID)
	if !ok {
		return config.Network{}, fmt.Errorf("unknown network %q", nameOrID)
	}
	return n, nil
}

// token 按符号或地址查找代币
func (a *app) token(chainID int64, symbolOrAddress string) (config.Token, error) {
	t, ok := a.registry.Token(chainID, symbolOrAddress)
	if !ok {
		return config.Token{}, fmt.Errorf("unknown token %q on chain %d", symbolOrAddress, chainID)
	}
	return t, nil
}

// dial 连接网络 RPC
func (a *app) dial(ctx context.Context, n config.Network) (*chain.Client, error) {
	if n.RPCURL == "" {
		return nil, fmt.Errorf("network %s has no rpcURL", n.Name)
	}
	return chain.NewClient(ctx, chain.Config{
		RPCURL:          n.RPCURL,
		WSURL:           n.WSURL,
		ProxyString:     a.cfg.ProxyString,
		ExpectedChainID: n.ChainID,
		Timeout:         a.cfg.RPCTimeout,
		Receipt:         a.cfg.Receipt,
		PollInterval:    a.cfg.PollInterval,
		Logger:          a.logger.With(zap.Int64("chainId", n.ChainID)),
	})
}

// wallet 用配置的私钥创建钱包
func (a *app) wallet(approve chain.ApproveFunc) (*chain.KeyWallet, error) {
	key, err := a.cfg.PrivateKey()
	if err != nil {
		return nil, err
	}
	return chain.NewKeyWallet(key, approve)
}

// account 优先使用 --account, 否则从私钥推导; 返回校验和格式地址
func (a *app) account(flagValue string) (string, error) {
	if flagValue = strings.TrimSpace(flagValue); flagValue != "" {
		if !ethcommon.IsHexAddress(flagValue) {
			return "", fmt.Errorf("invalid --account %q", flagValue)
		}
		return ethcommon.HexToAddress(flagValue).Hex(), nil
	}
	w, err := a.wallet(nil)
	if err != nil {
		return "", fmt.Errorf("no --account given: %w", err)
	}
	return w.Address().Hex(), nil
}

// openLedger 打开交易记录存储, ledger_path 为空时使用内存存储
func (a *app) openLedger() (ledger.Store, func(), error) {
	if a.cfg.LedgerPath == "" {
		a.logger.Warn("ledger_path is empty, transactions are kept in memory only")
		return ledger.NewMemoryStore(), func() {}, nil
	}
	s, err := ledger.OpenLevelStore(a.cfg.LedgerPath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func (a *app) notifier() *notify.Center {
	sink := notify.NewWriterSink(a.out, a.logger, a.cfg.QRCode)
	return notify.NewCenter(sink, notify.CenterConfig{Logger: a.logger})
}

func parseChainID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q", s)
	}
	return id, nil
}
