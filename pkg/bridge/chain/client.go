package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
	"github.com/shuail0/cross-bridge/pkg/bridge/wss"
)

// ErrReverted 交易已上链但执行失败
var ErrReverted = errors.New("transaction reverted")

// gasBufferPercent 预估 gas 上浮比例
const gasBufferPercent = 20

// Config 链客户端配置
type Config struct {
	RPCURL          string
	WSURL           string
	ProxyString     string
	ExpectedChainID int64 // 非 0 时校验节点返回的 chainId
	Timeout         time.Duration
	Receipt         config.ReceiptMode
	PollInterval    time.Duration
	Logger          *zap.Logger
}

// Result 交易结果, 未等待回执时 Receipt 为 nil
type Result struct {
	Hash    ethcommon.Hash
	Receipt *types.Receipt
}

// Client 链上读写客户端
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	chainID   *big.Int
	config    Config
	logger    *zap.Logger
}

// NewClient 连接 RPC 并读取 chainId
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, pkgerrors.New("rpc url is empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Receipt == "" {
		cfg.Receipt = config.ReceiptPoll
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient, err := common.NewHTTPClient(common.HTTPClientConfig{
		Timeout:     cfg.Timeout,
		ProxyString: cfg.ProxyString,
	})
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, pkgerrors.WithStack(fmt.Errorf("dial rpc: %w", err))
	}
	ethClient := ethclient.NewClient(rpcClient)

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, pkgerrors.WithStack(fmt.Errorf("get chain id: %w", err))
	}
	if cfg.ExpectedChainID != 0 && chainID.Int64() != cfg.ExpectedChainID {
		rpcClient.Close()
		return nil, fmt.Errorf("chain id mismatch: rpc=%s expected=%d", chainID, cfg.ExpectedChainID)
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethClient,
		chainID:   chainID,
		config:    cfg,
		logger:    logger.With(zap.String("chainId", chainID.String())),
	}, nil
}

// ChainID 当前链 ID
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close 关闭 RPC 连接
func (c *Client) Close() {
	c.rpcClient.Close()
}

// BalanceOf 查询 ERC20 余额 (最小单位)
func (c *Client) BalanceOf(ctx context.Context, token, owner ethcommon.Address) (*big.Int, error) {
	data, err := PackBalanceOf(owner)
	if err != nil {
		return nil, err
	}
	result, err := c.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	return unpackUint256("balanceOf", result)
}

// Allowance 查询 ERC20 授权额度
func (c *Client) Allowance(ctx context.Context, token, owner, spender ethcommon.Address) (*big.Int, error) {
	data, err := PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	result, err := c.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}
	return unpackUint256("allowance", result)
}

// Approve 授权 spender 使用 amount 数量的代币
func (c *Client) Approve(ctx context.Context, w Wallet, token, spender ethcommon.Address, amount *big.Int) (*Result, error) {
	data, err := PackApprove(spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	c.logger.Info("send approve",
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.String()))
	return c.send(ctx, w, token, data, big.NewInt(0))
}

// RequestBridge 调用桥合约 requestBridge, value 固定为 0
func (c *Client) RequestBridge(ctx context.Context, w Wallet, bridge, token ethcommon.Address, amount, toChainID *big.Int) (*Result, error) {
	data, err := PackRequestBridge(token, amount, toChainID)
	if err != nil {
		return nil, fmt.Errorf("pack requestBridge: %w", err)
	}
	c.logger.Info("send requestBridge",
		zap.String("bridge", bridge.Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()),
		zap.String("toChainId", toChainID.String()))
	return c.send(ctx, w, bridge, data, big.NewInt(0))
}

// call 只读调用
func (c *Client) call(ctx context.Context, to ethcommon.Address, data []byte) ([]byte, error) {
	return c.ethClient.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// send 构造、签名并广播交易
func (c *Client) send(ctx context.Context, w Wallet, to ethcommon.Address, data []byte, value *big.Int) (*Result, error) {
	from := w.Address()

	nonce, err := c.ethClient.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gas, err := c.ethClient.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data, Value: value})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasBufferPercent / 100

	tx, err := c.buildTx(ctx, nonce, to, gas, value, data)
	if err != nil {
		return nil, err
	}

	signed, err := w.SignTx(ctx, tx, c.chainID)
	if err != nil {
		return nil, err
	}
	if err := c.ethClient.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	result := &Result{Hash: signed.Hash()}
	c.logger.Info("transaction sent", zap.String("hash", result.Hash.Hex()), zap.Uint64("nonce", nonce))

	if c.config.Receipt == config.ReceiptNone {
		return result, nil
	}
	receipt, err := c.WaitReceipt(ctx, result.Hash)
	result.Receipt = receipt
	if err != nil {
		return result, err
	}
	return result, nil
}

// buildTx 有 baseFee 时使用 EIP-1559 交易, 否则使用 legacy 交易
func (c *Client) buildTx(ctx context.Context, nonce uint64, to ethcommon.Address, gas uint64, value *big.Int, data []byte) (*types.Transaction, error) {
	head, err := c.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get head: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		}), nil
	}

	tip, err := c.ethClient.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	}), nil
}

// WaitReceipt 等待交易回执
// ws 模式下每个新区块检查一次, 同时保留轮询作为兜底
func (c *Client) WaitReceipt(ctx context.Context, hash ethcommon.Hash) (*types.Receipt, error) {
	var heads <-chan *wss.Head
	if c.config.Receipt == config.ReceiptWS && c.config.WSURL != "" {
		sub, err := wss.SubscribeNewHeads(ctx, wss.Config{
			URL:         c.config.WSURL,
			ProxyString: c.config.ProxyString,
			Logger:      c.logger,
		})
		if err != nil {
			c.logger.Warn("subscribe heads failed, fallback to polling", zap.Error(err))
		} else {
			defer sub.Unsubscribe()
			heads = sub.Heads()
		}
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
			}
			c.logger.Info("transaction mined", zap.String("hash", hash.Hex()), zap.String("block", receipt.BlockNumber.String()))
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("get receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		case _, ok := <-heads:
			if !ok {
				heads = nil
			}
		}
	}
}
