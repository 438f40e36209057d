package flow

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/shuail0/cross-bridge/pkg/bridge/chain"
	"github.com/shuail0/cross-bridge/pkg/bridge/common"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
)

var (
	// ErrBusy 上一次操作尚未结束
	ErrBusy = errors.New("another operation is in progress")
	// ErrCancelled 用户在确认步骤取消
	ErrCancelled = errors.New("transfer cancelled")
	// ErrInvalidAmount 金额必须大于 0
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrAmountTooLarge 最小单位金额超出 uint256
	ErrAmountTooLarge = errors.New("amount exceeds uint256")
	// ErrNoBridge 源链未配置桥合约
	ErrNoBridge = errors.New("no bridge contract configured for source network")
)

// Chain 流程用到的链上操作
// 交易已广播但等待回执失败时同时返回 Result 和 error
type Chain interface {
	Allowance(ctx context.Context, token, owner, spender ethcommon.Address) (*big.Int, error)
	Approve(ctx context.Context, w chain.Wallet, token, spender ethcommon.Address, amount *big.Int) (*chain.Result, error)
	RequestBridge(ctx context.Context, w chain.Wallet, bridge, token ethcommon.Address, amount, toChainID *big.Int) (*chain.Result, error)
}

// State 提交流程状态
type State int

const (
	StateIdle State = iota
	StateConfirming
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirming:
		return "confirming"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ApprovalState 授权状态
type ApprovalState int

const (
	ApprovalUnknown ApprovalState = iota
	ApprovalNotApproved
	ApprovalPending
	ApprovalApproved
)

func (s ApprovalState) String() string {
	switch s {
	case ApprovalNotApproved:
		return "not_approved"
	case ApprovalPending:
		return "pending"
	case ApprovalApproved:
		return "approved"
	default:
		return "unknown"
	}
}

// ApproveRequest 授权请求
type ApproveRequest struct {
	Token     config.Token
	Source    config.Network
	Target    config.Network
	Amount    string `validate:"required"`
	Unlimited bool   // 授权 MaxUint256
}

// TransferRequest 跨链请求
type TransferRequest struct {
	Token  config.Token
	Source config.Network
	Target config.Network
	Amount string `validate:"required"`
}

// IsUserRejected 判断错误是否为用户拒绝 (错误码 4001)
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, chain.ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == common.ErrorCodeUserRejected
}

// parseAmount 按代币精度转换为最小单位, 必须在 (0, 2^256) 内
func parseAmount(amount string, decimals int) (*big.Int, error) {
	value, err := common.ParseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	if value.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	// abi 编码会按 2^256 取模
	if value.BitLen() > 256 {
		return nil, ErrAmountTooLarge
	}
	return value, nil
}

// bridgeAddress 源链桥合约地址
func bridgeAddress(n config.Network) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(n.BridgeAddress) {
		return ethcommon.Address{}, ErrNoBridge
	}
	addr := ethcommon.HexToAddress(n.BridgeAddress)
	if addr == (ethcommon.Address{}) {
		return ethcommon.Address{}, ErrNoBridge
	}
	return addr, nil
}
