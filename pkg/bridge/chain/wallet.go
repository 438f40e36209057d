package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
)

// RejectedError 用户拒绝签名, 实现 rpc.Error, 错误码 4001
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

// ErrorCode 返回 EIP-1193 错误码
func (e *RejectedError) ErrorCode() int { return common.ErrorCodeUserRejected }

// ErrUserRejected 用户拒绝
var ErrUserRejected = &RejectedError{Message: "user rejected the request"}

// Wallet 交易签名方
type Wallet interface {
	Address() ethcommon.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// ApproveFunc 签名前的确认回调, 返回 false 视为用户拒绝
type ApproveFunc func(ctx context.Context, tx *types.Transaction) (bool, error)

// KeyWallet 本地私钥钱包
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address ethcommon.Address
	approve ApproveFunc
}

// NewKeyWallet 从十六进制私钥创建钱包, approve 为空时不做确认
func NewKeyWallet(privateKey string, approve ApproveFunc) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid public key")
	}

	return &KeyWallet{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKeyECDSA),
		approve: approve,
	}, nil
}

// Address 钱包地址
func (w *KeyWallet) Address() ethcommon.Address {
	return w.address
}

// SignTx 签名交易
func (w *KeyWallet) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if w.approve != nil {
		ok, err := w.approve(ctx, tx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUserRejected
		}
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed, nil
}
