package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
)

// ErrUint256Range 数值不在 uint256 范围内, abi 编码会静默取模
var ErrUint256Range = errors.New("value out of uint256 range")

var (
	erc20ABI  = mustParseABI(common.ERC20ABI)
	bridgeABI = mustParseABI(common.GenericBridgeABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// PackApprove 编码 ERC20 approve(spender, amount)
func PackApprove(spender ethcommon.Address, amount *big.Int) ([]byte, error) {
	if err := checkUint256("amount", amount); err != nil {
		return nil, err
	}
	return erc20ABI.Pack("approve", spender, amount)
}

// PackBalanceOf 编码 ERC20 balanceOf(account)
func PackBalanceOf(account ethcommon.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", account)
}

// PackAllowance 编码 ERC20 allowance(owner, spender)
func PackAllowance(owner, spender ethcommon.Address) ([]byte, error) {
	return erc20ABI.Pack("allowance", owner, spender)
}

// PackRequestBridge 编码 requestBridge(tokenAddress, amount, toChainId)
func PackRequestBridge(token ethcommon.Address, amount, toChainID *big.Int) ([]byte, error) {
	if err := checkUint256("amount", amount); err != nil {
		return nil, err
	}
	if err := checkUint256("toChainId", toChainID); err != nil {
		return nil, err
	}
	return bridgeABI.Pack("requestBridge", token, amount, toChainID)
}

func checkUint256(name string, v *big.Int) error {
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return fmt.Errorf("%s %v: %w", name, v, ErrUint256Range)
	}
	return nil
}

// unpackUint256 解析 ERC20 uint256 返回值
func unpackUint256(method string, data []byte) (*big.Int, error) {
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	out, err := erc20ABI.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unpack %s: unexpected outputs %d", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return v, nil
}
