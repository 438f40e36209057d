package flow

import (
	"fmt"
	"math/big"

	"github.com/shuail0/cross-bridge/pkg/bridge/common"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
)

// Action 当前可执行的操作
type Action int

const (
	ActionUnlockWallet Action = iota
	ActionSelectToken
	ActionApprove
	ActionTransfer
)

// View 计算按钮状态所需的输入
type View struct {
	Account           string
	Token             *config.Token
	Approval          ApprovalState
	ApprovedInSession bool
	Amount            string
	Balance           *big.Int // nil 表示余额未知
	Loading           bool
}

// ActionState 按钮状态
type ActionState struct {
	Action  Action
	Label   string
	Enabled bool
	Loading bool
}

// Actions 根据当前输入计算按钮状态
func Actions(v View) ActionState {
	if v.Account == "" {
		return ActionState{Action: ActionUnlockWallet, Label: "Unlock Wallet", Enabled: true}
	}
	if v.Token == nil {
		return ActionState{Action: ActionSelectToken, Label: "Select a token to transfer"}
	}

	if v.ApprovedInSession || v.Approval == ApprovalApproved {
		return ActionState{
			Action:  ActionTransfer,
			Label:   fmt.Sprintf("Transfer %s to bridge", v.Token.Symbol),
			Enabled: transferable(v.Amount, v.Token.Decimals, v.Balance),
			Loading: v.Loading,
		}
	}

	return ActionState{
		Action:  ActionApprove,
		Label:   fmt.Sprintf("Approve %s", v.Token.Symbol),
		Enabled: v.Approval != ApprovalUnknown,
		Loading: v.Loading,
	}
}

// transferable 0 < amount <= balance
func transferable(amount string, decimals int, balance *big.Int) bool {
	if balance == nil {
		return false
	}
	value, err := common.ParseUnits(amount, decimals)
	if err != nil || value.Sign() <= 0 {
		return false
	}
	return value.Cmp(balance) <= 0
}
