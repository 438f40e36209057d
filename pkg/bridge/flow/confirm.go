package flow

import (
	"context"
	"fmt"
)

// Confirmation 提交前展示给用户的确认内容
type Confirmation struct {
	Amount string
	Symbol string
	From   string
	To     string
}

func (c Confirmation) String() string {
	return fmt.Sprintf("Are you sure you want to transfer %s %s from %s to %s?", c.Amount, c.Symbol, c.From, c.To)
}

// Confirmer 确认步骤, 返回 false 表示取消
type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// ConfirmFunc 函数形式的 Confirmer
type ConfirmFunc func(ctx context.Context, c Confirmation) (bool, error)

// Confirm 实现 Confirmer
func (f ConfirmFunc) Confirm(ctx context.Context, c Confirmation) (bool, error) {
	return f(ctx, c)
}

// AutoConfirm 总是确认
var AutoConfirm = ConfirmFunc(func(context.Context, Confirmation) (bool, error) { return true, nil })

func confirmationFor(req TransferRequest) Confirmation {
	return Confirmation{
		Amount: req.Amount,
		Symbol: req.Token.Symbol,
		From:   req.Source.Name,
		To:     req.Target.Name,
	}
}
