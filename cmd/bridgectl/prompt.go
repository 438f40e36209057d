package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/term"

	"github.com/shuail0/cross-bridge/pkg/bridge/chain"
	"github.com/shuail0/cross-bridge/pkg/bridge/flow"
)

// errNotInteractive 非终端环境下需要 --yes
var errNotInteractive = errors.New("stdin is not a terminal, pass --yes to skip confirmation")

// prompter 终端确认
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive func() bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{
		in:  bufio.NewReader(in),
		out: out,
		interactive: func() bool {
			f, ok := in.(*os.File)
			return ok && term.IsTerminal(int(f.Fd()))
		},
	}
}

// prompter 使用 app 的输入输出, app.interactive 非空时覆盖终端检测
func (a *app) prompter() *prompter {
	p := newPrompter(a.in, a.out)
	if a.interactive != nil {
		p.interactive = a.interactive
	}
	return p
}

// ask 读取 y/N, 默认 N
func (p *prompter) ask(ctx context.Context, question string) (bool, error) {
	if !p.interactive() {
		return false, errNotInteractive
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// confirmer 跨链确认步骤
func (p *prompter) confirmer() flow.Confirmer {
	return flow.ConfirmFunc(func(ctx context.Context, c flow.Confirmation) (bool, error) {
		return p.ask(ctx, "Note! "+c.String())
	})
}

// signApproval 签名前确认, 拒绝时钱包返回 4001
func (p *prompter) signApproval() chain.ApproveFunc {
	return func(ctx context.Context, tx *types.Transaction) (bool, error) {
		question := fmt.Sprintf("Sign transaction to %s (nonce %d, gas %d)?", tx.To().Hex(), tx.Nonce(), tx.Gas())
		return p.ask(ctx, question)
	}
}
