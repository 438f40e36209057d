package flow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/shuail0/cross-bridge/pkg/bridge/chain"
	"github.com/shuail0/cross-bridge/pkg/bridge/common"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
	"github.com/shuail0/cross-bridge/pkg/bridge/ledger"
	"github.com/shuail0/cross-bridge/pkg/bridge/notify"
)

// Config 会话配置
type Config struct {
	Chain     Chain
	Wallet    chain.Wallet
	Ledger    ledger.Store
	Notifier  notify.Notifier
	Confirmer Confirmer
	Logger    *zap.Logger
}

// Session 一次授权/跨链会话
type Session struct {
	mu                sync.Mutex
	config            Config
	logger            *zap.Logger
	state             State
	loading           bool
	approving         bool
	approvedInSession bool
	amount            string
	now               func() time.Time
}

// NewSession 创建会话
func NewSession(cfg Config) *Session {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Confirmer == nil {
		cfg.Confirmer = AutoConfirm
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		config: cfg,
		logger: logger,
		state:  StateIdle,
		amount: "0",
		now:    time.Now,
	}
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading 是否有操作进行中
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// ApprovedInSession 本会话内是否已授权成功
func (s *Session) ApprovedInSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvedInSession
}

// Amount 当前输入金额
func (s *Session) Amount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.amount
}

// SetAmount 设置输入金额
func (s *Session) SetAmount(amount string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amount = amount
}

// Reset 回到 Idle
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loading {
		s.state = StateIdle
	}
}

// View 组合会话状态与外部输入
func (s *Session) View(account string, token *config.Token, approval ApprovalState, balance *big.Int) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Account:           account,
		Token:             token,
		Approval:          approval,
		ApprovedInSession: s.approvedInSession,
		Amount:            s.amount,
		Balance:           balance,
		Loading:           s.loading,
	}
}

// ApprovalState 读取授权额度判断授权状态
func (s *Session) ApprovalState(ctx context.Context, token *config.Token, source config.Network, amount string) ApprovalState {
	s.mu.Lock()
	approving := s.approving
	s.mu.Unlock()
	if approving {
		return ApprovalPending
	}

	if token == nil || s.config.Wallet == nil || s.config.Chain == nil {
		return ApprovalUnknown
	}
	value, err := parseAmount(amount, token.Decimals)
	if err != nil {
		return ApprovalUnknown
	}
	spender, err := bridgeAddress(source)
	if err != nil {
		return ApprovalUnknown
	}

	allowance, err := s.config.Chain.Allowance(ctx, ethcommon.HexToAddress(token.Address), s.config.Wallet.Address(), spender)
	if err != nil {
		s.logger.Warn("read allowance failed", zap.String("token", token.Symbol), zap.Error(err))
		return ApprovalUnknown
	}
	if allowance.Cmp(value) >= 0 {
		return ApprovalApproved
	}
	return ApprovalNotApproved
}

// begin 占用会话, 已有操作进行中时返回 ErrBusy
func (s *Session) begin(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return ErrBusy
	}
	s.loading = true
	s.state = state
	return nil
}

func (s *Session) finish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.approving = false
	s.state = state
}

// Approve 授权桥合约使用代币
func (s *Session) Approve(ctx context.Context, req ApproveRequest) (result *chain.Result, err error) {
	if err := config.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid approve request: %w", err)
	}
	amount, err := parseAmount(req.Amount, req.Token.Decimals)
	if err != nil {
		return nil, err
	}
	if req.Unlimited {
		amount = common.MustParseUnits(common.MaxUint256, 0)
	}
	spender, err := bridgeAddress(req.Source)
	if err != nil {
		return nil, err
	}

	if err := s.begin(StateSubmitting); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.approving = true
	s.mu.Unlock()

	final := StateFailed
	defer func() { s.finish(final) }()

	result, err = s.config.Chain.Approve(ctx, s.config.Wallet, ethcommon.HexToAddress(req.Token.Address), spender, amount)
	if err != nil {
		if IsUserRejected(err) {
			final = StateIdle
			s.logger.Info("approve rejected by user", zap.String("token", req.Token.Symbol))
			return nil, err
		}
		fields := []zap.Field{zap.String("token", req.Token.Symbol), zap.Error(err)}
		if result != nil {
			hash := result.Hash.Hex()
			fields = append(fields, zap.String("hash", hash), zap.String("url", req.Source.TxURL(hash)))
			err = fmt.Errorf("transaction %s sent but not confirmed: %w", hash, err)
		}
		s.logger.Error("approve failed", fields...)
		s.config.Notifier.Error(common.ToastIDApprove, notify.Toast{
			Header: "Error!",
			Body:   "Could not approve this token. Please try again.",
		})
		return nil, fmt.Errorf("approve %s: %w", req.Token.Symbol, err)
	}

	final = StateSuccess
	s.mu.Lock()
	s.approvedInSession = true
	s.mu.Unlock()

	s.config.Notifier.Success(common.ToastIDApprove, notify.Toast{
		Header: "Success!",
		Body:   fmt.Sprintf("Now you can transfer your %s to %s.", req.Token.Symbol, req.Target.Name),
	})
	return result, nil
}

// Submit 确认后提交跨链请求, 取消时不产生任何副作用
func (s *Session) Submit(ctx context.Context, req TransferRequest) (*ledger.Transaction, error) {
	amount, bridge, err := prepareTransfer(req)
	if err != nil {
		return nil, err
	}
	if err := s.begin(StateConfirming); err != nil {
		return nil, err
	}

	ok, err := s.config.Confirmer.Confirm(ctx, confirmationFor(req))
	if err != nil || !ok {
		s.finish(StateIdle)
		if err != nil {
			return nil, fmt.Errorf("confirm transfer: %w", err)
		}
		return nil, ErrCancelled
	}

	s.mu.Lock()
	s.state = StateSubmitting
	s.mu.Unlock()
	return s.transfer(ctx, req, amount, bridge)
}

// Transfer 不经确认直接提交跨链请求
func (s *Session) Transfer(ctx context.Context, req TransferRequest) (*ledger.Transaction, error) {
	amount, bridge, err := prepareTransfer(req)
	if err != nil {
		return nil, err
	}
	if err := s.begin(StateSubmitting); err != nil {
		return nil, err
	}
	return s.transfer(ctx, req, amount, bridge)
}

// prepareTransfer 校验请求并换算金额
func prepareTransfer(req TransferRequest) (*big.Int, ethcommon.Address, error) {
	if err := config.Validate(req); err != nil {
		return nil, ethcommon.Address{}, fmt.Errorf("invalid transfer request: %w", err)
	}
	amount, err := parseAmount(req.Amount, req.Token.Decimals)
	if err != nil {
		return nil, ethcommon.Address{}, err
	}
	bridge, err := bridgeAddress(req.Source)
	if err != nil {
		return nil, ethcommon.Address{}, err
	}
	return amount, bridge, nil
}

// transfer 调用方已占用会话
func (s *Session) transfer(ctx context.Context, req TransferRequest, amount *big.Int, bridge ethcommon.Address) (*ledger.Transaction, error) {
	final := StateFailed
	defer func() { s.finish(final) }()

	result, err := s.config.Chain.RequestBridge(ctx, s.config.Wallet,
		bridge, ethcommon.HexToAddress(req.Token.Address), amount, big.NewInt(req.Target.ChainID))
	if err != nil {
		if IsUserRejected(err) {
			final = StateIdle
			s.logger.Info("transfer rejected by user", zap.String("token", req.Token.Symbol))
			return nil, err
		}
		fields := []zap.Field{
			zap.String("token", req.Token.Symbol),
			zap.Int64("toChainId", req.Target.ChainID),
			zap.Error(err),
		}
		if result != nil {
			// 交易已广播但未确认, 仍可能上链
			hash := result.Hash.Hex()
			fields = append(fields, zap.String("hash", hash), zap.String("url", req.Source.TxURL(hash)))
			err = fmt.Errorf("transaction %s sent but not confirmed: %w", hash, err)
		}
		s.logger.Error("transfer failed", fields...)
		s.config.Notifier.Error(common.ToastIDTransfer, notify.Toast{
			Header: "Error!",
			Body:   "Could not transfer this token to our bridge. Please try again.",
		})
		return nil, fmt.Errorf("request bridge: %w", err)
	}

	final = StateSuccess
	hash := result.Hash.Hex()
	account := s.config.Wallet.Address().Hex()

	tx := ledger.NewRequestTransaction(ledger.RequestParams{
		From:        req.Source,
		To:          req.Target,
		Token:       req.Token,
		Account:     account,
		Amount:      amount,
		AmountInput: req.Amount,
		RequestHash: hash,
		RequestTime: s.now(),
	})
	if s.config.Ledger != nil {
		if err := s.config.Ledger.Append(ctx, account, req.Source.ChainID, tx); err != nil {
			s.logger.Error("record transaction failed", zap.String("hash", hash), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.amount = "0"
	s.mu.Unlock()

	s.config.Notifier.Success(common.ToastIDTransfer, notify.Toast{
		Header:   "Success!",
		Body:     fmt.Sprintf("Now you can claim your %s on %s.", req.Token.Symbol, req.Target.Name),
		Link:     req.Source.TxURL(hash),
		LinkText: "View Transaction",
	})
	s.logger.Info("bridge request submitted",
		zap.String("hash", hash),
		zap.String("amount", amount.String()),
		zap.Int64("fromChainId", req.Source.ChainID),
		zap.Int64("toChainId", req.Target.ChainID))

	return &tx, nil
}

// Cancelled 判断错误是否为确认步骤取消或用户拒绝签名
func Cancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || IsUserRejected(err)
}
