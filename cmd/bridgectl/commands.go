package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shuail0/cross-bridge/pkg/bridge/balance"
	"github.com/shuail0/cross-bridge/pkg/bridge/config"
	"github.com/shuail0/cross-bridge/pkg/bridge/flow"
)

// newRootCmd 创建命令树
func newRootCmd(out io.Writer, in io.Reader) *cobra.Command {
	return newAppCmd(&app{out: out, in: in})
}

func newAppCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Approve and submit cross-chain bridge requests",
		Long:          `Select a source network, a target network and a token, approve the bridge contract and submit requestBridge transactions. Submitted requests are recorded in a local ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetOut(a.out)
	root.SetIn(a.in)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./bridge.yaml)")
	root.PersistentFlags().StringVar(&a.envPath, "env", ".env", ".env file to load")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newNetworksCmd(a),
		newTokensCmd(a),
		newBalanceCmd(a),
		newApproveCmd(a),
		newTransferCmd(a),
		newLedgerCmd(a),
	)
	return root
}

// signalContext Ctrl-C 取消正在进行的请求
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newNetworksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN ID\tNAME\tEXPLORER\tBRIDGE")
			for _, n := range a.registry.Networks() {
				bridge := n.BridgeAddress
				if bridge == "" {
					bridge = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ChainID, n.Name, n.Explorer, bridge)
			}
			return w.Flush()
		},
	}
}

func newTokensCmd(a *app) *cobra.Command {
	var chainFlag string
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List tokens available on a network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.network(chainFlag)
			if err != nil {
				return err
			}
			tokens := a.registry.Tokens(n.ChainID)
			if len(tokens) == 0 {
				fmt.Fprintf(a.out, "no tokens configured for %s\n", n.Name)
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tNAME\tADDRESS\tDECIMALS")
			for _, t := range tokens {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.Symbol, t.Name, t.Address, t.Decimals)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&chainFlag, "chain", "", "network name or chain id")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func newBalanceCmd(a *app) *cobra.Command {
	var chainFlag, tokenFlag, accountFlag string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show token balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			n, err := a.network(chainFlag)
			if err != nil {
				return err
			}
			t, err := a.token(n.ChainID, tokenFlag)
			if err != nil {
				return err
			}
			account, err := a.account(accountFlag)
			if err != nil {
				return err
			}

			client, err := a.dial(ctx, n)
			if err != nil {
				return err
			}
			defer client.Close()

			b, err := balance.NewLoader(client, a.logger).Load(ctx, account, n.ChainID, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Available: %s %s\n", b.Display(), t.Symbol)
			return nil
		},
	}
	cmd.Flags().StringVar(&chainFlag, "chain", "", "network name or chain id")
	cmd.Flags().StringVar(&tokenFlag, "token", "", "token symbol or address")
	cmd.Flags().StringVar(&accountFlag, "account", "", "account address (default: address of the configured key)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// routeFlags 源链/目标链/代币/金额
type routeFlags struct {
	from, to, token, amount string
	yes                     bool
}

func (f *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "source network name or chain id")
	cmd.Flags().StringVar(&f.to, "to", "", "target network name or chain id")
	cmd.Flags().StringVar(&f.token, "token", "", "token symbol or address on the source network")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in token units, e.g. 12.5")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "skip confirmation prompts")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("token")
}

// route 解析后的跨链路径
type route struct {
	source config.Network
	target config.Network
	token  config.Token
}

func (a *app) route(f *routeFlags) (route, error) {
	source, err := a.network(f.from)
	if err != nil {
		return route{}, err
	}
	target, err := a.network(f.to)
	if err != nil {
		return route{}, err
	}
	if source.ChainID == target.ChainID {
		return route{}, fmt.Errorf("source and target network are both %s", source.Name)
	}
	token, err := a.token(source.ChainID, f.token)
	if err != nil {
		return route{}, err
	}
	return route{source: source, target: target, token: token}, nil
}

func newApproveCmd(a *app) *cobra.Command {
	var f routeFlags
	var unlimited bool
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve the bridge contract to spend a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			r, err := a.route(&f)
			if err != nil {
				return err
			}

			p := a.prompter()
			sign := p.signApproval()
			if f.yes {
				sign = nil
			}
			w, err := a.wallet(sign)
			if err != nil {
				return err
			}
			client, err := a.dial(ctx, r.source)
			if err != nil {
				return err
			}
			defer client.Close()

			session := flow.NewSession(flow.Config{
				Chain:    client,
				Wallet:   w,
				Notifier: a.notifier(),
				Logger:   a.logger,
			})

			state := session.ApprovalState(ctx, &r.token, r.source, f.amount)
			if state == flow.ApprovalApproved && !unlimited {
				fmt.Fprintf(a.out, "%s allowance already covers %s\n", r.token.Symbol, f.amount)
				return nil
			}

			_, err = session.Approve(ctx, flow.ApproveRequest{
				Token:     r.token,
				Source:    r.source,
				Target:    r.target,
				Amount:    f.amount,
				Unlimited: unlimited,
			})
			if flow.Cancelled(err) {
				fmt.Fprintln(a.out, "approve cancelled")
				return nil
			}
			return err
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().BoolVar(&unlimited, "unlimited", false, "approve the maximum uint256 amount")
	return cmd
}

func newTransferCmd(a *app) *cobra.Command {
	var f routeFlags
	var useMax bool
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Submit a requestBridge transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			if f.amount == "" && !useMax {
				return errors.New("either --amount or --max is required")
			}
			r, err := a.route(&f)
			if err != nil {
				return err
			}

			w, err := a.wallet(nil)
			if err != nil {
				return err
			}
			client, err := a.dial(ctx, r.source)
			if err != nil {
				return err
			}
			defer client.Close()

			store, closeStore, err := a.openLedger()
			if err != nil {
				return err
			}
			defer closeStore()

			p := a.prompter()
			confirmer := p.confirmer()
			if f.yes {
				confirmer = flow.AutoConfirm
			}
			session := flow.NewSession(flow.Config{
				Chain:     client,
				Wallet:    w,
				Ledger:    store,
				Notifier:  a.notifier(),
				Confirmer: confirmer,
				Logger:    a.logger,
			})

			account := w.Address().Hex()
			loader := balance.NewLoader(client, a.logger)
			bal, err := loader.Load(ctx, account, r.source.ChainID, r.token)
			if err != nil {
				a.logger.Warn("balance unknown", zap.Error(err))
			}
			amount := f.amount
			if useMax {
				amount = loader.Max()
			}
			session.SetAmount(amount)

			approval := session.ApprovalState(ctx, &r.token, r.source, amount)
			action := flow.Actions(session.View(account, &r.token, approval, bal.Raw))
			switch {
			case action.Action == flow.ActionApprove:
				return fmt.Errorf("allowance too low, run: bridgectl approve --from %d --to %d --token %s --amount %s",
					r.source.ChainID, r.target.ChainID, r.token.Symbol, amount)
			case !action.Enabled:
				return fmt.Errorf("cannot transfer %s %s: available %s", amount, r.token.Symbol, bal.Display())
			}

			tx, err := session.Submit(ctx, flow.TransferRequest{
				Token:  r.token,
				Source: r.source,
				Target: r.target,
				Amount: amount,
			})
			if flow.Cancelled(err) {
				fmt.Fprintln(a.out, "transfer cancelled")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "recorded %s (%s)\n", tx.ID, tx.AmountFormatted)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&useMax, "max", false, "transfer the whole balance")
	return cmd
}
