package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shuail0/cross-bridge/pkg/bridge/ledger"
)

// chainID 按名称或数字解析 chainId, 未配置的链也允许直接给出数字
func (a *app) chainID(nameOrID string) (int64, error) {
	if n, ok := a.registry.NetworkByName(nameOrID); ok {
		return n.ChainID, nil
	}
	return parseChainID(nameOrID)
}

func newLedgerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect locally recorded bridge requests",
	}
	cmd.AddCommand(newLedgerListCmd(a), newLedgerClaimCmd(a))
	return cmd
}

func newLedgerListCmd(a *app) *cobra.Command {
	var chainFlag, accountFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := a.chainID(chainFlag)
			if err != nil {
				return err
			}
			account, err := a.account(accountFlag)
			if err != nil {
				return err
			}
			store, closeStore, err := a.openLedger()
			if err != nil {
				return err
			}
			defer closeStore()

			txs, err := store.List(cmd.Context(), account, chainID)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Fprintln(a.out, "no transactions")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tROUTE\tAMOUNT\tREQUEST\tCLAIMED")
			for _, tx := range txs {
				claimed := "no"
				if tx.Claimed {
					claimed = tx.ClaimHashLink.ClaimHash
				}
				requestedAt := time.Unix(int64(tx.RequestTime), 0).UTC().Format(time.DateTime)
				fmt.Fprintf(w, "%s\t%s\t%s -> %s\t%s\t%s\t%s\n",
					tx.ID, requestedAt, tx.FromNetwork.Name, tx.ToNetwork.Name,
					tx.AmountFormatted, tx.RequestHashLink.RequestHash, claimed)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&chainFlag, "chain", "", "source network name or chain id")
	cmd.Flags().StringVar(&accountFlag, "account", "", "account address (default: address of the configured key)")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func newLedgerClaimCmd(a *app) *cobra.Command {
	var chainFlag, accountFlag, idFlag, hashFlag string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Record the claim transaction of a bridge request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := a.chainID(chainFlag)
			if err != nil {
				return err
			}
			account, err := a.account(accountFlag)
			if err != nil {
				return err
			}
			store, closeStore, err := a.openLedger()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := ledger.MarkClaimed(cmd.Context(), store, account, chainID, idFlag, hashFlag); err != nil {
				return fmt.Errorf("mark %s claimed: %w", idFlag, err)
			}
			fmt.Fprintf(a.out, "marked %s claimed\n", idFlag)
			return nil
		},
	}
	cmd.Flags().StringVar(&chainFlag, "chain", "", "source network name or chain id")
	cmd.Flags().StringVar(&accountFlag, "account", "", "account address (default: address of the configured key)")
	cmd.Flags().StringVar(&idFlag, "id", "", "transaction id shown by ledger list")
	cmd.Flags().StringVar(&hashFlag, "hash", "", "claim transaction hash on the target network")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}
