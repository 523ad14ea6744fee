package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/envelope-ledger/ledger"
)

func newBalancesCommand(opts *rootOptions) *cobra.Command {
	var envelopes bool
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Print balances split by transaction status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var rows []ledger.BalanceByStatus
			if envelopes {
				rows, err = a.svc.EnvelopeBalances(cmd.Context())
			} else {
				rows, err = a.svc.AccountBalances(cmd.Context())
			}
			if err != nil {
				return err
			}
			printBalances(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&envelopes, "envelopes", false, "list envelopes instead of accounts")
	return cmd
}

func printBalances(w io.Writer, rows []ledger.BalanceByStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tNOT POSTED\tPENDING\tCLEARED\tUNPAID\tPAID\tAVAILABLE\tTXS")
	for _, b := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			b.Name, b.Type,
			b.NotPosted.StringFixed(ledger.MoneyPlaces),
			b.Pending.StringFixed(ledger.MoneyPlaces),
			b.Cleared.StringFixed(ledger.MoneyPlaces),
			b.Unpaid.StringFixed(ledger.MoneyPlaces),
			b.Paid.StringFixed(ledger.MoneyPlaces),
			b.AvailableBalance.StringFixed(ledger.MoneyPlaces),
			b.TransactionCount)
	}
	tw.Flush()
}
