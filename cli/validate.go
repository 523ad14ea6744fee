package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/envelope-ledger/ledger"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that every account balance equals the sum of its envelopes",
		Long: `Compares each account's available balance with the sum of its envelopes'
available balances and lists every account that differs by more than one
cent. Exits non-zero when any discrepancy is found. Nothing is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.svc.ValidateIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "OK: every account matches its envelopes")
				return nil
			}
			printDiscrepancies(out, found)
			return fmt.Errorf("%w: %d account(s)", ErrDiscrepancies, len(found))
		},
	}
}

func newRepairCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Create the Unassigned envelope for accounts that lost it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.svc.CreateMissingUnassignedEnvelopes(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, "Nothing to repair")
				return nil
			}
			for _, e := range created {
				fmt.Fprintf(out, "created %s (%s) with %s\n",
					e.Name, e.ID, e.CurrentBalance.StringFixed(ledger.MoneyPlaces))
			}
			return nil
		},
	}
}

func printDiscrepancies(w io.Writer, found []ledger.Discrepancy) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ACCOUNT\tBALANCE\tENVELOPES\tDIFFERENCE\t")
	for _, d := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", d.AccountName,
			d.AccountBalance.StringFixed(ledger.MoneyPlaces),
			d.EnvelopeTotal.StringFixed(ledger.MoneyPlaces),
			d.Difference.StringFixed(ledger.MoneyPlaces))
	}
	tw.Flush()
}
