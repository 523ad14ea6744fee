package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/envelope-ledger/logging"
	"github.com/warp/envelope-ledger/seed"
)

func newScenarioCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "List or load the embedded demo budgets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List demo scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := seed.Scenarios()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Description)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "load SCENARIO_ID",
		Short: "Reset the database and load a demo scenario",
		Long: `Deletes every account, envelope and transaction in the configured database,
then applies the scenario through the ledger rules. Development and demo
databases only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			return loadScenario(cmd.Context(), a, args[0], cmd.OutOrStdout())
		},
	})

	return cmd
}

func loadScenario(ctx context.Context, a *app, id string, out io.Writer) error {
	res, err := seed.ResetAndApply(ctx, a.svc, a.store, id)
	if err != nil {
		return err
	}
	logging.For(a.logger, logging.ComponentSeed).InfoContext(ctx, "scenario loaded",
		"scenario", id, logging.FieldCount, len(res.Accounts))
	fmt.Fprintf(out, "Loaded %s: %d accounts, %d envelopes, %d transactions, %d transfers, %d payments\n",
		id, len(res.Accounts), len(res.Envelopes), res.Transactions, res.Transfers, res.Payments)
	return nil
}
