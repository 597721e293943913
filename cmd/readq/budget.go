package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/readq/pkg/budget"
	"github.com/pario-ai/readq/pkg/models"
)

func newBudgetCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show spend against the configured budget",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show budget usage for the current period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer l.close()

			enf := budget.New(l.cfg.Budget.Period, l.costs)
			s := enf.Status(l.cfg.AI.BudgetLimit)
			if s.Limit == nil {
				fmt.Printf("No budget limit set. Spent $%.4f in total.\n", s.Spent)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PERIOD\tLIMIT\tPERIOD SPENT\tREMAINING\tUSAGE\tSTATUS")
			fmt.Fprintf(w, "%s\t$%.2f\t$%.4f\t$%.4f\t%.1f%%\t%s\n",
				s.Period, *s.Limit, s.PeriodSpent, deref(s.Remaining), deref(s.UsagePercent), budgetState(s))
			return w.Flush()
		},
	}

	cmd.AddCommand(statusCmd)
	return cmd
}

func budgetState(s models.BudgetStatus) string {
	if s.Exceeded {
		return "exceeded"
	}
	return "ok"
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
