package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/qualifier"
	"github.com/sells-group/leadflow/internal/router"
	"github.com/sells-group/leadflow/internal/scorer"
)

var scoreLead model.Lead

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single lead without persisting it",
	Long:  "Dry-runs the decision pipeline on flag input: prints the score breakdown, tier, next action, and outreach sequence.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("scoring", "routing"); err != nil {
			return err
		}

		scored := scorer.Score(scoreLead, cfg.Scoring)

		q, err := qualifier.Qualify(scoreLead, scored.Score, cfg.Scoring)
		if err != nil {
			return err
		}

		// A dry run assumes full capacity; routing fallbacks only matter when
		// the live availability snapshot is drained.
		snap := model.AvailabilitySnapshot{
			SeniorSlots:  cfg.Routing.SeniorCapacity,
			RegularSlots: cfg.Routing.RegularCapacity,
		}
		routing, err := router.Route(q, snap, cfg.Routing)
		if err != nil {
			return err
		}

		formatScoreResult(os.Stdout, scored, q, routing)
		return nil
	},
}

// formatScoreResult writes the dry-run verdict as a table.
func formatScoreResult(out io.Writer, scored model.ScoredLead, q model.Qualification, routing model.RoutingDecision) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Score:\t%d\n", scored.Score)

	components := make([]string, 0, len(scored.Components))
	for name := range scored.Components {
		components = append(components, name)
	}
	sort.Strings(components)
	for _, name := range components {
		if v := scored.Components[name]; v != 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t+%d\n", name, v)
		}
	}

	_, _ = fmt.Fprintf(w, "Tier:\t%s\n", q.Tier)
	_, _ = fmt.Fprintf(w, "Next action:\t%s (within %dh)\n", q.NextAction, q.TimelineHours)
	_, _ = fmt.Fprintf(w, "Handler:\t%s\n", routing.HandlerClass)

	if len(routing.OutreachSequence) == 0 {
		_, _ = fmt.Fprintln(w, "Outreach:\tnone")
	} else {
		_, _ = fmt.Fprintln(w, "Outreach:")
		for i, step := range routing.OutreachSequence {
			_, _ = fmt.Fprintf(w, "  %d.\t%s after %dm (%s)\n", i+1, step.Channel, step.DelayMinutes, step.TemplateID)
		}
	}

	_ = w.Flush()
}

func init() {
	scoreCmd.Flags().StringVar(&scoreLead.Company, "company", "", "company name (required)")
	scoreCmd.Flags().StringVar(&scoreLead.Industry, "industry", "", "industry")
	scoreCmd.Flags().IntVar(&scoreLead.EmployeeCount, "employees", 0, "employee count")
	scoreCmd.Flags().Float64Var(&scoreLead.AnnualBudget, "budget", 0, "annual insurance budget")
	scoreCmd.Flags().StringVar(&scoreLead.Source, "lead-source", "", "acquisition source")
	scoreCmd.Flags().StringVar(&scoreLead.Location, "location", "", "location")
	scoreCmd.Flags().StringVar(&scoreLead.Email, "email", "", "contact email")
	scoreCmd.Flags().StringVar(&scoreLead.Phone, "phone", "", "contact phone")
	scoreCmd.Flags().StringVar(&scoreLead.Website, "website", "", "website")
	scoreCmd.Flags().StringVar(&scoreLead.Description, "description", "", "free-text notes")
	_ = scoreCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(scoreCmd)
}
