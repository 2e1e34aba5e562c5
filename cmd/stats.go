package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/monitoring"
)

var (
	statsLookback int
	statsFormat   string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline health metrics",
	Long:  "Collects tier and status counts, average score, and SLA breaches over a lookback window.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, statsLookback)
		if err != nil {
			return err
		}

		switch statsFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close() //nolint:errcheck
			return enc.Encode(snap)
		case "table":
			formatStats(os.Stdout, snap)
			return nil
		default:
			return eris.Errorf("unknown format %q (json, yaml, table)", statsFormat)
		}
	},
}

// formatStats writes the snapshot as a table.
func formatStats(out io.Writer, snap *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Decisions:\t%d\n", snap.DecisionsTotal)
	_, _ = fmt.Fprintf(w, "  Hot:\t%d\n", snap.HotCount)
	_, _ = fmt.Fprintf(w, "  Unqualified rate:\t%.1f%%\n", snap.UnqualifiedRate*100)
	_, _ = fmt.Fprintf(w, "  Avg score:\t%.1f\n", snap.AvgScore)
	_, _ = fmt.Fprintf(w, "SLA breaches:\t%d\n", snap.SLABreaches)

	_, _ = fmt.Fprintln(w, "Leads by status:")
	for _, status := range []model.LeadStatus{
		model.LeadStatusNew, model.LeadStatusScored, model.LeadStatusRouted,
		model.LeadStatusSynced, model.LeadStatusConverted, model.LeadStatusLost,
	} {
		if n := snap.LeadsByStatus[status]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", status, n)
		}
	}

	_, _ = fmt.Fprintln(w, "Decisions by tier:")
	for _, tier := range []model.Tier{
		model.TierHot, model.TierWarm, model.TierCold, model.TierUnqualified,
	} {
		if n := snap.DecisionsByTier[tier]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", tier, n)
		}
	}

	_ = w.Flush()
}

func init() {
	statsCmd.Flags().IntVar(&statsLookback, "lookback", 24, "lookback window in hours")
	statsCmd.Flags().StringVar(&statsFormat, "format", "table", "output format (json, yaml, table)")
	rootCmd.AddCommand(statsCmd)
}
