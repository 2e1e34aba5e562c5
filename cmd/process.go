package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

var (
	processLimit  int
	processSource string
	processLeadID string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Score, qualify, and route pending leads",
	Long:  "Runs every lead in 'new' status through the decision pipeline: scoring, tiering, agent routing, and outreach dispatch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if processLeadID != "" {
			lead, err := env.Store.GetLead(ctx, processLeadID)
			if err != nil {
				return eris.Wrapf(err, "lead %s", processLeadID)
			}
			decision, err := env.Pipeline.Process(ctx, *lead)
			if err != nil {
				return eris.Wrapf(err, "process lead %s", processLeadID)
			}
			zap.L().Info("lead routed",
				zap.String("lead_id", decision.LeadID),
				zap.Int("score", decision.Scored.Score),
				zap.String("tier", string(decision.Qualification.Tier)),
				zap.String("handler", string(decision.Routing.HandlerClass)),
			)
			return nil
		}

		leads, err := env.Store.ListLeads(ctx, store.LeadFilter{
			Status: model.LeadStatusNew,
			Source: processSource,
			Limit:  processLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list pending leads")
		}

		result, err := env.Pipeline.ProcessBatch(ctx, leads)
		if err != nil {
			return eris.Wrap(err, "process batch")
		}

		for _, f := range result.Failed {
			zap.L().Warn("lead not routed",
				zap.String("lead_id", f.Lead.ID),
				zap.String("company", f.Lead.Company),
				zap.String("stage", f.Stage),
				zap.String("error_type", f.ErrorType),
				zap.Bool("retryable", f.Retryable()),
			)
		}

		zap.L().Info("process complete",
			zap.Int("pending", len(leads)),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", len(result.Failed)),
		)
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 500, "max leads to process in one run")
	processCmd.Flags().StringVar(&processSource, "source", "", "only process leads from this source")
	processCmd.Flags().StringVar(&processLeadID, "lead", "", "process a single lead by ID")
	rootCmd.AddCommand(processCmd)
}
