package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/internal/store"
	sfpkg "github.com/sells-group/leadflow/pkg/salesforce"
)

var (
	syncLimit  int
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push routed leads to Salesforce",
	Long:  "Builds Salesforce Lead records from routed decisions, bulk-inserts new leads, and refreshes the verdict fields on leads the org already has.",
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

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status: model.LeadStatusRouted,
			Limit:  syncLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list routed leads")
		}
		if len(leads) == 0 {
			zap.L().Info("sync: nothing to push")
			return nil
		}

		decisions := make([]model.Decision, 0, len(leads))
		for _, lead := range leads {
			d, err := st.GetLatestDecision(ctx, lead.ID)
			if err != nil {
				return eris.Wrapf(err, "decision for lead %s", lead.ID)
			}
			if d == nil {
				zap.L().Warn("sync: routed lead has no decision", zap.String("lead_id", lead.ID))
				continue
			}
			if d.Qualification.Tier == model.TierUnqualified {
				continue
			}
			decisions = append(decisions, *d)
		}

		if syncDryRun {
			zap.L().Info("sync: dry run",
				zap.Int("routed", len(leads)),
				zap.Int("would_push", len(decisions)),
			)
			return nil
		}

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		pushed, updated, err := pushDecisions(ctx, sf, st, decisions)
		if err != nil {
			return err
		}

		zap.L().Info("sync complete",
			zap.Int("created", pushed),
			zap.Int("updated", updated),
		)
		return nil
	},
}

// pushDecisions partitions decisions by whether the org already has the lead's
// email: new leads are bulk-inserted, existing ones get their verdict fields
// refreshed. Returns (created, updated).
func pushDecisions(ctx context.Context, sf sfpkg.Client, st store.Store, decisions []model.Decision) (int, int, error) {
	emails := make([]string, 0, len(decisions))
	for _, d := range decisions {
		if d.Scored.Lead.Email != "" {
			emails = append(emails, d.Scored.Lead.Email)
		}
	}

	// Validation rejections come back per-record and mean the payload is bad,
	// not the CRM; only transient failures should open the breaker.
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.ShouldTrip = resilience.IsTransient
	breaker := resilience.NewCircuitBreaker(breakerCfg)

	retry := resilience.RetryFromConfig(3, 500)
	retry.OnRetry = resilience.RetryLogger("salesforce", "existing_leads")

	existing, err := resilience.DoVal(ctx, retry,
		func(ctx context.Context) (map[string]string, error) {
			return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (map[string]string, error) {
				return sfpkg.ExistingLeadEmails(ctx, sf, emails)
			})
		})
	if err != nil {
		return 0, 0, err
	}

	var records []map[string]any
	var insertable []model.Decision
	var updates []sfpkg.LeadUpdate
	var updatable []model.Decision
	for _, d := range decisions {
		email := strings.ToLower(d.Scored.Lead.Email)
		if sfID, ok := existing[email]; email != "" && ok {
			updates = append(updates, sfpkg.VerdictUpdate(sfID, d))
			updatable = append(updatable, d)
			continue
		}
		records = append(records, sfpkg.SyncRecord(d))
		insertable = append(insertable, d)
	}

	// Writes are not retried: a mid-batch failure may already have landed
	// records, and the next sync run dedupes by email anyway.
	results, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]sfpkg.CollectionResult, error) {
		return sfpkg.BulkCreateLeads(ctx, sf, records)
	})
	if err != nil {
		return 0, 0, eris.Wrap(err, "push leads")
	}
	created := markSynced(ctx, st, "insert", insertable, results)

	updateResults, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]sfpkg.CollectionResult, error) {
		return sfpkg.BulkUpdateLeads(ctx, sf, updates)
	})
	if err != nil {
		return created, 0, eris.Wrap(err, "update existing leads")
	}
	updated := markSynced(ctx, st, "update", updatable, updateResults)

	return created, updated, nil
}

// markSynced flips successfully written leads to synced and reports how many
// made it. Rejected leads stay routed so the next run retries them.
func markSynced(ctx context.Context, st store.Store, op string, decisions []model.Decision, results []sfpkg.CollectionResult) int {
	ok := 0
	for i, res := range results {
		d := decisions[i]
		if !res.Success {
			zap.L().Warn("sync: "+op+" rejected",
				zap.String("lead_id", d.LeadID),
				zap.String("company", d.Scored.Lead.Company),
				zap.Strings("errors", res.Errors),
			)
			continue
		}
		if err := st.UpdateLeadStatus(ctx, d.LeadID, model.LeadStatusSynced); err != nil {
			zap.L().Error("sync: lead pushed but status not updated",
				zap.String("lead_id", d.LeadID),
				zap.Error(err),
			)
			continue
		}
		ok++
	}
	return ok
}

func init() {
	syncCmd.Flags().IntVar(&syncLimit, "limit", 500, "max leads to sync in one run")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what would be pushed without calling Salesforce")
	rootCmd.AddCommand(syncCmd)
}
