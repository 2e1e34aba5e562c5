package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/agents"
	"github.com/sells-group/leadflow/internal/outreach"
	"github.com/sells-group/leadflow/internal/pipeline"
	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/internal/store"
	sfpkg "github.com/sells-group/leadflow/pkg/salesforce"
)

// pipelineEnv holds the initialized store, availability provider, and
// pipeline shared by the process/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Avail    agents.AvailabilityProvider
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSalesforce() (sfpkg.Client, error) {
	if err := cfg.Validate("salesforce"); err != nil {
		return nil, err
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RatePerSecond)), nil
}

// initPipeline sets up the store, availability provider, and outreach
// executor, then builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("scoring", "routing"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	avail := agents.NewConfigProvider(cfg.Routing.SeniorCapacity, cfg.Routing.RegularCapacity)

	var exec outreach.Executor = outreach.NewLogExecutor()
	if outreachURL != "" {
		exec = outreach.NewWebhookExecutor(outreachURL, resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			OnRetry:        resilience.RetryLogger("outreach", "dispatch"),
		})
	}

	p := pipeline.New(cfg, st, avail, exec)

	return &pipelineEnv{
		Store:    st,
		Avail:    avail,
		Pipeline: p,
	}, nil
}

// outreachURL is set by the --outreach-url persistent flag. Empty means
// sequences are logged, not sent.
var outreachURL string

func init() {
	rootCmd.PersistentFlags().StringVar(&outreachURL, "outreach-url", "", "outreach scheduler endpoint (default: log only)")
}
