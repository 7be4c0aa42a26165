package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/internal/events"
	"github.com/sells-group/outreach-pipeline/internal/insight"
	"github.com/sells-group/outreach-pipeline/internal/notify"
	"github.com/sells-group/outreach-pipeline/internal/pipeline"
	"github.com/sells-group/outreach-pipeline/internal/queue"
	"github.com/sells-group/outreach-pipeline/internal/store"
	anthropicpkg "github.com/sells-group/outreach-pipeline/pkg/anthropic"
	"github.com/sells-group/outreach-pipeline/pkg/apollo"
	"github.com/sells-group/outreach-pipeline/pkg/jina"
	"github.com/sells-group/outreach-pipeline/pkg/notion"
	sfpkg "github.com/sells-group/outreach-pipeline/pkg/salesforce"
)

// pipelineEnv holds the initialized store, clients, queue runtime, and
// pipeline needed by the ingest/worker/serve/gate commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Queue    *queue.Runtime
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (OUTREACH_SALESFORCE_CLIENT_ID)")
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

	return sfpkg.NewClient(sf), nil
}

// initPipeline sets up the store, all API clients, the queue runtime, and
// the pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
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

	apolloClient := apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	sfClient, err := initSalesforce()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var rules []insight.Rule
	if cfg.Insight.RulesPath != "" {
		rules, err = insight.LoadRules(cfg.Insight.RulesPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load classification rules")
		}
		zap.L().Info("classification rules loaded",
			zap.String("path", cfg.Insight.RulesPath),
			zap.Int("rules", len(rules)),
		)
	}
	generator := insight.NewAnthropicGenerator(anthropicClient, cfg.Anthropic.Model, rules)

	var sinks []notify.Sink
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.NotionToken != "" && cfg.Notify.NotionDB != "" {
		sinks = append(sinks, notify.NewNotionSink(notion.NewClient(cfg.Notify.NotionToken), cfg.Notify.NotionDB))
	}
	if len(sinks) == 0 {
		zap.L().Debug("no notification sinks configured")
	}

	rt := queue.New(st, cfg.Queues)

	p := pipeline.New(
		st,
		pipeline.NewApolloDiscovery(apolloClient),
		pipeline.NewSalesforceCRM(sfClient),
		pipeline.NewJinaResearch(jinaClient),
		generator,
		events.NewRecorder(st),
		notify.New(sinks...),
		rt,
		pipeline.Options{},
	)
	p.RegisterHandlers(rt)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Queue:    rt,
	}, nil
}
