package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/catalog"
	"github.com/sells-group/place-import/internal/enrich"
	"github.com/sells-group/place-import/internal/metrics"
	"github.com/sells-group/place-import/internal/photos"
	"github.com/sells-group/place-import/internal/pipeline"
	"github.com/sells-group/place-import/internal/places"
	"github.com/sells-group/place-import/internal/queue"
	"github.com/sells-group/place-import/internal/resilience"
	"github.com/sells-group/place-import/internal/store"
	anthropicpkg "github.com/sells-group/place-import/pkg/anthropic"
	"github.com/sells-group/place-import/pkg/google"
	"github.com/sells-group/place-import/pkg/objectstore"
)

// importEnv holds the session store and, once initialized, the pipeline
// services needed by the processing and approval commands.
type importEnv struct {
	Store        *store.SQLiteStore
	Machine      *queue.Machine
	Metrics      *metrics.ImportMetrics
	Catalog      *catalog.Catalog
	Google       google.Client
	Orchestrator *pipeline.Orchestrator
	Approver     *pipeline.Approver
}

// Close releases resources held by the environment.
func (e *importEnv) Close() {
	if e.Catalog != nil {
		e.Catalog.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// openSession opens the snapshot store and restores the queue from it.
// Callers should defer env.Close().
func openSession(ctx context.Context) (*importEnv, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	snap := store.NewSnapshot(st)
	saved, err := snap.Load(ctx)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load session")
	}
	if saved != nil {
		zap.L().Debug("session restored",
			zap.Int("items", saved.Stats.Total),
			zap.Int("cursor", saved.Cursor),
		)
	}

	m := queue.NewMachine(snap, saved)
	im := metrics.New()
	m.OnChange(im.ObserveQueue)

	return &importEnv{Store: st, Machine: m, Metrics: im}, nil
}

func (e *importEnv) googleClient() google.Client {
	if e.Google == nil {
		e.Google = google.NewClient(cfg.Google.Key,
			google.WithBaseURL(cfg.Google.BaseURL),
			google.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Google.TimeoutSecs) * time.Second}),
		)
	}
	return e.Google
}

func (e *importEnv) openCatalog(ctx context.Context) error {
	if e.Catalog != nil {
		return nil
	}
	cat, err := catalog.NewPostgres(ctx, cfg.Catalog.DatabaseURL, &catalog.PoolConfig{
		MaxConns: cfg.Catalog.MaxConns,
		MinConns: cfg.Catalog.MinConns,
	})
	if err != nil {
		return err
	}
	if err := cat.Migrate(ctx); err != nil {
		cat.Close()
		return eris.Wrap(err, "migrate catalog")
	}
	e.Catalog = cat
	return nil
}

// initProcessing builds the orchestrator and its external clients.
func (e *importEnv) initProcessing(ctx context.Context) error {
	if err := cfg.Validate("process"); err != nil {
		return err
	}
	if err := e.openCatalog(ctx); err != nil {
		return err
	}

	rules, err := places.LoadCategoryRules(cfg.Pipeline.CategoriesFile)
	if err != nil {
		return err
	}

	// Search and generation share one gate and therefore one pacing clock.
	gate := resilience.NewGate(resilience.GateConfig{
		Name:        "external",
		MinInterval: cfg.Gate.MinInterval,
		MaxRetries:  cfg.Gate.MaxRetries,
		BaseDelay:   cfg.Gate.BaseDelay,
	})

	gc := e.googleClient()
	resolver := places.NewResolver(gc, gate,
		places.WithMaxCandidates(cfg.Resolver.MaxCandidates),
		places.WithBiasRadius(cfg.Resolver.BiasRadiusM),
	)
	details := places.NewDetailFetcher(gc, places.NewDetailBreaker(e.Metrics.CircuitChange))
	enricher := enrich.NewService(anthropicpkg.NewClient(cfg.Anthropic.Key), gate, enrich.Config{
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
	})

	e.Orchestrator = pipeline.New(e.Machine, resolver, details, enricher,
		catalog.NewDetector(e.Catalog), rules,
		pipeline.WithDuplicateDelay(cfg.Pipeline.DuplicateDelay),
		pipeline.WithStageObserver(e.Metrics),
	)
	return nil
}

// initApproval builds the approver with photo migration and catalog insert.
func (e *importEnv) initApproval(ctx context.Context) error {
	if err := cfg.Validate("approve"); err != nil {
		return err
	}
	if err := e.openCatalog(ctx); err != nil {
		return err
	}

	// Storage stays nil when every upload is a dry run.
	var objects objectstore.Store
	if !cfg.Photos.DryRun && !cfg.Pipeline.DryRun {
		ms, err := objectstore.NewMinioStore(
			objectstore.WithEndpoint(cfg.Storage.Endpoint),
			objectstore.WithBucket(cfg.Storage.Bucket),
			objectstore.WithRegion(cfg.Storage.Region),
			objectstore.WithAccessKey(cfg.Storage.AccessKey),
			objectstore.WithSecretKey(cfg.Storage.SecretKey),
			objectstore.WithSSL(cfg.Storage.UseSSL),
			objectstore.WithPublicBaseURL(cfg.Storage.PublicBaseURL),
		)
		if err != nil {
			return err
		}
		objects = ms
	}

	migrator := photos.NewMigrator(e.googleClient(), objects, photos.Config{
		MaxPhotos:        cfg.Photos.MaxPhotos,
		MaxWidthPx:       cfg.Photos.MaxWidthPx,
		DownloadInterval: cfg.Photos.DownloadInterval,
	}).WithObserver(e.Metrics)

	e.Approver = pipeline.NewApprover(e.Machine, migrator, e.Catalog, pipeline.ApproveConfig{
		DryRun:       cfg.Pipeline.DryRun,
		PhotosDryRun: cfg.Photos.DryRun,
	})
	return nil
}
