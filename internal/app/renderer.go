package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/arcadia/internal/config"
	"github.com/Adda-Baaj/arcadia/internal/logger"
	"github.com/Adda-Baaj/arcadia/internal/render"
	"github.com/Adda-Baaj/arcadia/internal/storage"
	"github.com/Adda-Baaj/arcadia/pkg/arcadia"
	"github.com/Adda-Baaj/arcadia/pkg/httpclient"
	"github.com/Adda-Baaj/arcadia/pkg/jobs"
	"github.com/Adda-Baaj/arcadia/pkg/publishers"
)

// Renderer is the batch render runtime. It owns the arcadia client, the
// render store and the publisher fanout, and drives render passes either once
// or on a fixed interval.
type Renderer struct {
	cfg            *config.Config
	jobReg         *jobs.Registry
	client         *arcadia.Client
	pages          *httpclient.RestyClient
	fanout         *publishers.Fanout
	renderService  *render.Service
	renderInterval time.Duration
	log            logger.Logger
	store          storage.Store
}

// NewRenderer builds a renderer runtime from config files.
func NewRenderer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Renderer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	jobReg, err := jobs.LoadRegistry(cfg.JobsFile)
	if err != nil {
		return nil, fmt.Errorf("load jobs registry: %w", err)
	}
	jobList := jobReg.All()
	jobIDs := make([]string, 0, len(jobList))
	for _, j := range jobList {
		jobIDs = append(jobIDs, j.ID)
	}
	log.InfoObj("jobs registry loaded", "jobs_meta", map[string]any{
		"count": len(jobIDs),
		"ids":   jobIDs,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		RenderTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"render_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	client := NewClient(cfg, log)
	pages := httpclient.NewRestyClient(cfg.CatalogTimeout)
	renderService := render.NewService(client, render.NewOGResolver(pages), fanout, log, store, cfg.OutputDir)

	return &Renderer{
		cfg:            cfg,
		jobReg:         jobReg,
		client:         client,
		pages:          pages,
		fanout:         fanout,
		renderService:  renderService,
		renderInterval: cfg.RenderInterval,
		log:            log,
		store:          store,
	}, nil
}

// Catalog exposes the endpoint catalog of the underlying client.
func (r *Renderer) Catalog() *arcadia.Catalog { return r.client.Catalog() }

// buildFanout loads the optional publishers file. Without one, renders are
// written to disk only.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("no publishers file configured; events disabled", "publishers_meta", map[string]any{
			"count": 0,
		})
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabledPublishers := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Run performs a render pass, then repeats it every render interval until the
// context is cancelled. With a zero interval it returns after the first pass.
func (r *Renderer) Run(ctx context.Context) error {
	if r == nil || r.renderService == nil {
		return fmt.Errorf("renderer is not initialized")
	}
	defer r.close()

	list := r.jobReg.All()
	r.log.InfoObj("renderer starting", "renderer_state", map[string]any{
		"jobs_count":       len(list),
		"publishers_count": r.fanout.Size(),
		"render_interval":  r.renderInterval.String(),
		"output_dir":       r.cfg.OutputDir,
	})

	if r.renderInterval <= 0 {
		return r.runOnce(ctx, list)
	}

	if err := r.runOnce(ctx, list); err != nil {
		r.log.ErrorObj("initial render failed", "error", err)
	}

	ticker := time.NewTicker(r.renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("renderer loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx, list); err != nil {
				r.log.ErrorObj("scheduled render failed", "error", err)
			}
		}
	}
}

// runOnce performs a single render pass across all jobs.
func (r *Renderer) runOnce(ctx context.Context, list []jobs.Job) error {
	start := time.Now()
	r.log.InfoObj("render started", "render_meta", map[string]any{
		"jobs_count": len(list),
		"started_at": start.UTC(),
	})
	if err := r.renderService.Run(ctx, list); err != nil {
		return err
	}
	r.log.InfoObj("render completed", "render_meta", map[string]any{
		"jobs_count": len(list),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// close releases the client, publishers and store, logging any errors encountered.
func (r *Renderer) close() {
	if r == nil {
		return
	}
	var errs []error
	if r.client != nil {
		errs = append(errs, r.client.Close())
	}
	if r.pages != nil {
		errs = append(errs, r.pages.Close())
	}
	if r.fanout != nil {
		errs = append(errs, r.fanout.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		r.log.ErrorObj("renderer shutdown failed", "error", err)
	}
}
