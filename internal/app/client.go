package app

import (
	"github.com/Adda-Baaj/arcadia/internal/config"
	"github.com/Adda-Baaj/arcadia/internal/logger"
	"github.com/Adda-Baaj/arcadia/pkg/arcadia"
)

// NewClient builds an arcadia client from config. The initial catalog refresh
// starts in the background.
func NewClient(cfg *config.Config, log logger.Logger) *arcadia.Client {
	opts := []arcadia.Option{
		arcadia.WithBaseURL(cfg.BaseURL),
		arcadia.WithTimeout(cfg.RequestTimeout),
		arcadia.WithCatalogTimeout(cfg.CatalogTimeout),
		arcadia.WithBackoff(cfg.BackoffStep, cfg.BackoffMax),
		arcadia.WithReconcileDelay(cfg.ReconcileDelay),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, arcadia.WithUserAgent(cfg.UserAgent))
	}
	if log != nil {
		opts = append(opts, arcadia.WithLogger(log))
	}
	return arcadia.New(cfg.Token, opts...)
}
