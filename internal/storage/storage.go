package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage remembers which render jobs already produced an image.

// Store tracks rendered job fingerprints.
type Store interface {
	Close() error
	Rendered(key string) (bool, error)
	MarkRendered(key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	RenderTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRenderTTL       = 24 * time.Hour
	defaultCleanupInterval = 6 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RenderTTL <= 0 {
		opts.RenderTTL = defaultRenderTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                  { return nil }
func (noopStore) Rendered(string) (bool, error) { return false, nil }
func (noopStore) MarkRendered(string) error     { return nil }
