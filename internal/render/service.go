package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adda-Baaj/arcadia/internal/domain"
	"github.com/Adda-Baaj/arcadia/internal/logger"
	"github.com/Adda-Baaj/arcadia/internal/storage"
	"github.com/Adda-Baaj/arcadia/pkg/jobs"
	"github.com/Adda-Baaj/arcadia/pkg/publishers"
)

// Service renders configured jobs to disk and announces the results.
type Service struct {
	fetcher   ImageFetcher
	resolver  SourceResolver
	publisher EventPublisher
	store     storage.Store
	outputDir string
	log       logger.Logger
}

// NewService wires a render service. resolver, publisher and store are optional.
func NewService(fetcher ImageFetcher, resolver SourceResolver, pub EventPublisher, log logger.Logger, store storage.Store, outputDir string) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		fetcher:   fetcher,
		resolver:  resolver,
		publisher: pub,
		store:     store,
		outputDir: outputDir,
		log:       log,
	}
}

// Run executes a render pass for all jobs. Failures of individual jobs do not
// stop the pass; they are joined into the returned error.
func (s *Service) Run(ctx context.Context, list []jobs.Job) error {
	if s == nil || s.fetcher == nil {
		return fmt.Errorf("render service is not initialized")
	}

	if len(list) == 0 {
		return fmt.Errorf("no jobs configured for rendering")
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	errs := s.runAll(ctx, list)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func (s *Service) runAll(ctx context.Context, list []jobs.Job) []error {
	errs := make([]error, 0, len(list))

	for _, job := range list {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("render job failed", "job_error", map[string]any{
				"job_id":   job.ID,
				"endpoint": job.Endpoint,
				"error":    err.Error(),
			})
		}
	}

	return errs
}

func (s *Service) runJob(ctx context.Context, job jobs.Job) error {
	key := job.Key()
	if s.alreadyRendered(job, key) {
		s.log.DebugObj("render skipped; already rendered", "job_skip", map[string]any{
			"job_id": job.ID,
		})
		return nil
	}

	source, err := s.source(ctx, job)
	if err != nil {
		return fmt.Errorf("resolve source for job %s: %w", job.ID, err)
	}

	res, err := s.fetcher.FetchImage(ctx, job.Request(source))
	if err != nil {
		return fmt.Errorf("fetch image for job %s: %w", job.ID, err)
	}

	path, err := s.write(job.Output, res.Extension, res.Data)
	if err != nil {
		return fmt.Errorf("write image for job %s: %w", job.ID, err)
	}

	render := domain.Render{
		JobID:     job.ID,
		Endpoint:  job.Endpoint,
		SourceURL: source,
		Path:      path,
		Extension: res.Extension,
		Bytes:     len(res.Data),
	}

	if s.publisher != nil {
		delivered, err := s.publisher.Publish(ctx, publishers.NewEvent(render))
		if err != nil {
			return fmt.Errorf("publish render for job %s (delivered=%d): %w", job.ID, delivered, err)
		}
	}

	if s.store != nil {
		if err := s.store.MarkRendered(key); err != nil {
			s.log.WarnObj("render store write failed", "store_error", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		}
	}

	s.log.InfoObj("render job completed", "job_result", render)
	return nil
}

func (s *Service) alreadyRendered(job jobs.Job, key string) bool {
	if s.store == nil {
		return false
	}
	ok, err := s.store.Rendered(key)
	if err != nil {
		s.log.WarnObj("render store lookup failed", "store_error", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		return false
	}
	return ok
}

// source returns the URL to send as the primary image. A page URL is only
// resolved when no direct URL is configured.
func (s *Service) source(ctx context.Context, job jobs.Job) (string, error) {
	if job.URL != "" || job.PageURL == "" {
		return job.URL, nil
	}
	if s.resolver == nil {
		return "", errors.New("page_url set but no resolver configured")
	}
	return s.resolver.Resolve(ctx, job.PageURL)
}

// write stores data as <outputDir>/<name>.<ext>, replacing any previous file.
func (s *Service) write(name, ext string, data []byte) (string, error) {
	if ext != "" {
		name += "." + ext
	}
	path := filepath.Join(s.outputDir, name)

	tmp, err := os.CreateTemp(s.outputDir, "."+name+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
