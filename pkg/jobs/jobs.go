package jobs

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic fingerprint
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adda-Baaj/arcadia/pkg/arcadia"
)

// Package jobs loads render job definitions (YAML/JSON).

// Job describes one image to render.
type Job struct {
	ID        string            `json:"id" yaml:"id"`
	Endpoint  string            `json:"endpoint" yaml:"endpoint"`
	URL       string            `json:"url" yaml:"url"`
	PageURL   string            `json:"page_url" yaml:"page_url"`
	SecondURL string            `json:"second_url" yaml:"second_url"`
	Text      string            `json:"text" yaml:"text"`
	Variant   int               `json:"variant" yaml:"variant"`
	Params    map[string]string `json:"params" yaml:"params"`
	Output    string            `json:"output" yaml:"output"`
	TimeoutS  int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type file struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Registry holds the loaded jobs in file order.
type Registry struct {
	jobs []Job
	idx  map[string]Job
}

// LoadRegistry loads the job registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("jobs file path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jobs file: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	parsed, err := parseJobs(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Jobs) == 0 {
		return nil, errors.New("jobs file contains no jobs entries")
	}

	reg := &Registry{
		jobs: make([]Job, 0, len(parsed.Jobs)),
		idx:  make(map[string]Job, len(parsed.Jobs)),
	}
	for i := range parsed.Jobs {
		job := sanitizeJob(parsed.Jobs[i])
		if err := validateJob(job); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, exists := reg.idx[job.ID]; exists {
			return nil, fmt.Errorf("duplicate job id %q", job.ID)
		}
		reg.jobs = append(reg.jobs, job)
		reg.idx[job.ID] = job
	}
	return reg, nil
}

// All returns a copy of the loaded jobs.
func (r *Registry) All() []Job {
	if r == nil {
		return nil
	}
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// ByID returns the job with the given id.
func (r *Registry) ByID(id string) (Job, bool) {
	if r == nil {
		return Job{}, false
	}
	job, ok := r.idx[strings.TrimSpace(id)]
	return job, ok
}

func parseJobs(data []byte, ext string) (file, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var f file
		if err := d.fn(data, &f); err == nil {
			return f, nil
		}
	}

	return file{}, errors.New("jobs file format not recognized (expected YAML or JSON)")
}

func sanitizeJob(j Job) Job {
	j.ID = strings.TrimSpace(j.ID)
	j.Endpoint = strings.ToLower(strings.TrimSpace(j.Endpoint))
	j.URL = strings.TrimSpace(j.URL)
	j.PageURL = strings.TrimSpace(j.PageURL)
	j.SecondURL = strings.TrimSpace(j.SecondURL)
	j.Output = strings.TrimSpace(j.Output)
	if j.Output == "" {
		j.Output = j.ID
	}
	return j
}

func validateJob(j Job) error {
	if j.ID == "" {
		return errors.New("id is required")
	}
	if j.Endpoint == "" {
		return fmt.Errorf("endpoint is required for job %q", j.ID)
	}
	if j.Variant < 0 {
		return fmt.Errorf("variant must not be negative for job %q", j.ID)
	}
	if strings.ContainsAny(j.Output, `/\`) || j.Output == "." || j.Output == ".." {
		return fmt.Errorf("output must be a plain file name for job %q", j.ID)
	}
	return nil
}

// Timeout returns the per-job request timeout, zero meaning the client default.
func (j Job) Timeout() time.Duration {
	if j.TimeoutS <= 0 {
		return 0
	}
	return time.Duration(j.TimeoutS) * time.Second
}

// Request builds the image request for the job. sourceURL replaces URL when
// the primary image was resolved from PageURL.
func (j Job) Request(sourceURL string) arcadia.ImageRequest {
	if sourceURL == "" {
		sourceURL = j.URL
	}
	opts := []arcadia.RequestOption{
		arcadia.WithURL(sourceURL),
		arcadia.WithSecondURL(j.SecondURL),
		arcadia.WithText(j.Text),
		arcadia.WithVariant(j.Variant),
		arcadia.WithRequestTimeout(j.Timeout()),
	}
	for k, v := range j.Params {
		opts = append(opts, arcadia.WithParam(k, v))
	}
	return arcadia.NewImageRequest(j.Endpoint, opts...)
}

// Key fingerprints everything that affects the rendered image.
func (j Job) Key() string {
	parts := []string{j.ID, j.Endpoint, j.URL, j.PageURL, j.SecondURL, j.Text, strconv.Itoa(j.Variant)}
	keys := make([]string, 0, len(j.Params))
	for k := range j.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+j.Params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
