package domain

// Domain contains core models and interfaces.

// Render is the outcome of a completed render job.
type Render struct {
	JobID     string `json:"job_id"`
	Endpoint  string `json:"endpoint"`
	SourceURL string `json:"source_url,omitempty"`
	Path      string `json:"path"`
	Extension string `json:"extension"`
	Bytes     int    `json:"bytes"`
}
