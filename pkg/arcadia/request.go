package arcadia

import (
	"strconv"
	"strings"
	"time"
)

// Query parameter names understood by the image endpoints.
const (
	ParamURL       = "url"
	ParamSecondURL = "urlbis"
	ParamText      = "text"
	ParamVariant   = "type"
)

// ImageRequest describes a single image generation call.
type ImageRequest struct {
	// Endpoint is the image type, matched case-insensitively.
	Endpoint string
	// URL is the primary source image. It always wins over a "url" entry in Params.
	URL string
	// Params are passed through verbatim as query parameters.
	Params map[string]string
	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// RequestOption mutates an ImageRequest under construction.
type RequestOption func(*ImageRequest)

// NewImageRequest builds a request for endpoint.
func NewImageRequest(endpoint string, opts ...RequestOption) ImageRequest {
	req := ImageRequest{Endpoint: endpoint}
	for _, opt := range opts {
		if opt != nil {
			opt(&req)
		}
	}
	return req
}

// WithURL sets the primary source image URL.
func WithURL(u string) RequestOption {
	return func(r *ImageRequest) { r.URL = u }
}

// WithSecondURL sets the second source image used by two-image endpoints.
func WithSecondURL(u string) RequestOption {
	return WithParam(ParamSecondURL, u)
}

// WithText sets the text rendered by text endpoints.
func WithText(text string) RequestOption {
	return WithParam(ParamText, text)
}

// WithVariant selects one of several variants of the same endpoint. Zero
// means the default variant and is not sent.
func WithVariant(n int) RequestOption {
	return func(r *ImageRequest) {
		if n == 0 {
			return
		}
		WithParam(ParamVariant, strconv.Itoa(n))(r)
	}
}

// WithParam sets an arbitrary query parameter. Empty values are skipped.
func WithParam(key, value string) RequestOption {
	return func(r *ImageRequest) {
		if strings.TrimSpace(key) == "" || value == "" {
			return
		}
		if r.Params == nil {
			r.Params = make(map[string]string)
		}
		r.Params[key] = value
	}
}

// WithRequestTimeout overrides the client default timeout for this request.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *ImageRequest) { r.Timeout = d }
}

// query merges the extra params with the primary URL, which takes precedence.
func (r ImageRequest) query() map[string]string {
	q := make(map[string]string, len(r.Params)+1)
	for k, v := range r.Params {
		q[k] = v
	}
	if r.URL != "" {
		q[ParamURL] = r.URL
	}
	return q
}

// ImageResult is the raw payload of a successful fetch.
type ImageResult struct {
	Data      []byte
	Extension string
}

// Filename joins base with the result extension.
func (r *ImageResult) Filename(base string) string {
	if r == nil || r.Extension == "" {
		return base
	}
	return base + "." + r.Extension
}

// extensionFromContentType returns the subtype of a content type, ignoring
// any media type parameters.
func extensionFromContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	ct = strings.TrimSpace(ct)
	if i := strings.LastIndex(ct, "/"); i >= 0 {
		return ct[i+1:]
	}
	return ct
}
