package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/arcadia/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB

	pageUserAgent = "Mozilla/5.0 (compatible; arcadia-renderer/1.0)"
)

var errNoImage = errors.New("page advertises no image")

// OGResolver fetches pages and extracts the og:image (or twitter:image) URL.
type OGResolver struct {
	client httpclient.Client
}

// NewOGResolver constructs a resolver with the provided HTTP client.
func NewOGResolver(client httpclient.Client) *OGResolver {
	return &OGResolver{client: client}
}

// Resolve returns the absolute image URL advertised by pageURL.
func (r *OGResolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	if r == nil || r.client == nil {
		return "", errors.New("resolver is not initialized")
	}

	resp, err := r.client.Get(ctx, pageURL, map[string]string{
		"User-Agent": pageUserAgent,
		"Accept":     "text/html,application/xhtml+xml",
	}, nil)
	if err != nil {
		return "", fmt.Errorf("http fetch: %w", err)
	}

	if resp.StatusCode() != 200 {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return "", fmt.Errorf("status %d body: %s", resp.StatusCode(), snippet)
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	img, err := parseImageMeta(body)
	if err != nil {
		return "", err
	}
	if img == "" {
		return "", fmt.Errorf("%s: %w", pageURL, errNoImage)
	}
	return resolveURL(pageURL, img), nil
}

func parseImageMeta(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return firstNonEmpty(
		extract(`meta[property="og:image:secure_url"]`),
		extract(`meta[property="og:image"]`),
		extract(`meta[name="twitter:image"]`),
	), nil
}

// resolveURL makes ref absolute against base, returning ref untouched when
// either side does not parse.
func resolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
