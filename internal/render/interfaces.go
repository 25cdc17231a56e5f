package render

import (
	"context"

	"github.com/Adda-Baaj/arcadia/pkg/arcadia"
	"github.com/Adda-Baaj/arcadia/pkg/publishers"
)

// ImageFetcher renders one image through the arcadia API.
type ImageFetcher interface {
	FetchImage(ctx context.Context, req arcadia.ImageRequest) (*arcadia.ImageResult, error)
}

// SourceResolver turns a page URL into the image URL it advertises.
type SourceResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// EventPublisher publishes render events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
