package arcadia

import (
	"bytes"
	"context"
	"io"
)

// Converter turns a fetched payload into a host-specific value, such as a
// chat attachment.
type Converter[T any] func(data []byte, ext string) T

// FetchAs fetches an image and hands it to conv.
func FetchAs[T any](ctx context.Context, c *Client, req ImageRequest, conv Converter[T]) (T, error) {
	var zero T
	res, err := c.FetchImage(ctx, req)
	if err != nil {
		return zero, err
	}
	return conv(res.Data, res.Extension), nil
}

// NamedFile is an in-memory file named after the image extension.
type NamedFile struct {
	Name string
	Data []byte
}

// Reader returns a reader over the file contents.
func (f NamedFile) Reader() io.Reader { return bytes.NewReader(f.Data) }

// AsNamedFile names the payload "image.<ext>".
func AsNamedFile(data []byte, ext string) NamedFile {
	res := ImageResult{Extension: ext}
	return NamedFile{Name: res.Filename("image"), Data: data}
}
