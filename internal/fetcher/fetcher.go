// Package fetcher retrieves source documents over HTTP and FTP and decodes
// the tabular and feed formats the reference adapters consume.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultMaxBody caps how much of a single document ReadAll will buffer.
const DefaultMaxBody = 64 << 20

// Fetcher opens a remote document for reading.
type Fetcher interface {
	// Download fetches the URL and returns the body. The caller closes it.
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// ReadAll downloads rawURL with f and buffers at most limit bytes (zero
// means DefaultMaxBody). A body larger than limit is an error.
func ReadAll(ctx context.Context, f Fetcher, rawURL string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body of %s", rawURL)
	}
	if int64(len(data)) > limit {
		return nil, eris.Errorf("fetcher: body of %s exceeds %d bytes", rawURL, limit)
	}
	return data, nil
}

// ForURL picks the fetcher matching the URL scheme.
func ForURL(rawURL string, httpF, ftpF Fetcher) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if httpF == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", rawURL)
		}
		return httpF, nil
	case "ftp":
		if ftpF == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher for %s", rawURL)
		}
		return ftpF, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
