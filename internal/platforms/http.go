package platforms

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultHTTPTimeout bounds a single adapter request.
	DefaultHTTPTimeout = 15 * time.Second
	UserAgent          = "job-autopilot/1.0"

	maxErrorBody = 512
)

// NewHTTPClient returns the client adapters use by default.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

// GetJSON performs a GET and decodes a JSON body into target, transparently
// handling gzip-encoded responses.
func GetJSON(ctx context.Context, client *http.Client, endpoint string, q url.Values, header http.Header, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := Body(resp)
	if err != nil {
		return err
	}
	defer body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return fmt.Errorf("bad status: %s: %s", resp.Status, snippet)
	}

	if err := json.NewDecoder(body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Body returns the response body, unwrapping gzip content encoding.
func Body(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return io.NopCloser(resp.Body), nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return zr, nil
}
