package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/model"
)

const maxRedirects = 5

// FetchResponse is the raw outcome of fetching a document.
type FetchResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher retrieves a document by URL.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*FetchResponse, error)
}

// HTTPFetcher is a Fetcher that issues a single GET with no retry.
type HTTPFetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
}

func NewHTTPFetcher(cfg *config.FetchConfig) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout:       cfg.Timeout,
			CheckRedirect: checkRedirect,
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Get fetches rawURL. A non-200 status is returned as a response, not an error.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBodyBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	// A truncated page would be analyzed as if it were complete.
	if f.maxBodyBytes > 0 && int64(len(data)) > f.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", f.maxBodyBytes)
	}

	return &FetchResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("too many redirects")
	}
	if !isHTTPScheme(req.URL) {
		return errors.New("redirect to unsupported scheme")
	}
	return nil
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return wrap(ErrInputValidation, err)
	}
	if !isHTTPScheme(u) || u.Host == "" {
		return wrap(ErrInputValidation, fmt.Errorf("unsupported url %q", rawURL))
	}
	return nil
}

// fetchDocument runs one GET and turns anything but 200 into ErrFetch.
func fetchDocument(ctx context.Context, f Fetcher, rawURL string) (*model.SourceDocument, error) {
	resp, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, wrap(ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, wrap(ErrFetch, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}
	return &model.SourceDocument{
		URL:         rawURL,
		ContentType: resp.ContentType,
		RawBytes:    resp.Body,
		FetchedAt:   time.Now(),
	}, nil
}
