// Package http downloads documents over HTTP and parses them according to
// the content type the server reports.
package http

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 30 * time.Second

// DefaultMaxBodySize caps the size of a downloaded document.
const DefaultMaxBodySize = 32 << 20

// Ensure Fetcher implements ragchat.Fetcher at compile time.
var _ ragchat.Fetcher = (*Fetcher)(nil)

// Fetcher downloads documents and hands them to the parser matching the
// response content type. The document source is the requested URL.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	pdf         ragchat.Parser
	html        ragchat.Parser
	limiter     *HostLimiter
	retryDelays []time.Duration
	logger      *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the largest response body accepted, in bytes.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithHostLimiter paces requests to each host.
func WithHostLimiter(l *HostLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithRetryDelays retries downloads that fail with EUNAVAILABLE, waiting
// the given delays between attempts. By default a download is attempted
// once.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelays = delays
	}
}

// WithLogger logs retried downloads.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(pdf, html ragchat.Parser, opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		maxBodySize: DefaultMaxBodySize,
		pdf:         pdf,
		html:        html,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// FetchDocument implements ragchat.Fetcher.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) ([]*ragchat.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "invalid document URL: %q", rawURL)
	}

	contentType, body, err := f.downloadWithRetry(ctx, u)
	if err != nil {
		return nil, err
	}

	doc, err := f.parse(contentType, body)
	if err != nil {
		return nil, err
	}
	doc.Metadata[ragchat.MetaSource] = rawURL
	return []*ragchat.Document{doc}, nil
}

func (f *Fetcher) downloadWithRetry(ctx context.Context, u *url.URL) (contentType string, body []byte, err error) {
	for attempt := 0; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, u.Host); err != nil {
				return "", nil, err
			}
		}

		contentType, body, err = f.download(ctx, u.String())
		if err == nil || ragchat.ErrorCode(err) != ragchat.EUNAVAILABLE || attempt >= len(f.retryDelays) {
			return contentType, body, err
		}

		f.logger.Warn("retry fetch",
			zap.String("url", u.String()),
			zap.Int("attempt", attempt+2),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(f.retryDelays[attempt]):
		}
	}
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, ragchat.Errorf(ragchat.EUNAVAILABLE, "fetch %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil, ragchat.Errorf(ragchat.ENOTFOUND, "document not found: %s", rawURL)
	case resp.StatusCode != http.StatusOK:
		return "", nil, ragchat.Errorf(ragchat.EUNAVAILABLE, "HTTP %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return "", nil, err
	}
	if int64(len(body)) > f.maxBodySize {
		return "", nil, ragchat.Errorf(ragchat.EINVALID, "document at %s exceeds %d bytes", rawURL, f.maxBodySize)
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// parse dispatches on the declared media type, sniffing the body when the
// server declares none.
func (f *Fetcher) parse(contentType string, body []byte) (*ragchat.Document, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "application/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}

	var doc *ragchat.Document
	switch {
	case mediaType == "application/pdf":
		doc, err = f.pdf.Parse(body)
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		doc, err = f.html.Parse(body)
	case strings.HasPrefix(mediaType, "text/"):
		doc, err = &ragchat.Document{Content: string(body)}, nil
	default:
		return nil, ragchat.Errorf(ragchat.ENOTIMPLEMENTED, "unsupported content type: %s", mediaType)
	}
	if err != nil {
		return nil, err
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	return doc, nil
}
