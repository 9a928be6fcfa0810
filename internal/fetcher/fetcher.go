package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
)

// Response is what a single fetch observed.
type Response struct {
	Method        string
	Status        int
	FinalURL      string
	RedirectChain []string
	ContentType   string

	// Body is only set for text-like GET responses.
	Body    string
	HasBody bool

	HTMLLike bool
}

// Redirected reports whether at least one redirect was followed.
func (r *Response) Redirected() bool {
	return len(r.RedirectChain) > 0
}

// Observer receives per-request timings. Optional.
type Observer interface {
	ObserveFetch(method string, elapsed time.Duration)
}

// Fetcher issues the HEAD/GET requests of a link check.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	observer  Observer
}

// New creates a fetcher. A nil transport gets a dedicated one with the
// configured timeout applied to dialing and the TLS handshake.
func New(cfg Config, transport http.RoundTripper, observer Observer) *Fetcher {
	cfg = cfg.WithDefaults()
	if transport == nil {
		transport = newTransport(cfg.Timeout)
	}
	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		observer:  observer,
	}
}

func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Fetch tries HEAD first and falls back to GET when HEAD fails, reports an
// error status, or the content is not text-like. HTML always goes through GET
// because extraction needs the body. If GET fails after a usable HEAD the HEAD
// observation is returned without a body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	head, headErr := f.do(ctx, http.MethodHead, rawURL)
	if headErr == nil && head.Status < 400 && isTextLike(head.ContentType) && !head.HTMLLike {
		return head, nil
	}

	get, getErr := f.do(ctx, http.MethodGet, rawURL)
	if getErr != nil {
		if headErr == nil {
			return head, nil
		}
		return nil, getErr
	}
	return get, nil
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string) (*Response, error) {
	start := time.Now()
	if f.observer != nil {
		defer func() { f.observer.ObserveFetch(method, time.Since(start)) }()
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	f.setHeaders(req)

	rec := &redirectRecorder{maxHops: f.cfg.MaxRedirects}
	client := &http.Client{
		Transport:     f.transport,
		Timeout:       f.cfg.Timeout,
		CheckRedirect: rec.checkRedirect,
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	out := &Response{
		Method:        method,
		Status:        resp.StatusCode,
		FinalURL:      resp.Request.URL.String(),
		RedirectChain: rec.redirects(),
		ContentType:   resp.Header.Get("Content-Type"),
	}

	if method == http.MethodHead {
		out.HTMLLike = isHTML(out.ContentType)
		return out, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		// Status and headers are still worth scoring.
		body = nil
	}

	if out.ContentType == "" && len(body) > 0 {
		out.ContentType = http.DetectContentType(body)
	}
	out.HTMLLike = isHTML(out.ContentType)

	if len(body) > 0 && isTextLike(out.ContentType) {
		out.Body = string(body)
		out.HasBody = true
	}

	return out, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	for k, v := range f.cfg.Headers {
		req.Header.Set(k, v)
	}
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func isHTML(contentType string) bool {
	switch mediaType(contentType) {
	case "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

func isTextLike(contentType string) bool {
	mt := mediaType(contentType)
	switch {
	case strings.HasPrefix(mt, "text/"):
		return true
	case mt == "application/xml", mt == "application/json":
		return true
	case strings.HasSuffix(mt, "+xml"), strings.HasSuffix(mt, "+json"):
		return true
	default:
		return false
	}
}
