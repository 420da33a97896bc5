package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fyxxlabs/sitescan/models"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// HTTPEngine is the plain-mode engine: one GET, no JavaScript.
type HTTPEngine struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// HTTPOptions configures NewHTTPEngine.
type HTTPOptions struct {
	UserAgent            string
	MaxBodyBytes         int64
	AllowPrivateNetworks bool
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls conn.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint and
// the private-network guard on every dial.
func NewHTTPEngine(opts HTTPOptions) *HTTPEngine {
	dialer := newDialer(opts.AllowPrivateNetworks)
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}
	return newHTTPEngine(&http.Client{
		Transport:     transport,
		CheckRedirect: limitRedirects,
	}, opts)
}

// NewHTTPEngineWithClient wraps an existing client (tests, custom transports).
func NewHTTPEngineWithClient(client *http.Client, opts HTTPOptions) *HTTPEngine {
	return newHTTPEngine(client, opts)
}

func newHTTPEngine(client *http.Client, opts HTTPOptions) *HTTPEngine {
	e := &HTTPEngine{client: client, userAgent: opts.UserAgent, maxBody: opts.MaxBodyBytes}
	if e.userAgent == "" {
		e.userAgent = defaultUserAgent
	}
	if e.maxBody <= 0 {
		e.maxBody = 5 << 20
	}
	return e
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("too many redirects")
	}
	return nil
}

func (e *HTTPEngine) Name() string { return "http" }

// Fetch GETs an HTML page. A non-2xx status is only an error when the body
// is not HTML: soft-error pages served as HTML are still returned.
func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, body, err := e.do(ctx, req.URL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	ct := resp.Header.Get("Content-Type")
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !success && !isHTMLContentType(ct) {
		return nil, models.NewScanError(models.ErrCodeNonHTML,
			fmt.Sprintf("status %d with content-type %q", resp.StatusCode, ct), nil)
	}

	bodyStr := string(body)
	return &FetchResult{
		HTML:        bodyStr,
		Title:       extractTitle(bodyStr),
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
		ContentType: ct,
		EngineName:  e.Name(),
	}, nil
}

// Get fetches a non-page document (sitemap, robots.txt, search results).
// Any non-2xx status is an error.
func (e *HTTPEngine) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, body, err := e.do(ctx, rawURL, "*/*")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewScanError(models.ErrCodeFetch,
			fmt.Sprintf("GET %s returned status %d", rawURL, resp.StatusCode), nil)
	}
	return body, nil
}

func (e *HTTPEngine) do(ctx context.Context, rawURL, accept string) (*http.Response, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, models.NewScanError(models.ErrCodeInvalidInput, "build request", err)
	}
	httpReq.Header.Set("User-Agent", e.userAgent)
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody))
	if err != nil {
		return nil, nil, classifyTransportError(err)
	}
	return resp, body, nil
}

func classifyTransportError(err error) *models.ScanError {
	switch {
	case errors.Is(err, errBlockedAddress):
		return models.NewScanError(models.ErrCodeBlocked, "target resolves to a blocked address", err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScanError(models.ErrCodeTimeout, "plain fetch timed out", err)
	default:
		return models.NewScanError(models.ErrCodeFetch, "plain fetch failed", err)
	}
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			inTitle = string(tn) == "title"
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
