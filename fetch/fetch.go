// Package fetch is the raw-bytes fetch primitive used for page assets: one
// GET per call, a hard per-attempt timeout, and a 2xx/non-2xx outcome that
// is reported as a value instead of being raised.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"
)

// Sentinel failure reasons carried in Attempt.Err.
var (
	ErrStatus   = errors.New("non-2xx response")
	ErrTooLarge = errors.New("payload exceeds size cap")
	ErrTimeout  = errors.New("fetch timed out")
)

// Attempt is the record of one fetch try. It is not retained after the
// resource it belongs to is resolved.
type Attempt struct {
	URL    string
	Status int
	Body   []byte
	Err    error
}

// OK reports whether the attempt produced a 2xx payload.
func (a Attempt) OK() bool {
	return a.Err == nil && a.Status >= 200 && a.Status < 300
}

// Fetcher retrieves raw bytes for an absolute URL within timeout.
// Implementations never panic or block past timeout.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) Attempt
}

// Options configures a Client.
type Options struct {
	// Proxy is an http(s) proxy URL. SOCKS proxies are not supported for assets.
	Proxy string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBytes caps a single payload. Zero means 25 MiB.
	MaxBytes int64
}

// Client is a Fetcher with a Chrome TLS fingerprint. Connections are pooled
// across calls; it is safe for concurrent use.
type Client struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// New creates a Client.
func New(opts Options) *Client {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	return &Client{
		client:    NewHTTPClient(opts.Proxy),
		userAgent: opts.UserAgent,
		maxBytes:  maxBytes,
	}
}

// NewHTTPClient returns an http.Client whose TLS handshakes carry a Chrome
// fingerprint. The static page engine shares it with the asset Client.
func NewHTTPClient(proxy string) *http.Client {
	transport := &http.Transport{
		DialTLSContext:        dialChromeTLS,
		ForceAttemptHTTP2:     false,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// Fetch performs a single GET. Non-2xx statuses, transport errors, timeouts
// and oversized bodies all come back as a failed Attempt.
func (c *Client) Fetch(ctx context.Context, rawURL string, timeout time.Duration) Attempt {
	a := Attempt{URL: rawURL}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		a.Err = fmt.Errorf("fetch: build request: %w", err)
		return a
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		a.Err = classify(ctx, err)
		return a
	}
	defer resp.Body.Close()

	a.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		a.Err = fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
		return a
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		a.Err = classify(ctx, err)
		return a
	}
	if int64(len(body)) > c.maxBytes {
		a.Err = fmt.Errorf("%w (%d bytes)", ErrTooLarge, c.maxBytes)
		return a
	}
	a.Body = body
	return a
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("fetch: %w", err)
}

// chromeH1Spec is a Chrome ClientHello with ALPN restricted to http/1.1,
// because http.Transport cannot speak HTTP/2 over a utls connection.
var chromeH1Spec *tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = &spec
}

func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)

	var tlsConn *tls.UConn
	if chromeH1Spec != nil {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(chromeH1Spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("fetch: apply tls spec: %w", err)
		}
	} else {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, tls.HelloGolang)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}
