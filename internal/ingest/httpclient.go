package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	userAgent       = "opportunity-radar/1.0 (+https://github.com/david/opportunity-radar)"
	maxResponseSize = 20 << 20
	maxRetryAfter   = 30 * time.Second
)

var blockedPrefixes = func() []netip.Prefix {
	var out []netip.Prefix
	for _, s := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "169.254.0.0/16", "::1/128", "fc00::/7", "fe80::/10"} {
		out = append(out, netip.MustParsePrefix(s))
	}
	return out
}()

// StatusError is returned for a non-2xx upstream response after retries.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d", e.Code)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Body)
}

// HTTPClient is the shared transport for API collaborators: a token bucket
// per client, bounded timeouts and exponential backoff on 429 and 5xx.
type HTTPClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// NewHTTPClient builds a client from a source's fetch settings. A nil hc gets
// a transport that refuses to dial private addresses.
func NewHTTPClient(cfg FetchConfig, hc *http.Client) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	if hc == nil {
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           safeDialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          20,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
			CheckRedirect: safeCheckRedirect,
		}
	}
	return &HTTPClient{
		client:     hc,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: retries,
		backoff:    500 * time.Millisecond,
	}
}

// GetJSON decodes the JSON body of a GET into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// PostJSON sends in as a JSON body and decodes the response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	body, err := c.Do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Do performs a request with rate limiting and retries and returns the body.
func (c *HTTPClient) Do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff*time.Duration(1<<uint(attempt-1)) + time.Duration(rand.Int63n(int64(c.backoff/5)+1))
			if se, ok := lastErr.(*retryAfterError); ok && se.after > 0 {
				wait = se.after
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retry, err := c.once(ctx, method, url, payload)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	if ra, ok := lastErr.(*retryAfterError); ok {
		lastErr = ra.StatusError
	}
	return nil, fmt.Errorf("%s %s: retries exhausted: %w", method, url, lastErr)
}

type retryAfterError struct {
	*StatusError
	after time.Duration
}

func (c *HTTPClient) once(ctx context.Context, method, url string, payload []byte) ([]byte, bool, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, application/xml;q=0.9, */*;q=0.8")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, true, err
		}
		return nil, false, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, false, nil
	}

	se := &StatusError{Code: resp.StatusCode, Body: TruncateText(strings.TrimSpace(string(body)), 200)}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &retryAfterError{StatusError: se, after: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return nil, true, se
	}
	return nil, false, se
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return vettedDial(ctx, network, addr, net.DefaultResolver.LookupIP, d.DialContext)
}

type lookupIPFunc func(ctx context.Context, network, host string) ([]net.IP, error)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// vettedDial resolves host once, rejects private addresses and dials the
// checked IPs, so a second lookup cannot swap in another address.
func vettedDial(ctx context.Context, network, addr string, lookup lookupIPFunc, dial dialFunc) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else if ips, err = lookup(ctx, "ip", host); err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return nil, fmt.Errorf("blocked private address %s", ip)
		}
	}

	var lastErr error
	for _, ip := range ips {
		conn, err := dial(ctx, network, net.JoinHostPort(ip.String(), port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if addr, ok := netip.AddrFromSlice(ip); ok {
		for _, p := range blockedPrefixes {
			if p.Contains(addr.Unmap()) {
				return true
			}
		}
	}
	return false
}

func safeCheckRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect scheme %q blocked", req.URL.Scheme)
	}
	host := strings.ToLower(req.URL.Hostname())
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".local") {
		return fmt.Errorf("redirect to internal host blocked")
	}
	return nil
}
