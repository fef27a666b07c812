// Package httpx provides a simpler http.Client abstraction and derivative uses.
package httpx

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/airgapcourier/depssmuggler/internal/cache"
)

// BasicClient is a simpler http.Client that only requires a Do method.
type BasicClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ BasicClient = http.DefaultClient

// WithUserAgent is a basic HTTP client that adds a User-Agent header.
type WithUserAgent struct {
	BasicClient
	UserAgent string
}

var _ BasicClient = &WithUserAgent{}

// Do adds the User-Agent header and sends the request.
func (c *WithUserAgent) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.UserAgent)
	return c.BasicClient.Do(req)
}

// CachedClient is a BasicClient that caches responses.
type CachedClient struct {
	BasicClient
	ch cache.Cache
}

// NewCachedClient returns a new CachedClient.
func NewCachedClient(client BasicClient, c cache.Cache) *CachedClient {
	return &CachedClient{client, c}
}

// ForceRefreshHeader, when set to any non-empty value on a request passed to
// CachedClient.Do, bypasses both cache tiers for that request (spec.md
// §4.2 step 1). The header never reaches the wire; CachedClient strips it
// before issuing the underlying request.
const ForceRefreshHeader = "X-Depssmuggler-Force-Refresh"

// Do attempts to fetch from cache (if applicable) or fulfills the request using the underlying client.
func (cc *CachedClient) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return cc.BasicClient.Do(req)
	}
	if cond, ok := cc.ch.(cache.ConditionalCache); ok {
		return cc.doConditional(req, cond)
	}
	return cc.doUnconditional(req)
}

// doUnconditional is the plain cache path for backends that don't implement
// cache.ConditionalCache (e.g. a bare CoalescingMemoryCache in tests):
// fresh-or-miss, no revalidation, no stale fallback. A non-200 response is
// returned to the caller as-is and is not cached.
func (cc *CachedClient) doUnconditional(req *http.Request) (*http.Response, error) {
	var uncached *http.Response
	respBytes, err := cc.ch.GetOrSet(req.URL.String(), func() (any, error) {
		resp, err := cc.BasicClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			uncached = resp
			return nil, errors.New(resp.Status)
		}
		defer resp.Body.Close()
		buf := new(bytes.Buffer)
		if err := resp.Write(buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if uncached != nil {
		return uncached, nil
	}
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(respBytes.([]byte))), req)
}

// doConditional drives spec.md §4.2's disk-tier contract through a
// cache.ConditionalCache: force-refresh, conditional GET against a stale
// entry's ETag/Last-Modified, 304 handling, and graceful degradation to the
// stale entry on network failure all happen inside ch.GetOrSetConditional;
// this method only supplies the HTTP mechanics of the revalidation request.
func (cc *CachedClient) doConditional(req *http.Request, ch cache.ConditionalCache) (*http.Response, error) {
	force := req.Header.Get(ForceRefreshHeader) != ""
	respBytes, err := ch.GetOrSetConditional(req.URL.String(), force, func(prior cache.ConditionalMeta) ([]byte, cache.ConditionalMeta, bool, error) {
		revalReq := req.Clone(req.Context())
		revalReq.Header.Del(ForceRefreshHeader)
		if prior.ETag != "" {
			revalReq.Header.Set("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			revalReq.Header.Set("If-Modified-Since", prior.LastModified)
		}
		resp, err := cc.BasicClient.Do(revalReq)
		if err != nil {
			return nil, cache.ConditionalMeta{}, false, err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotModified {
			return nil, cache.ConditionalMeta{ETag: prior.ETag, LastModified: prior.LastModified, SourceURL: req.URL.String()}, true, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, cache.ConditionalMeta{}, false, errors.New(resp.Status)
		}
		meta := cache.ConditionalMeta{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			SourceURL:    req.URL.String(),
		}
		buf := new(bytes.Buffer)
		if err := resp.Write(buf); err != nil {
			return nil, cache.ConditionalMeta{}, false, err
		}
		return buf.Bytes(), meta, false, nil
	})
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(respBytes)), req)
}

var _ BasicClient = &CachedClient{}

// ForceRefreshClient sets ForceRefreshHeader on every request when Enabled,
// so a downstream CachedClient bypasses its cache tiers. It must wrap a
// CachedClient (or anything upstream of one), not the other way around --
// the header has to be on the request before CachedClient.Do inspects it.
type ForceRefreshClient struct {
	BasicClient
	Enabled bool
}

func (c *ForceRefreshClient) Do(req *http.Request) (*http.Response, error) {
	if c.Enabled {
		req.Header.Set(ForceRefreshHeader, "1")
	}
	return c.BasicClient.Do(req)
}

var _ BasicClient = &ForceRefreshClient{}

type RateLimitedClient struct {
	BasicClient
	Ticker *time.Ticker
}

func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	<-c.Ticker.C // Wait for next tick
	return c.BasicClient.Do(req)
}

var _ BasicClient = &RateLimitedClient{}

// Default per-phase timeouts, per the courier's concurrency model: metadata
// calls are cheap and bounded, artifact downloads are not, and a handful of
// operations (Conda snapshots, search-suggest) get their own deadlines.
const (
	MetadataTimeout     = 30 * time.Second
	ArtifactTimeout     = 300 * time.Second
	RepodataTimeout     = 120 * time.Second
	SearchSuggestTimeout = 5 * time.Second
)

// Pool is an *http.Client factory keyed by per-request timeout. Each distinct
// timeout gets its own client with its own Transport, whose TLS verification
// follows StrictSSL at the time the client is first built. Clients are not
// keyed by registry origin: every registry requested with the same timeout
// shares one client.
type Pool struct {
	// StrictSSL enables TLS certificate verification. Corporate air-gapped
	// deployments often sit behind an intercepting proxy with a self-signed
	// CA, so the default is permissive; DEPSSMUGGLER_STRICT_SSL=true (or
	// explicitly setting this field) re-enables verification.
	StrictSSL bool
	// UserAgent is set on every request issued through clients from this pool.
	UserAgent string

	mu      sync.Mutex
	clients map[time.Duration]*http.Client
}

// NewPool returns a Pool configured per the given StrictSSL mode.
func NewPool(strictSSL bool, userAgent string) *Pool {
	return &Pool{StrictSSL: strictSSL, UserAgent: userAgent}
}

// Client returns a BasicClient with the given per-request timeout, reusing
// an underlying transport across calls with the same timeout.
func (p *Pool) Client(timeout time.Duration) BasicClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clients == nil {
		p.clients = make(map[time.Duration]*http.Client)
	}
	c, ok := p.clients[timeout]
	if !ok {
		c = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !p.StrictSSL},
			},
		}
		p.clients[timeout] = c
	}
	if p.UserAgent == "" {
		return c
	}
	return &WithUserAgent{BasicClient: c, UserAgent: p.UserAgent}
}

// Metadata returns a client tuned for registry metadata requests.
func (p *Pool) Metadata() BasicClient { return p.Client(MetadataTimeout) }

// Artifact returns a client tuned for artifact/blob downloads.
func (p *Pool) Artifact() BasicClient { return p.Client(ArtifactTimeout) }

// Repodata returns a client tuned for large registry snapshot downloads.
func (p *Pool) Repodata() BasicClient { return p.Client(RepodataTimeout) }

// SearchSuggest returns a client tuned for interactive search-suggest calls.
func (p *Pool) SearchSuggest() BasicClient { return p.Client(SearchSuggestTimeout) }

// onBytesMinInterval is the minimum gap between progress callbacks, per
// spec's throttled-progress design note: a naive per-chunk callback emits
// thousands of events for a large artifact.
const onBytesMinInterval = 300 * time.Millisecond

// StreamPipe copies src to dst, invoking onBytes with the number of bytes
// written since the last invocation at most once per onBytesMinInterval (plus
// a final call once the copy completes, regardless of timing, so callers
// always observe the terminal byte count).
func StreamPipe(dst io.Writer, src io.Reader, onBytes func(n int)) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	var sinceTick int
	last := time.Now()
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			total += int64(w)
			sinceTick += w
			if werr != nil {
				return total, werr
			}
			if now := time.Now(); onBytes != nil && now.Sub(last) >= onBytesMinInterval {
				onBytes(sinceTick)
				sinceTick = 0
				last = now
			}
		}
		if rerr == io.EOF {
			if onBytes != nil && sinceTick > 0 {
				onBytes(sinceTick)
			}
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
