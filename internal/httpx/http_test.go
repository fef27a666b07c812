package httpx

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/airgapcourier/depssmuggler/internal/cache"
	"github.com/airgapcourier/depssmuggler/internal/httpx/httpxtest"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func mustRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestCachedClient(t *testing.T) {
	for _, tc := range []struct {
		name              string
		callsToCache      []httpxtest.Call
		callsToBaseClient []httpxtest.Call
	}{
		{
			name: "single request",
			callsToCache: []httpxtest.Call{
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: httpxtest.Body("body")}},
			},
			callsToBaseClient: []httpxtest.Call{
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: httpxtest.Body("body")}},
			},
		},
		{
			name: "cached request",
			callsToCache: []httpxtest.Call{
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: httpxtest.Body("body")}},
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: httpxtest.Body("body")}},
			},
			callsToBaseClient: []httpxtest.Call{ // Only one call to base client
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: httpxtest.Body("body")}},
			},
		},
		{
			name: "don't cache 500",
			callsToCache: []httpxtest.Call{
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "500 Internal Server Error", StatusCode: http.StatusInternalServerError, Body: httpxtest.Body("")}},
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: httpxtest.Body("body")}},
			},
			callsToBaseClient: []httpxtest.Call{ // Two calls to base client, second is success
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "500 Internal Server Error", StatusCode: http.StatusInternalServerError, Body: httpxtest.Body("")}},
				{Method: "GET", URL: "http://example.com", Response: &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: httpxtest.Body("body")}},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			basic := &httpxtest.MockClient{
				Calls:             tc.callsToBaseClient,
				SkipURLValidation: true,
			}
			cached := NewCachedClient(basic, &cache.CoalescingMemoryCache{})
			for i, call := range tc.callsToCache {
				req := mustRequest(t, call.Method, call.URL)
				resp, err := cached.Do(req)
				if (err != nil) != (call.Error != nil) {
					t.Fatalf("(call %d) expected error %v, got %v", i, call.Error, err)
				}
				if (resp != nil) != (call.Response != nil) {
					t.Fatalf("(call %d) response mismatch want %v, got %v", i, call.Response, resp)
				}
				if resp == nil || call.Response == nil {
					continue
				}
				if resp.StatusCode != call.Response.StatusCode {
					t.Fatalf("(call %d) StatusCode mismatch want %v, got %v", i, call.Response.StatusCode, resp.StatusCode)
				}
				respBytes, err := io.ReadAll(resp.Body)
				if err != nil {
					t.Fatal(errors.Wrap(err, "reading response body"))
				}
				expectedBytes, err := io.ReadAll(call.Response.Body)
				if err != nil {
					t.Fatal(errors.Wrap(err, "reading expected response body"))
				}
				if diff := cmp.Diff(string(respBytes), string(expectedBytes)); diff != "" {
					t.Fatalf("(call %d) response body mismatch (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

// recordingClient serves canned responses in order and records the request
// headers it was called with, so conditional-GET tests can assert on
// If-None-Match/If-Modified-Since without needing a real server.
type recordingClient struct {
	responses []*http.Response
	requests  []*http.Request
	i         int
}

func (c *recordingClient) Do(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	resp := c.responses[c.i]
	if c.i < len(c.responses)-1 {
		c.i++
	}
	return resp, nil
}

func TestCachedClient_ConditionalRevalidation(t *testing.T) {
	base := &recordingClient{responses: []*http.Response{
		{Status: "200 OK", StatusCode: http.StatusOK, Header: http.Header{"Etag": []string{`"v1"`}}, Body: httpxtest.Body("body")},
		{Status: "304 Not Modified", StatusCode: http.StatusNotModified, Header: http.Header{}, Body: httpxtest.Body("")},
	}}
	disk, err := cache.NewDiskCache(t.TempDir(), time.Millisecond)
	if err != nil {
		t.Fatalf("NewDiskCache() failed: %v", err)
	}
	cc := NewCachedClient(base, cache.NewTwoTierCache(disk))

	resp, err := cc.Do(mustRequest(t, "GET", "http://example.com/pkg"))
	if err != nil {
		t.Fatalf("Do() (first) failed: %v", err)
	}
	if b, _ := io.ReadAll(resp.Body); string(b) != "body" {
		t.Fatalf("Do() (first) body = %q, want %q", b, "body")
	}

	time.Sleep(10 * time.Millisecond) // let the entry go stale

	resp, err = cc.Do(mustRequest(t, "GET", "http://example.com/pkg"))
	if err != nil {
		t.Fatalf("Do() (revalidation) failed: %v", err)
	}
	if b, _ := io.ReadAll(resp.Body); string(b) != "body" {
		t.Fatalf("Do() (revalidation) body = %q, want the original cached body (304 keeps it)", b)
	}
	if len(base.requests) != 2 {
		t.Fatalf("base client called %d times, want 2", len(base.requests))
	}
	if got := base.requests[1].Header.Get("If-None-Match"); got != `"v1"` {
		t.Fatalf("revalidation request If-None-Match = %q, want %q", got, `"v1"`)
	}
}

func TestForceRefreshClient_BypassesCache(t *testing.T) {
	base := &recordingClient{responses: []*http.Response{
		{Status: "200 OK", StatusCode: http.StatusOK, Header: http.Header{}, Body: httpxtest.Body("body")},
		{Status: "200 OK", StatusCode: http.StatusOK, Header: http.Header{}, Body: httpxtest.Body("body2")},
	}}
	disk, err := cache.NewDiskCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewDiskCache() failed: %v", err)
	}
	cc := NewCachedClient(base, cache.NewTwoTierCache(disk))
	forced := &ForceRefreshClient{BasicClient: cc, Enabled: true}

	if _, err := forced.Do(mustRequest(t, "GET", "http://example.com/pkg")); err != nil {
		t.Fatalf("Do() (first) failed: %v", err)
	}
	resp, err := forced.Do(mustRequest(t, "GET", "http://example.com/pkg"))
	if err != nil {
		t.Fatalf("Do() (forced refresh) failed: %v", err)
	}
	if b, _ := io.ReadAll(resp.Body); string(b) != "body2" {
		t.Fatalf("Do() (forced refresh) body = %q, want %q (cache must be bypassed)", b, "body2")
	}
	if len(base.requests) != 2 {
		t.Fatalf("base client called %d times, want 2", len(base.requests))
	}
	if got := base.requests[1].Header.Get(ForceRefreshHeader); got != "" {
		t.Fatalf("ForceRefreshHeader leaked onto the wire request: %q", got)
	}
}

func TestStreamPipe(t *testing.T) {
	src := []byte("the quick brown fox jumps over the lazy dog")
	r := &sleepyReader{data: src}
	var dst bytesWriter
	var calls int
	var total int
	n, err := StreamPipe(&dst, r, func(n int) {
		calls++
		total += n
	})
	if err != nil {
		t.Fatalf("StreamPipe() error = %v", err)
	}
	if int(n) != len(src) {
		t.Fatalf("StreamPipe() wrote %d bytes, want %d", n, len(src))
	}
	if total != len(src) {
		t.Fatalf("onBytes total = %d, want %d", total, len(src))
	}
	if calls == 0 {
		t.Fatal("onBytes was never called")
	}
	if dst.String() != string(src) {
		t.Fatalf("dst = %q, want %q", dst.String(), string(src))
	}
}

type sleepyReader struct {
	data []byte
	off  int
}

func (r *sleepyReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:r.off+1])
	r.off += n
	time.Sleep(time.Millisecond)
	return n, nil
}

type bytesWriter struct {
	buf []byte
}

func (w *bytesWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *bytesWriter) String() string { return string(w.buf) }
