package util

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client with a tuned transport that stamps the given
// headers on every request that does not already set them. The client is meant
// to be built once and shared read-only.
func NewHTTPClient(timeout time.Duration, headers map[string]string) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Client{Timeout: timeout, Transport: &headerTransport{base: tr, headers: h}}
}

type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	missing := false
	for k := range t.headers {
		if req.Header.Get(k) == "" {
			missing = true
			break
		}
	}
	if !missing {
		return t.base.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	for k, vs := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header[k] = vs
		}
	}
	return t.base.RoundTrip(r)
}
