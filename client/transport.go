package client

import (
	"net"
	"net/http"
	"net/url"
	"time"

	appconfig "gateflow/config"
)

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// newTransport builds the pooled transport used for REST calls. An empty
// proxy falls back to the HTTP(S)_PROXY environment.
func newTransport(pool appconfig.ConnectionPoolConfig, proxy string) (*http.Transport, error) {
	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 100
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = 90 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdle,
		MaxConnsPerHost:       pool.MaxConnsPerHost,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}

	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &ConfigurationError{Field: "proxy", Reason: "must be an absolute URL such as http://host:port"}
		}
		tr.Proxy = http.ProxyURL(u)
	}
	return tr, nil
}
