// Package client is the networking half of gateflow: it turns api.Request
// values into signed HTTP calls against Gate's v4 REST API and decodes the
// typed responses.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	appconfig "gateflow/config"
	"gateflow/logger"
)

const (
	DefaultBaseURL   = "https://api.gateio.ws/api/"
	DefaultUserAgent = "gateflow/1.0"
	defaultTimeout   = 10 * time.Second
)

// Options configure a Client. The zero value talks to the production API
// without credentials, so only public endpoints succeed.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Proxy     string
	// Signer authenticates private requests. Leave nil for public access only.
	Signer Signer
	// Transport replaces the pooled default transport. Proxy is ignored when set.
	Transport http.RoundTripper
	Pool      appconfig.ConnectionPoolConfig
	// RequestsPerSecond > 0 paces outgoing calls. Calls are delayed, never repeated.
	RequestsPerSecond int
	Burst             int
}

// Client is safe for concurrent use. Each call is independent and carries
// its own signature.
type Client struct {
	baseURL  string
	basePath string
	http     *resty.Client
	signer   Signer
	limiter  *rate.Limiter
	log      *logger.Log
}

func New(opts Options) (*Client, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ConfigurationError{Field: "base url", Reason: fmt.Sprintf("%q is not an absolute URL", base)}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	agent := opts.UserAgent
	if agent == "" {
		agent = DefaultUserAgent
	}

	rt := opts.Transport
	if rt == nil {
		tr, err := newTransport(opts.Pool, opts.Proxy)
		if err != nil {
			return nil, err
		}
		rt = tr
	}

	log := logger.GetLogger()
	rc := resty.New().
		SetTransport(userAgentTransport{agent: agent, base: rt}).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(log.Logger).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	c := &Client{
		baseURL:  base,
		basePath: u.Path,
		http:     rc,
		signer:   opts.Signer,
		log:      log,
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	log.WithComponent("gate_rest").WithFields(logger.Fields{
		"base_url":   base,
		"timeout":    timeout.String(),
		"signed":     opts.Signer != nil,
		"rate_limit": opts.RequestsPerSecond,
	}).Debug("gate rest client initialized")

	return c, nil
}

// NewFromConfig builds a client from the api section of the configuration.
// Credentials are optional; supplying only one half of the pair is an error.
func NewFromConfig(cfg *appconfig.Config) (*Client, error) {
	a := cfg.API
	opts := Options{
		BaseURL:           a.BaseURL,
		Timeout:           a.Timeout,
		UserAgent:         a.UserAgent,
		Proxy:             a.Proxy,
		Pool:              a.ConnectionPool,
		RequestsPerSecond: a.RateLimit.RequestsPerSecond,
		Burst:             a.RateLimit.BurstSize,
	}
	if a.Key != "" || a.Secret != "" {
		signer, err := NewHMACSigner(Credential{Key: a.Key, Secret: a.Secret})
		if err != nil {
			return nil, err
		}
		opts.Signer = signer
	}
	return New(opts)
}

func (c *Client) Spot() SpotAPI { return SpotAPI{client: c} }

func (c *Client) Wallet() WalletAPI { return WalletAPI{client: c} }

func (c *Client) Withdrawal() WithdrawalAPI { return WithdrawalAPI{client: c} }
