// Package github is the single point of contact with the GitHub REST and
// GraphQL APIs. All traffic goes through one paced transport owned by the Gateway
package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contribot/internal/platform/config"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	ptime "contribot/internal/platform/time"

	gh "github.com/google/go-github/v68/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUA        = "contribot"
	defaultMaxRetry  = 3
	defaultRetryBase = time.Second
	defaultMaxPages  = 10
	perPage          = 100
)

// Options configures a Gateway
type Options struct {
	Token      string
	BaseURL    string // REST root; empty means api.github.com
	GraphQLURL string // empty means api.github.com/graphql
	UserAgent  string
	Timeout    time.Duration

	HourlyCeiling int
	SafetyMargin  int
	MinDelay      time.Duration

	MaxRetries int
	RetryBase  time.Duration
	MaxPages   int

	// MaxRequests bounds outbound attempts for the gateway's lifetime; 0 is unbounded
	MaxRequests int
}

// OptionsFromConfig reads options from a GITHUB_ scoped Conf
func OptionsFromConfig(c config.Conf) Options {
	return Options{
		Token:         c.MayString("TOKEN", ""),
		BaseURL:       c.MayString("BASE_URL", ""),
		GraphQLURL:    c.MayString("GRAPHQL_URL", ""),
		HourlyCeiling: c.MayInt("HOURLY_CEILING", defaultHourlyCeiling),
		SafetyMargin:  c.MayInt("SAFETY_MARGIN", defaultSafetyMargin),
		MinDelay:      c.MayDuration("MIN_DELAY", defaultMinDelay),
		MaxRetries:    c.MayInt("MAX_RETRIES", defaultMaxRetry),
		RetryBase:     c.MayDuration("RETRY_BASE", defaultRetryBase),
		MaxPages:      c.MayInt("MAX_PAGES", defaultMaxPages),
		MaxRequests:   c.MayInt("MAX_REQUESTS", 0),
	}
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.MaxPages <= 0 {
		o.MaxPages = defaultMaxPages
	}
	return o
}

// Option customizes a Gateway beyond Options
type Option func(*Gateway)

// WithRateLimiter shares an explicit limiter state
func WithRateLimiter(s *RateLimiterState) Option { return func(g *Gateway) { g.state = s } }

// WithClock injects time and sleep for tests
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(g *Gateway) { g.now, g.sleep = now, sleep }
}

// WithTransport replaces the network transport under the pacer
func WithTransport(rt http.RoundTripper) Option { return func(g *Gateway) { g.base = rt } }

// Gateway owns the paced client chain and the operations the pipeline needs
type Gateway struct {
	opts  Options
	log   logger.Logger
	state *RateLimiterState
	pacer *pacer

	base  http.RoundTripper
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	rest *gh.Client
	gql  *githubv4.Client
}

// New builds a Gateway. The oauth2 bearer transport wraps the pacer so every
// attempt carries the token and every attempt is paced
func New(o Options, log logger.Logger, opts ...Option) (*Gateway, error) {
	o = o.withDefaults()
	g := &Gateway{
		opts:  o,
		log:   logger.Component(log, "github"),
		now:   time.Now,
		sleep: ptime.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.base == nil {
		// a client-wide timeout would also cut short pacing waits, so bound
		// each attempt at the transport instead
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = o.Timeout
		g.base = t
	}
	if g.state == nil {
		g.state = NewRateLimiterState(o.HourlyCeiling, o.SafetyMargin, o.MinDelay)
	}
	g.pacer = &pacer{
		base:        g.base,
		state:       g.state,
		log:         g.log,
		now:         g.now,
		sleep:       g.sleep,
		maxRetries:  o.MaxRetries,
		retryBase:   o.RetryBase,
		maxRequests: int64(o.MaxRequests),
	}

	var rt http.RoundTripper = g.pacer
	if tok := strings.TrimSpace(o.Token); tok != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok}),
			Base:   g.pacer,
		}
	}
	hc := &http.Client{Transport: rt}

	g.rest = gh.NewClient(hc)
	g.rest.UserAgent = o.UserAgent
	if o.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(o.BaseURL, "/") + "/")
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "github base url %q", o.BaseURL)
		}
		g.rest.BaseURL = u
	}
	if o.GraphQLURL != "" {
		g.gql = githubv4.NewEnterpriseClient(o.GraphQLURL, hc)
	} else {
		g.gql = githubv4.NewClient(hc)
	}
	return g, nil
}

// State exposes the limiter owned by this gateway
func (g *Gateway) State() *RateLimiterState { return g.state }

// Sent reports attempts made so far, retries included
func (g *Gateway) Sent() int64 { return g.pacer.Sent() }

// classify maps client errors onto the project taxonomy. Errors already
// classified by the pacer pass through untouched
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := perr.As(err); ok {
		return err
	}
	var rle *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &abuse) {
		return perr.Wrapf(err, perr.ErrorCodeTooManyRequests, "github rate limited on %s", what)
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound {
		return perr.Wrapf(err, perr.ErrorCodeNotFound, "%s not found", what)
	}
	return perr.Wrapf(err, perr.ErrorCodeUnknown, "github %s failed", what)
}
