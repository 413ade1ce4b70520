package github

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
)

const defaultRetryAfter = 60 * time.Second

// pacer is the bottom of the client chain. Every attempt, retries included,
// passes through the rate limiter and the request ceiling
type pacer struct {
	base  http.RoundTripper
	state *RateLimiterState
	log   logger.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	maxRetries  int
	retryBase   time.Duration
	maxRequests int64
	sent        atomic.Int64
}

// RoundTrip implements http.RoundTripper
func (p *pacer) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		if p.maxRequests > 0 && p.sent.Load() >= p.maxRequests {
			return nil, perr.ErrRequestCeiling
		}
		if err := p.state.Acquire(ctx, p.now, p.sleep); err != nil {
			return nil, err
		}
		p.sent.Add(1)

		r, err := rewind(req, attempt)
		if err != nil {
			return nil, err
		}
		resp, err := p.base.RoundTrip(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= p.maxRetries {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github unreachable after %d attempts", attempt+1)
			}
			if err := p.backoff(ctx, attempt, "github transport error retrying"); err != nil {
				return nil, err
			}
			continue
		}
		p.state.Observe(resp.Header)

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			_ = drainAndClose(resp.Body)
			if attempt >= p.maxRetries {
				return nil, perr.Newf(perr.ErrorCodeTooManyRequests, "github rate limited after %d attempts", attempt+1)
			}
			wait := retryAfter(resp.Header)
			p.log.Warn().Dur("sleep", wait).Int("attempt", attempt).Str("path", req.URL.Path).Msg("github rate limited backing off")
			if err := p.sleep(ctx, wait); err != nil {
				return nil, err
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			_ = drainAndClose(resp.Body)
			return nil, perr.Newf(perr.ErrorCodeUnauthorized, "github rejected the credential (status %d)", resp.StatusCode)
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			_ = drainAndClose(resp.Body)
			if attempt >= p.maxRetries {
				return nil, perr.Newf(perr.ErrorCodeUnavailable, "github transient status %d after %d attempts", resp.StatusCode, attempt+1)
			}
			if err := p.backoff(ctx, attempt, "github transient status retrying"); err != nil {
				return nil, err
			}
		default:
			return resp, nil
		}
	}
}

// backoff sleeps attempt*RetryBase (linear)
func (p *pacer) backoff(ctx context.Context, attempt int, msg string) error {
	d := time.Duration(attempt+1) * p.retryBase
	p.log.Warn().Dur("retry_in", d).Int("attempt", attempt).Msg(msg)
	return p.sleep(ctx, d)
}

// Sent reports how many attempts went upstream
func (p *pacer) Sent() int64 { return p.sent.Load() }

// rewind returns a request safe to send for the given attempt.
// GraphQL posts carry a body that has to be rebuilt on retry
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 || req.Body == nil || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	r.Body = body
	return r, nil
}

func retryAfter(h http.Header) time.Duration {
	if s, err := strconv.Atoi(h.Get("Retry-After")); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultRetryAfter
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
