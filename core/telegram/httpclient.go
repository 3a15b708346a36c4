package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/m3rciful/gatekeeper/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// longPoll is the getUpdates timeout; header and client timeouts are
// stretched past it so idle polls are not cut short.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: defaultResponseTimeout + longPoll,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: defaultClientTimeout + longPoll,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport replays requests that failed with transient network errors.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(t.backoff),
		backoff.WithMaxElapsedTime(0),
	), uint64(max(t.maxRetries, 0))), req.Context())

	var (
		resp    *http.Response
		attempt int
	)
	err := backoff.Retry(func() error {
		attempt++
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return backoff.Permanent(err)
				}
				currReq.Body = body
			}
		}
		var err error
		resp, err = base.RoundTrip(currReq)
		if err == nil {
			return nil
		}
		// A consumed body without GetBody cannot be replayed.
		if !netutil.ShouldRetry(err) || (req.Body != nil && req.GetBody == nil) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
