package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/m3rciful/deskbot/core/metrics"
	"github.com/m3rciful/deskbot/core/telegram/netutil"
)

// HTTPClientOptions tunes the client used for Bot API calls.
type HTTPClientOptions struct {
	// LongPoll is the getUpdates timeout; response deadlines are stretched past it.
	LongPoll time.Duration
	Retries  int
	Backoff  time.Duration
}

func (o HTTPClientOptions) withDefaults() HTTPClientOptions {
	if o.LongPoll <= 0 {
		o.LongPoll = 10 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
	return o
}

// BuildHTTPClient returns an HTTP client for Bot API calls that retries
// transient network failures and 429 answers.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	opts = opts.withDefaults()
	// getUpdates holds the response until LongPoll passes
	headerWait := opts.LongPoll + 10*time.Second

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: headerWait,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: headerWait + 20*time.Second,
		Transport: &retryTransport{
			base:    transport,
			retries: opts.Retries,
			backoff: opts.Backoff,
		},
	}
}

var errNotReplayable = errors.New("telegram: request body cannot be replayed")

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				return nil, errNotReplayable
			}
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				r.Body = body
			}
		}

		resp, err := t.base.RoundTrip(r)
		last := attempt >= t.retries

		var wait time.Duration
		switch {
		case err != nil:
			metrics.TelegramRequests.WithLabelValues("error").Inc()
			if last || !netutil.ShouldRetry(err) {
				return nil, err
			}
			wait = t.backoff * time.Duration(attempt+1)
		case resp.StatusCode == http.StatusTooManyRequests && !last:
			metrics.TelegramRequests.WithLabelValues("flood").Inc()
			wait = retryAfter(resp, t.backoff*time.Duration(attempt+1))
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		default:
			metrics.TelegramRequests.WithLabelValues(statusClass(resp.StatusCode)).Inc()
			return resp, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return fallback
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	}
	return "ok"
}
