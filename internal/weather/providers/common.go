package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/beach-weather-recommender/internal/metrics"
	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

const (
	userAgent = "beach-weather-recommender"

	// upper bound for a single feed payload
	maxBodyBytes = 8 << 20
)

// HTTPClientConfig bundles the HTTP client and per-call resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Timeout time.Duration
	Limiter *rate.Limiter
	Metrics *metrics.Metrics
}

var (
	errServerError  = errors.New("server error")
	errRateLimited  = errors.New("rate limited")
	errNoHTTPClient = errors.New("http client not configured")
)

// feedResponse is a fully read upstream response.
type feedResponse struct {
	Status int
	Body   []byte
}

func (r feedResponse) ok() bool {
	return r.Status >= 200 && r.Status < 300
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doFeedRequest executes one upstream call under the rate limiter, a per-call
// timeout and the feed's circuit breaker. It never retries. Non-2xx statuses
// are returned in the response, not as errors; transport failures come back
// as *weather.TransportError.
func doFeedRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	feed string,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (feedResponse, error) {
	if cfg.Client == nil {
		return feedResponse{}, &weather.TransportError{Feed: feed, Err: errNoHTTPClient}
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if cfg.Limiter != nil {
		if err := cfg.Limiter.Wait(ctx); err != nil {
			return feedResponse{}, &weather.TransportError{Feed: feed, Err: fmt.Errorf("rate limit wait canceled: %w", err)}
		}
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return feedResponse{}, &weather.TransportError{Feed: feed, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	var res feedResponse
	start := time.Now()

	_, err = cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, readErr
		}
		res = feedResponse{Status: resp.StatusCode, Body: body}

		// Only upstream-side failures count against the breaker.
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			return nil, errServerError
		}
		return nil, nil
	})

	cfg.Metrics.ObserveUpstream(feed, res.Status, time.Since(start))

	if res.Status != 0 {
		// The request completed; the status decides the outcome.
		return res, nil
	}
	if err == nil {
		err = errors.New("empty upstream response")
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("circuit breaker open: %w", err)
	}
	return feedResponse{}, &weather.TransportError{Feed: feed, Err: err}
}
