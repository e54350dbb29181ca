package weather

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotCached is returned by stores when no entry exists for a location.
var ErrNotCached = errors.New("no cached snapshot for location")

// Feed names used in errors, logs and metrics.
const (
	FeedForecast = "forecast"
	FeedMarine   = "marine"
)

// TransportError means upstream could not be reached (timeout, connection
// failure, rate limiter or open circuit).
type TransportError struct {
	Feed string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s feed transport error: %v", e.Feed, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// UpstreamError means upstream answered but at least one feed returned a
// non-success status. Both codes are kept for diagnostics.
type UpstreamError struct {
	ForecastStatus int
	MarineStatus   int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: forecast status %d, marine status %d", e.ForecastStatus, e.MarineStatus)
}

// ParseError means a feed payload did not have the expected shape.
type ParseError struct {
	Feed string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s feed parse error: %v", e.Feed, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError means the requested location id is not configured.
type NotFoundError struct {
	LocationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("location %q not found", e.LocationID)
}
