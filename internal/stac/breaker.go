// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

package stac

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/geodepot/geodepot/internal/logging"
	"github.com/geodepot/geodepot/internal/metrics"
)

// CircuitBreakerClient wraps Client with a circuit breaker so a failing or
// slow STAC API cannot stall callers indefinitely.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests should exercise the wrapped client directly rather than mocking the
// breaker.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps a STAC client with a circuit breaker:
//   - at most 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - opens at a 60% failure rate with at least 10 requests observed
func NewCircuitBreakerClient(client *Client) *CircuitBreakerClient {
	cbName := "stac-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening STAC circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("STAC circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps a STAC API call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("STAC request rejected by circuit breaker")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping verifies API connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) (*Catalog, error) {
	return castResult[*Catalog](cbc.execute(func() (interface{}, error) {
		return cbc.client.Ping(ctx)
	}))
}

// Collections lists collections with circuit breaker protection.
func (cbc *CircuitBreakerClient) Collections(ctx context.Context) ([]Collection, error) {
	return castResult[[]Collection](cbc.execute(func() (interface{}, error) {
		return cbc.client.Collections(ctx)
	}))
}

// Collection fetches a collection with circuit breaker protection.
func (cbc *CircuitBreakerClient) Collection(ctx context.Context, collectionID string) (*Collection, error) {
	return castResult[*Collection](cbc.execute(func() (interface{}, error) {
		return cbc.client.Collection(ctx, collectionID)
	}))
}

// Items browses collection items with circuit breaker protection.
func (cbc *CircuitBreakerClient) Items(ctx context.Context, collectionID string, params ItemsParams) ([]Item, error) {
	return castResult[[]Item](cbc.execute(func() (interface{}, error) {
		return cbc.client.Items(ctx, collectionID, params)
	}))
}

// Item fetches an item with circuit breaker protection.
func (cbc *CircuitBreakerClient) Item(ctx context.Context, collectionID, itemID string) (*Item, error) {
	return castResult[*Item](cbc.execute(func() (interface{}, error) {
		return cbc.client.Item(ctx, collectionID, itemID)
	}))
}

// Search queries items with circuit breaker protection.
func (cbc *CircuitBreakerClient) Search(ctx context.Context, req SearchRequest) ([]Item, error) {
	return castResult[[]Item](cbc.execute(func() (interface{}, error) {
		return cbc.client.Search(ctx, req)
	}))
}
