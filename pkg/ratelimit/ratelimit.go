// Package ratelimit throttles API requests per client key. A local
// in-process store covers single-instance deployments; a Redis-backed
// store shares buckets when several replicas sit behind one address.
package ratelimit

import "context"

// Policy caps request admission for one client.
type Policy struct {
	// RPS is the sustained refill rate in requests per second.
	RPS float64
	// Burst is the bucket capacity.
	Burst int
}

// Store decides whether a request from the given client key may
// proceed.
type Store interface {
	Allow(ctx context.Context, key string, policy Policy) (bool, error)
}
