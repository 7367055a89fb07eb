// Package ratelimit provides fixed-window request limiting keyed by an
// arbitrary string, typically "purpose:identifier".
//
// Two drivers are available: an in-memory limiter for single-process
// deployments and tests, and a redis-backed limiter for shared state.
package ratelimit
