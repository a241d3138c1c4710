package humanloop

import "errors"

// ErrNotFound is returned when a validation_id is unknown to the manager.
var ErrNotFound = errors.New("humanloop: validation request not found")

// ErrConflict is returned when submit_decision targets a request that has
// already resolved to a different terminal status (spec.md §4.6:
// idempotent for the matching terminal state, CONFLICT otherwise).
var ErrConflict = errors.New("humanloop: validation request already resolved")

// ErrExpired is returned by AwaitDecision when the request's timeout
// elapsed before a decision arrived.
var ErrExpired = errors.New("humanloop: validation request expired")
