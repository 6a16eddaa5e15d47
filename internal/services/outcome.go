package services

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrNotFound          = errors.New("not found")
	ErrMalformedDocument = errors.New("malformed document")
	ErrMissingUserID     = errors.New("missing user id")
)

// Outcome records why a value was produced, so a default can be told apart
// from real data.
type Outcome int

const (
	// OutcomeFound means the value came straight from its primary location.
	OutcomeFound Outcome = iota
	// OutcomeRecovered means a fallback source supplied the value.
	OutcomeRecovered
	// OutcomeDefault means no source had data; the value is synthesized.
	OutcomeDefault
	// OutcomeUnavailable means a required source could not be reached.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeRecovered:
		return "recovered"
	case OutcomeDefault:
		return "default"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// classify maps a store error onto the outcome taxonomy.
func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeFound
	case errors.Is(err, ErrNotFound):
		return OutcomeDefault
	default:
		return OutcomeUnavailable
	}
}

// unconfigured reports the bare sentinel that nil handles return, as opposed
// to a wrapped error from a configured store that failed.
func unconfigured(err error) bool {
	return err == ErrSourceUnavailable
}

// withTimeout bounds a single point lookup. A zero timeout leaves ctx as is.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
