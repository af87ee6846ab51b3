package session

import (
	"context"
	"time"

	"github.com/doc-clustering/clusterview/internal/models"
)

// Fixed user-facing messages of the clusters screen.
const (
	MsgLoadFailed      = "Failed to load clusters. Please ensure the backend server is running."
	MsgTimeout         = "Clustering took too long. Please try again."
	MsgSummarized      = "Summaries generated successfully!"
	MsgSummarizeFailed = "Failed to generate summaries."
	MsgFileLoadFailed  = "Failed to load file."
)

// Default poll settings.
const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 30
)

// PollConfig bounds the cluster listing loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	// RetryOnError counts a failed request as a spent attempt. When false
	// the first failure ends the loop in the error state.
	RetryOnError bool
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultPollMaxAttempts
	}
	return c
}

// PollResult is the terminal outcome of a poll loop.
type PollResult struct {
	Status   models.ScreenStatus
	Clusters models.ClusterSet
	Attempts int
	Err      error
}

// Message returns the fixed text shown for the result's status.
func (r PollResult) Message() string {
	switch r.Status {
	case models.ScreenStatusError:
		return MsgLoadFailed
	case models.ScreenStatusTimeout:
		return MsgTimeout
	}
	return ""
}

// ListFunc fetches one cluster listing.
type ListFunc func(ctx context.Context) (models.ClusterSet, error)

// Poll requests the listing until it is non-empty, a request fails, or
// MaxAttempts requests have been made. Attempts never overlap. ctx is
// checked before every attempt and during every wait; on cancellation Poll
// returns ctx.Err() and no result. onAttempt, if set, runs after each attempt
// with the attempt number.
func Poll(ctx context.Context, cfg PollConfig, list ListFunc, onAttempt func(attempt int)) (PollResult, error) {
	cfg = cfg.withDefaults()

	timer := time.NewTimer(cfg.Interval)
	timer.Stop()
	defer timer.Stop()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return PollResult{}, err
		}

		set, err := list(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PollResult{}, ctxErr
		}

		switch {
		case err != nil && !cfg.RetryOnError:
			return PollResult{Status: models.ScreenStatusError, Attempts: attempt, Err: err}, nil
		case err != nil:
			lastErr = err
		case !set.Empty():
			return PollResult{Status: models.ScreenStatusSuccess, Clusters: set, Attempts: attempt}, nil
		default:
			lastErr = nil
		}

		if onAttempt != nil {
			onAttempt(attempt)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer.Reset(cfg.Interval)
		select {
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return PollResult{Status: models.ScreenStatusError, Attempts: cfg.MaxAttempts, Err: lastErr}, nil
	}
	return PollResult{Status: models.ScreenStatusTimeout, Attempts: cfg.MaxAttempts}, nil
}
