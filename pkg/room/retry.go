package room

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls the create-then-join fallback.
type RetryPolicy struct {
	// CreateSettleDelay is waited after a failed create before the first join.
	CreateSettleDelay time.Duration `json:"create_settle_delay" mapstructure:"create_settle_delay"`
	// JoinRetryDelay is waited before each fetch+join retry.
	JoinRetryDelay time.Duration `json:"join_retry_delay" mapstructure:"join_retry_delay"`
	// MaxJoinRetries counts retries, not joins: a session that never gets in
	// makes 1+MaxJoinRetries EnterRoom calls before failing.
	MaxJoinRetries int `json:"max_join_retries" mapstructure:"max_join_retries"`
}

func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		CreateSettleDelay: 500 * time.Millisecond,
		JoinRetryDelay:    time.Second,
		MaxJoinRetries:    3,
	}
}

// Validate checks the policy for values the orchestrator cannot honour.
func (p *RetryPolicy) Validate() error {
	if p.CreateSettleDelay < 0 {
		return errors.New("create settle delay must not be negative")
	}
	if p.JoinRetryDelay < 0 {
		return errors.New("join retry delay must not be negative")
	}
	if p.MaxJoinRetries < 0 {
		return errors.New("max join retries must not be negative")
	}
	return nil
}

// RetryContext is the history of a bounded join retry loop.
type RetryContext struct {
	RoomID       string
	Attempts     int
	MaxRetries   int
	LastAttempt  time.Time
	ErrorHistory []error
}

func newRetryContext(roomID string, p *RetryPolicy) *RetryContext {
	return &RetryContext{RoomID: roomID, MaxRetries: p.MaxJoinRetries}
}

// AddError records a failed attempt, keeping the last 10 errors.
func (rc *RetryContext) AddError(err error) {
	rc.Attempts++
	rc.ErrorHistory = append(rc.ErrorHistory, err)
	rc.LastAttempt = time.Now()
	if len(rc.ErrorHistory) > 10 {
		rc.ErrorHistory = rc.ErrorHistory[len(rc.ErrorHistory)-10:]
	}
}

// LastError returns the most recent failure.
func (rc *RetryContext) LastError() error {
	if len(rc.ErrorHistory) == 0 {
		return nil
	}
	return rc.ErrorHistory[len(rc.ErrorHistory)-1]
}

// Pattern summarises the history as no_errors, single_error, repeated_error
// or mixed_errors.
func (rc *RetryContext) Pattern() string {
	switch len(rc.ErrorHistory) {
	case 0:
		return "no_errors"
	case 1:
		return "single_error"
	}
	last := rc.ErrorHistory[len(rc.ErrorHistory)-1].Error()
	for _, err := range rc.ErrorHistory[:len(rc.ErrorHistory)-1] {
		if err.Error() != last {
			return "mixed_errors"
		}
	}
	return "repeated_error"
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
