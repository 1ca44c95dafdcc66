package pipeline

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ytm-tracker/internal/model"
)

// RetryPolicy re-runs a whole extraction when it failed for a transient
// reason. Extractors never retry internally beyond their locator cascades;
// repeating the full call is the runner's call to make.
type RetryPolicy struct {
	// MaxAttempts counts the first try. 0 and 1 both mean a single attempt.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// JitterFraction randomizes each delay by up to this fraction either way.
	JitterFraction float64
}

// DefaultRetryPolicy retries navigation and download failures twice with
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// transient reports whether a failure kind is worth repeating the call for.
// Pattern misses and parse failures are deterministic for a given page, so
// retrying them only burns requests.
func transient(kind model.FailureKind) bool {
	switch kind {
	case model.FailureNavigation, model.FailureDownload:
		return true
	default:
		return false
	}
}

// run executes fn up to MaxAttempts times, stopping early on success, a
// non-transient failure, or context cancellation.
func (p RetryPolicy) run(ctx context.Context, fundID string, fn func(context.Context) model.ExtractionResult) model.ExtractionResult {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var res model.ExtractionResult
	for attempt := 0; attempt < attempts; attempt++ {
		res = fn(ctx)
		if res.Succeeded() || !transient(res.FailureKind) {
			return res
		}
		if ctx.Err() != nil || attempt >= attempts-1 {
			return res
		}

		delay := p.backoff(attempt)
		zap.L().Warn("extraction will be retried",
			zap.String("fund", fundID),
			zap.Int("attempt", attempt+1),
			zap.String("kind", string(res.FailureKind)),
			zap.Duration("backoff", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res
		case <-timer.C:
		}
	}
	return res
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = 2 * time.Second
	}
	maxDelay := p.MaxBackoff
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(initial) * math.Pow(multiplier, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if p.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.JitterFraction
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
