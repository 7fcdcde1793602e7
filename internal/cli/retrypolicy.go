package cli

import (
	"time"

	"github.com/rescale/xferengine/internal/retry"
)

// retryPolicyWithLogging builds the engine's default retry policy with
// OnRetry wired to log a line per attempt (spec's per-part retry telemetry),
// the way the teacher's CLI output writer reports resumed uploads.
func retryPolicyWithLogging() retry.Policy {
	p := retry.DefaultPolicy()
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warnf("retry %d after %v: %v", attempt, delay, err)
	}
	return p
}
