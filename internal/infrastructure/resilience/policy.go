package resilience

import "time"

// Operation names guarded by the executor. Each one gets its own circuit breaker.
const (
	OperationDetect       = "ollama.detect"
	OperationRewrite      = "ollama.rewrite"
	OperationOCR          = "ollama.ocr"
	OperationPublishEvent = "nats.publish.document_event"
)

// RetryPolicy overrides the retry budget of one operation. Zero fields inherit from Config.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Operations map[string]RetryPolicy
}

// DefaultConfig retries model calls a little and event publishing more eagerly. Rewrites and OCR
// resend a whole document or image per attempt, so they get a smaller budget than detection.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,

		Operations: map[string]RetryPolicy{
			OperationRewrite:      {MaxAttempts: 2},
			OperationOCR:          {MaxAttempts: 2, InitialBackoff: time.Second},
			OperationPublishEvent: {MaxAttempts: 4, InitialBackoff: 50 * time.Millisecond},
		},
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	ops := make(map[string]RetryPolicy, len(out.Operations))
	for name, p := range out.Operations {
		if p.MaxAttempts < 0 || p.InitialBackoff < 0 {
			continue
		}
		ops[name] = p
	}
	out.Operations = ops
	return out
}

// retryPolicy resolves the attempt budget and first backoff for operation.
func (c Config) retryPolicy(operation string) (attempts int, backoff time.Duration) {
	attempts, backoff = c.RetryMaxAttempts, c.RetryInitialBackoff
	p, ok := c.Operations[operation]
	if !ok {
		return attempts, backoff
	}
	if p.MaxAttempts > 0 {
		attempts = p.MaxAttempts
	}
	if p.InitialBackoff > 0 {
		backoff = p.InitialBackoff
	}
	return attempts, backoff
}
