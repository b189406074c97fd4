// Package resilience guards calls to remote satellites and local replicas.
//
// Three patterns compose through an Executor, outermost first:
//
//   - Circuit breaker: stops calling a satellite after repeated transport
//     failures and probes it again after a cool-down.
//   - Retry: re-issues idempotent calls with backoff. Errors marked with
//     Permanent (rejections, malformed replies) are never retried.
//   - Timeout: bounds each attempt.
//
// Usage:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return callSatellite(ctx)
//	})
package resilience
