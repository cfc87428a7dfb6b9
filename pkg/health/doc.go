/*
Package health implements per-container readiness/liveness probing.

A Checker (HTTP or Exec) reports a pass/fail Result; Status folds a
stream of Results into a consecutive-failure/consecutive-success state
machine, flipping to unhealthy after UnhealthyThreshold failures and back to
recovered after HealthyThreshold successes. Monitor runs one probing
goroutine per watched container and reports the two transitions to an
Observer — the only coupling back to whatever owns the container's
lifecycle, kept as an interface rather than a concrete reference so the
monitor never reaches into its caller's internals.
*/
package health
