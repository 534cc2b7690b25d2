package metrics

import (
	"time"
)

// Authentication results reported to AuthMetrics.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultUnavailable = "unavailable"
)

// AuthMetrics provides observability for authentication decisions.
//
// Pass nil to disable collection. Implementations must never receive
// usernames or secrets: label cardinality stays bounded by method and result.
//
// Example usage:
//
//	metrics.InitRegistry()
//	mgr, err := auth.NewManager(ctx, st, auth.Options{Metrics: prometheus.NewAuthMetrics()})
type AuthMetrics interface {
	// RecordAttempt records one Authenticate call.
	//
	// Parameters:
	//   - method: the provider that produced the final answer
	//   - result: ResultSuccess, ResultFailure or ResultUnavailable
	//   - fallback: whether the answer came from the local fallback
	//   - duration: wall time of the whole call
	RecordAttempt(method string, result string, fallback bool, duration time.Duration)

	// RecordRebuild records a snapshot rebuild. err is nil on success.
	RecordRebuild(err error)

	// SetPrimaryMethod publishes the primary method of the current snapshot.
	SetPrimaryMethod(method string)
}
