package metrics

import "time"

// APIMetrics provides observability for the admin HTTP surface.
//
// Pass nil to disable collection.
type APIMetrics interface {
	// ObserveRequest records a completed HTTP request. route is the chi route
	// pattern, never the raw path.
	ObserveRequest(method, route string, status int, duration time.Duration)

	// RecordAuthorization records one rights check made by a guard.
	RecordAuthorization(right string, allowed bool)
}
