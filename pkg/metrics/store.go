package metrics

import "time"

// StoreMetrics provides observability for credential document persistence.
//
// Pass nil to disable collection.
type StoreMetrics interface {
	// ObserveOperation records one store call.
	//
	// Parameters:
	//   - backend: "file", "sqlite", "postgres" or "memory"
	//   - operation: "load" or "update"
	//   - result: "ok" or a short error class such as "conflict"
	//   - duration: time taken
	ObserveOperation(backend, operation, result string, duration time.Duration)
}
