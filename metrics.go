package tablekit

import (
	"sync"
	"sync/atomic"
	"time"
)

// QueryMetrics provides storage query performance and failure statistics.
type QueryMetrics struct {
	TotalQueries      int64         `json:"total_queries"`
	SuccessfulQueries int64         `json:"successful_queries"`
	FailedQueries     int64         `json:"failed_queries"`
	AverageDuration   time.Duration `json:"average_duration"`
	MaxDuration       time.Duration `json:"max_duration"`
	MinDuration       time.Duration `json:"min_duration"`
	LastReset         time.Time     `json:"last_reset"`
}

// queryMonitor holds the internal query monitoring state
type queryMonitor struct {
	totalCount    int64
	successCount  int64
	failureCount  int64
	totalDuration int64 // nanoseconds
	maxDuration   int64 // nanoseconds
	minDuration   int64 // nanoseconds
	lastReset     time.Time
	mu            sync.RWMutex

	// slowThreshold triggers a warning log per query above it; zero
	// disables the check.
	slowThreshold time.Duration
	engine        *Engine
}

// newQueryMonitor creates a new query monitor
func newQueryMonitor(engine *Engine, slowThreshold time.Duration) *queryMonitor {
	return &queryMonitor{
		minDuration:   int64(time.Hour), // Initialize to a large value
		lastReset:     time.Now(),
		slowThreshold: slowThreshold,
		engine:        engine,
	}
}

// observe records one storage query completion.
func (qm *queryMonitor) observe(table, operation string, start time.Time, err error) {
	duration := time.Since(start)

	qm.mu.Lock()
	atomic.AddInt64(&qm.totalCount, 1)
	atomic.AddInt64(&qm.totalDuration, int64(duration))

	if err == nil {
		atomic.AddInt64(&qm.successCount, 1)
	} else {
		atomic.AddInt64(&qm.failureCount, 1)
	}

	durationNs := int64(duration)
	for {
		current := atomic.LoadInt64(&qm.maxDuration)
		if durationNs <= current || atomic.CompareAndSwapInt64(&qm.maxDuration, current, durationNs) {
			break
		}
	}
	for {
		current := atomic.LoadInt64(&qm.minDuration)
		if durationNs >= current || atomic.CompareAndSwapInt64(&qm.minDuration, current, durationNs) {
			break
		}
	}
	qm.mu.Unlock()

	if qm.slowThreshold > 0 && duration > qm.slowThreshold {
		qm.engine.log.
			WithField("table", table).
			WithField("operation", operation).
			WithField("duration", duration).
			Warn("slow query")
	}
}

// getMetrics returns the current query metrics
func (qm *queryMonitor) getMetrics() QueryMetrics {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	total := atomic.LoadInt64(&qm.totalCount)
	success := atomic.LoadInt64(&qm.successCount)
	failure := atomic.LoadInt64(&qm.failureCount)
	totalDur := atomic.LoadInt64(&qm.totalDuration)
	maxDur := atomic.LoadInt64(&qm.maxDuration)
	minDur := atomic.LoadInt64(&qm.minDuration)

	var avgDuration time.Duration
	if total > 0 {
		avgDuration = time.Duration(totalDur / total)
	}

	return QueryMetrics{
		TotalQueries:      total,
		SuccessfulQueries: success,
		FailedQueries:     failure,
		AverageDuration:   avgDuration,
		MaxDuration:       time.Duration(maxDur),
		MinDuration:       time.Duration(minDur),
		LastReset:         qm.lastReset,
	}
}

// reset resets all metrics
func (qm *queryMonitor) reset() {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	atomic.StoreInt64(&qm.totalCount, 0)
	atomic.StoreInt64(&qm.successCount, 0)
	atomic.StoreInt64(&qm.failureCount, 0)
	atomic.StoreInt64(&qm.totalDuration, 0)
	atomic.StoreInt64(&qm.maxDuration, 0)
	atomic.StoreInt64(&qm.minDuration, int64(time.Hour))
	qm.lastReset = time.Now()
}
