package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics.
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	ReportRuns          int64
	SnapshotWrites      int64
	StorageErrors       int64
	AlertsFired         int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	// Response time samples for percentiles
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Rate limit metrics
	RateLimitIPBlocks      int64
	RateLimitTenantBlocks  int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]time.Duration, 0, 1000),
		RequestCountByStatus: make(map[int]int64),
	}
}

// IncrementRequest increments the request count.
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count.
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count.
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count.
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementReportRun increments the count of completed scoring runs.
func (m *Metrics) IncrementReportRun() {
	atomic.AddInt64(&m.ReportRuns, 1)
}

// IncrementSnapshotWrite increments the persisted snapshot count.
func (m *Metrics) IncrementSnapshotWrite() {
	atomic.AddInt64(&m.SnapshotWrites, 1)
}

// IncrementStorageError increments the storage failure count.
func (m *Metrics) IncrementStorageError() {
	atomic.AddInt64(&m.StorageErrors, 1)
}

// IncrementAlertFired increments the alert count.
func (m *Metrics) IncrementAlertFired() {
	atomic.AddInt64(&m.AlertsFired, 1)
}

// IncrementRateLimitIPBlock increments IP rate limit blocks.
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitTenantBlock increments tenant rate limit blocks.
func (m *Metrics) IncrementRateLimitTenantBlock() {
	atomic.AddInt64(&m.RateLimitTenantBlocks, 1)
}

// IncrementRateLimitRedisError increments Redis rate limit failures.
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments in-memory fallback uses.
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// RecordResponseTime records response time for averaging and percentiles.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	newAverage := (current + duration.Nanoseconds()) / 2
	atomic.StoreInt64(&m.AverageResponseTime, newAverage)

	// Keep last 1000 samples
	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code.
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// percentile computes the given percentile from recorded response times.
func (m *Metrics) percentile(p float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.ResponseTimes))
	copy(sorted, m.ResponseTimes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// GetStats returns a snapshot of all metrics.
func (m *Metrics) GetStats() map[string]interface{} {
	m.StatusMutex.RLock()
	byStatus := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		byStatus[code] = count
	}
	m.StatusMutex.RUnlock()

	return map[string]interface{}{
		"request_count":            atomic.LoadInt64(&m.RequestCount),
		"error_count":              atomic.LoadInt64(&m.ErrorCount),
		"cache_hits":               atomic.LoadInt64(&m.CacheHits),
		"cache_misses":             atomic.LoadInt64(&m.CacheMisses),
		"report_runs":              atomic.LoadInt64(&m.ReportRuns),
		"snapshot_writes":          atomic.LoadInt64(&m.SnapshotWrites),
		"storage_errors":           atomic.LoadInt64(&m.StorageErrors),
		"alerts_fired":             atomic.LoadInt64(&m.AlertsFired),
		"avg_response_time_ms":     time.Duration(atomic.LoadInt64(&m.AverageResponseTime)).Milliseconds(),
		"p50_response_time_ms":     m.percentile(0.50).Milliseconds(),
		"p95_response_time_ms":     m.percentile(0.95).Milliseconds(),
		"p99_response_time_ms":     m.percentile(0.99).Milliseconds(),
		"requests_by_status":       byStatus,
		"rate_limit_ip_blocks":     atomic.LoadInt64(&m.RateLimitIPBlocks),
		"rate_limit_tenant_blocks": atomic.LoadInt64(&m.RateLimitTenantBlocks),
		"rate_limit_redis_errors":  atomic.LoadInt64(&m.RateLimitRedisErrors),
		"rate_limit_fallbacks":     atomic.LoadInt64(&m.RateLimitFallbackCount),
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
	}
}
