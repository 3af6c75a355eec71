package lottery

import (
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMetrics collects counters for draw and persistence activity
type PerformanceMetrics struct {
	// Draw statistics
	TotalDraws       int64 `json:"total_draws"`
	TotalWins        int64 `json:"total_wins"`
	RejectedAttempts int64 `json:"rejected_attempts"`

	// Timing
	TotalDrawTime   int64 `json:"total_draw_time"`   // nanoseconds
	AverageDrawTime int64 `json:"average_draw_time"` // nanoseconds

	// Persistence statistics
	SaveOperations int64 `json:"save_operations"`
	SaveFailures   int64 `json:"save_failures"`
	LoadFailures   int64 `json:"load_failures"`

	// Timestamps
	StartTime      int64 `json:"start_time"`
	LastUpdateTime int64 `json:"last_update_time"`
}

// GetWinRate returns the winning percentage across all draws
func (pm *PerformanceMetrics) GetWinRate() float64 {
	total := atomic.LoadInt64(&pm.TotalDraws)
	if total == 0 {
		return 0.0
	}
	wins := atomic.LoadInt64(&pm.TotalWins)
	return float64(wins) / float64(total) * 100.0
}

// GetThroughput returns draws per second since the monitor started
func (pm *PerformanceMetrics) GetThroughput() float64 {
	startTime := atomic.LoadInt64(&pm.StartTime)
	lastUpdate := atomic.LoadInt64(&pm.LastUpdateTime)
	if startTime == 0 || lastUpdate <= startTime {
		return 0.0
	}

	duration := time.Duration(lastUpdate - startTime)
	totalDraws := atomic.LoadInt64(&pm.TotalDraws)
	return float64(totalDraws) / duration.Seconds()
}

// Reset zeroes all counters
func (pm *PerformanceMetrics) Reset() {
	atomic.StoreInt64(&pm.TotalDraws, 0)
	atomic.StoreInt64(&pm.TotalWins, 0)
	atomic.StoreInt64(&pm.RejectedAttempts, 0)
	atomic.StoreInt64(&pm.TotalDrawTime, 0)
	atomic.StoreInt64(&pm.AverageDrawTime, 0)
	atomic.StoreInt64(&pm.SaveOperations, 0)
	atomic.StoreInt64(&pm.SaveFailures, 0)
	atomic.StoreInt64(&pm.LoadFailures, 0)
	atomic.StoreInt64(&pm.StartTime, time.Now().UnixNano())
	atomic.StoreInt64(&pm.LastUpdateTime, time.Now().UnixNano())
}

// PerformanceMonitor records metrics for a registry
type PerformanceMonitor struct {
	metrics *PerformanceMetrics
	mu      sync.RWMutex
	enabled bool
}

// NewPerformanceMonitor creates an enabled monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{
		metrics: &PerformanceMetrics{},
		enabled: true,
	}
	pm.metrics.Reset()
	return pm
}

// Enable turns recording on
func (pm *PerformanceMonitor) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Disable turns recording off
func (pm *PerformanceMonitor) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// IsEnabled reports whether recording is on
func (pm *PerformanceMonitor) IsEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordDraw records one completed participation attempt
func (pm *PerformanceMonitor) RecordDraw(won bool, duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}

	atomic.AddInt64(&pm.metrics.TotalDraws, 1)
	atomic.AddInt64(&pm.metrics.TotalDrawTime, int64(duration))
	if won {
		atomic.AddInt64(&pm.metrics.TotalWins, 1)
	}

	totalDraws := atomic.LoadInt64(&pm.metrics.TotalDraws)
	totalTime := atomic.LoadInt64(&pm.metrics.TotalDrawTime)
	atomic.StoreInt64(&pm.metrics.AverageDrawTime, totalTime/totalDraws)

	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordRejected records a participation attempt refused by status or limits
func (pm *PerformanceMonitor) RecordRejected() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.RejectedAttempts, 1)
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordSave records a successful durable write
func (pm *PerformanceMonitor) RecordSave() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.SaveOperations, 1)
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordSaveFailure records a failed durable write
func (pm *PerformanceMonitor) RecordSaveFailure() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.SaveFailures, 1)
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordLoadFailure records a failed durable read
func (pm *PerformanceMonitor) RecordLoadFailure() {
	if !pm.IsEnabled() {
		return
	}
	atomic.AddInt64(&pm.metrics.LoadFailures, 1)
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// GetMetrics returns a consistent copy of the counters
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	return PerformanceMetrics{
		TotalDraws:       atomic.LoadInt64(&pm.metrics.TotalDraws),
		TotalWins:        atomic.LoadInt64(&pm.metrics.TotalWins),
		RejectedAttempts: atomic.LoadInt64(&pm.metrics.RejectedAttempts),
		TotalDrawTime:    atomic.LoadInt64(&pm.metrics.TotalDrawTime),
		AverageDrawTime:  atomic.LoadInt64(&pm.metrics.AverageDrawTime),
		SaveOperations:   atomic.LoadInt64(&pm.metrics.SaveOperations),
		SaveFailures:     atomic.LoadInt64(&pm.metrics.SaveFailures),
		LoadFailures:     atomic.LoadInt64(&pm.metrics.LoadFailures),
		StartTime:        atomic.LoadInt64(&pm.metrics.StartTime),
		LastUpdateTime:   atomic.LoadInt64(&pm.metrics.LastUpdateTime),
	}
}

// ResetMetrics zeroes the counters
func (pm *PerformanceMonitor) ResetMetrics() { pm.metrics.Reset() }
