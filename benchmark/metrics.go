// Package benchmark - Functionality for running benchmarks.
package benchmark

import (
	"sort"
	"time"
)

// PerformanceMetrics captures detailed performance data for one scenario.
type PerformanceMetrics struct {
	Scenario        Scenario       `json:"scenario"`
	Timestamp       time.Time      `json:"timestamp"`
	TotalDuration   time.Duration  `json:"total_duration"`
	PagesPerSecond  float64        `json:"pages_per_second"`
	Latency         LatencyMetrics `json:"latency"`
	MemoryStats     MemoryMetrics  `json:"memory_stats"`
	CPUStats        CPUMetrics     `json:"cpu_stats"`
	DetectionCount  int            `json:"detection_count"`
	DetectionsByRef map[string]int `json:"detections_by_ref"`
	ErrorRate       float64        `json:"error_rate"`
}

// LatencyMetrics summarizes per-page prediction time.
type LatencyMetrics struct {
	Min  time.Duration `json:"min"`
	Max  time.Duration `json:"max"`
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	Goroutines int `json:"goroutines"`
}

// summarizeLatency computes latency statistics. samples is sorted in place.
func summarizeLatency(samples []time.Duration) LatencyMetrics {
	if len(samples) == 0 {
		return LatencyMetrics{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return LatencyMetrics{
		Min:  samples[0],
		Max:  samples[len(samples)-1],
		Mean: total / time.Duration(len(samples)),
		P50:  percentile(samples, 0.50),
		P95:  percentile(samples, 0.95),
	}
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
