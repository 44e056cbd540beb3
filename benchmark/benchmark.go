package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/nvr-ai/go-tables/detector"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Predictor is the part of the detector a benchmark drives.
type Predictor interface {
	Predict(ctx context.Context, reference string) ([]detector.Detection, error)
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	predictor Predictor
	outputDir string
	logger    *zap.Logger

	mu        sync.RWMutex
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - predictor: The detector to measure.
//   - outputDir: Where SaveResults writes its files.
//   - logger: Receives one line per completed scenario.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(predictor Predictor, outputDir string, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		predictor: predictor,
		outputDir: outputDir,
		logger:    logger,
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// RunScenario executes a single benchmark scenario. Failed predictions count
// towards the error rate and do not stop the run.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		ref := scenario.References[i%len(scenario.References)]
		if _, err := s.predictor.Predict(ctx, ref); err != nil {
			s.logger.Debug("warmup failed", zap.String("reference", ref), zap.Error(err))
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:        scenario,
		Timestamp:       time.Now(),
		DetectionsByRef: make(map[string]int, len(scenario.References)),
	}
	samples := make([]time.Duration, 0, scenario.Iterations)
	failures := 0

	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref := scenario.References[i%len(scenario.References)]

		t0 := time.Now()
		detections, err := s.predictor.Predict(ctx, ref)
		if err != nil {
			failures++
			s.logger.Debug("prediction failed", zap.String("reference", ref), zap.Error(err))
			continue
		}
		samples = append(samples, time.Since(t0))
		metrics.DetectionCount += len(detections)
		metrics.DetectionsByRef[ref] = len(detections)
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if secs := metrics.TotalDuration.Seconds(); secs > 0 {
		metrics.PagesPerSecond = float64(len(samples)) / secs
	}
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.Latency = summarizeLatency(samples)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}
	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}
	return metrics, nil
}

// RunAllScenarios executes all configured scenarios and saves the results.
// A scenario that fails to start is logged and skipped.
func (s *Suite) RunAllScenarios(ctx context.Context) error {
	s.mu.RLock()
	scenarios := make([]Scenario, len(s.scenarios))
	copy(scenarios, s.scenarios)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *metrics)
		s.mu.Unlock()

		s.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("pages_per_second", metrics.PagesPerSecond),
			zap.Duration("p95", metrics.Latency.P95),
			zap.Float64("error_rate", metrics.ErrorRate),
		)
	}

	_, _, err := s.SaveResults()
	return err
}

// SaveResults persists results as a JSON report and a CSV summary.
//
// Returns:
//   - string: The JSON file path.
//   - string: The CSV file path.
//   - error: If the output directory or either file cannot be written.
func (s *Suite) SaveResults() (string, string, error) {
	results := s.GetResults()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))
	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}

	s.logger.Info("benchmark results saved",
		zap.String("results", resultsFile),
		zap.String("summary", summaryFile),
	)
	return resultsFile, summaryFile, nil
}

var summaryHeader = []string{
	"scenario", "pages", "pages_per_second", "total_ms",
	"p50_ms", "p95_ms", "alloc_mb", "detections", "error_rate",
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(summaryHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Scenario.Name,
			strconv.Itoa(r.Scenario.Iterations),
			strconv.FormatFloat(r.PagesPerSecond, 'f', 2, 64),
			ms(r.TotalDuration),
			ms(r.Latency.P50),
			ms(r.Latency.P95),
			strconv.FormatFloat(float64(r.MemoryStats.AllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 2, 64)
}

// GetResults returns all benchmark results
func (s *Suite) GetResults() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}
