// Package inference - Inference engine interface and implementations.
package inference

import "context"

// Engine runs a forward pass of a loaded model.
//
// Implementations keep no state between calls: the outputs depend only on
// the inputs.
type Engine interface {
	// Run feeds inputs by name and returns the model outputs in declared order.
	Run(ctx context.Context, inputs []Tensor) ([]Tensor, error)
	// InputNames lists the inputs the model accepts.
	InputNames() []string
	// OutputNames lists the outputs Run returns.
	OutputNames() []string
	// Close releases native resources.
	Close() error
}

// Stats summarizes engine usage.
type Stats struct {
	InferenceCount int64   `json:"inference_count"`
	TotalTimeMs    float64 `json:"total_time_ms"`
	AverageTimeMs  float64 `json:"average_time_ms"`
}
