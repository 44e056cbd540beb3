// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-tables/images"

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, in source image pixels.
	Box images.Box
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
	// The query slot the result came from.
	Query int
}
