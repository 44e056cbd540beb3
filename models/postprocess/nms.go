// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-tables/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	Enabled      bool    `json:"enabled"       yaml:"enabled"`       // If false, detections pass through untouched.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
	ClassAware   bool    `json:"class_aware"   yaml:"class_aware"`   // If true, suppress only within same class.
}

// DefaultNMSConfig returns suppression switched off. DETR emits one box per
// object query, so every query above the threshold is kept. Setting Enabled
// applies class-aware suppression at IoU 0.7.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{Enabled: false, IoUThreshold: 0.7, ClassAware: true}
}

// ApplyGreedyNMS performs greedy Non-Maximum Suppression.
//
// Candidates are visited by descending score (ties keep input order) and a
// candidate is dropped when its IoU with an already kept, higher scored box
// exceeds the threshold. Survivors are returned in their input order.
//
// Arguments:
//   - detections: Slice of detections in any order.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}
	if !config.Enabled {
		return detections
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return detections[order[a]].Score > detections[order[b]].Score
	})

	suppressed := make([]bool, n)
	for oi, i := range order {
		if suppressed[i] {
			continue
		}
		anchor := detections[i]
		for _, j := range order[oi+1:] {
			if suppressed[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				suppressed[j] = true
			}
		}
	}

	filtered := make([]Result, 0, n)
	for i, d := range detections {
		if !suppressed[i] {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
