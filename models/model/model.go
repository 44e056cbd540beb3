// Package model - Contract between the detector and a model family.
package model

import (
	"image"

	"github.com/nvr-ai/go-tables/inference"
	"github.com/nvr-ai/go-tables/models/model/preprocess"
	"github.com/nvr-ai/go-tables/models/postprocess"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameDETR is the name of the DETR detector family.
	ModelNameDETR Name = "detr"
)

// Config describes a model on disk and how to drive it.
type Config struct {
	Name Name `json:"name" yaml:"name"`
	// Path is the ONNX model file.
	Path string `json:"path" yaml:"path"`
	// LabelsPath is a config.json with id2label, or a YAML file with the same key.
	// Empty selects the built-in table.
	LabelsPath string `json:"labels_path" yaml:"labels_path"`
	// Inputs are required model inputs, in feed order.
	Inputs []string `json:"inputs" yaml:"inputs"`
	// OptionalInputs are fed only when the model declares them.
	OptionalInputs []string `json:"optional_inputs" yaml:"optional_inputs"`
	// Outputs are the class logits and box outputs, in that order.
	Outputs             []string              `json:"outputs"              yaml:"outputs"`
	ConfidenceThreshold float32               `json:"confidence_threshold" yaml:"confidence_threshold"`
	NMS                 postprocess.NMSConfig `json:"nms"                  yaml:"nms"`
	Preprocess          preprocess.Config     `json:"preprocess"           yaml:"preprocess"`
}

// Model pairs preprocessing with post-processing for one model family.
type Model interface {
	// Options returns the configuration the model was built with.
	Options() Config
	// PreProcess turns a decoded RGB image into named input tensors.
	PreProcess(img image.Image) ([]inference.Tensor, error)
	// PostProcess decodes raw outputs into detections in source pixel space.
	// Only detections scoring strictly above threshold are returned.
	PostProcess(outputs []inference.Tensor, size image.Point, threshold float32) ([]postprocess.Result, error)
	// Labels maps class indices to names.
	Labels() *LabelTable
}
