// Package detr - DETR-family detector (e.g. detr-doc-table-detection) exported to ONNX.
package detr

import (
	"github.com/nvr-ai/go-tables/models/model"
	"github.com/nvr-ai/go-tables/models/model/preprocess"
	"github.com/nvr-ai/go-tables/models/postprocess"
	"github.com/pkg/errors"
)

// Default tensor names of a Hugging Face DETR export.
const (
	InputPixelValues = "pixel_values"
	InputPixelMask   = "pixel_mask"
	OutputLogits     = "logits"
	OutputPredBoxes  = "pred_boxes"
)

// DefaultConfidenceThreshold is the score a detection must exceed.
const DefaultConfidenceThreshold float32 = 0.9

// DETR is the instance of the DETR model.
type DETR struct {
	options      model.Config
	preprocessor *preprocess.Preprocessor
	labels       *model.LabelTable
}

var _ model.Model = (*DETR)(nil)

// DefaultConfig returns the configuration for a table detection export with
// the given model path.
func DefaultConfig(path string) model.Config {
	return model.Config{
		Name:                model.ModelNameDETR,
		Path:                path,
		Inputs:              []string{InputPixelValues},
		OptionalInputs:      []string{InputPixelMask},
		Outputs:             []string{OutputLogits, OutputPredBoxes},
		ConfidenceThreshold: DefaultConfidenceThreshold,
		NMS:                 postprocess.DefaultNMSConfig(),
		Preprocess:          preprocess.DefaultDETRConfig(),
	}
}

// NewModel creates a new model.
//
// Arguments:
//   - args: The model configuration. Empty input or output names fall back
//     to the DETR defaults.
//
// Returns:
//   - *DETR: The model.
//   - error: If preprocessing is misconfigured or the label file cannot be read.
func NewModel(args model.Config) (*DETR, error) {
	defaults := DefaultConfig(args.Path)
	if len(args.Inputs) == 0 {
		args.Inputs = defaults.Inputs
		if args.OptionalInputs == nil {
			args.OptionalInputs = defaults.OptionalInputs
		}
	}
	if len(args.Outputs) == 0 {
		args.Outputs = defaults.Outputs
	}
	if len(args.Outputs) != 2 {
		return nil, errors.Errorf("DETR needs exactly two outputs (logits, boxes), got %v", args.Outputs)
	}
	if args.Preprocess.ShortestEdge == 0 {
		args.Preprocess = defaults.Preprocess
	}
	args.Name = model.ModelNameDETR

	pre, err := preprocess.NewPreprocessor(args.Preprocess)
	if err != nil {
		return nil, err
	}

	labels := model.DefaultTableLabels()
	if args.LabelsPath != "" {
		labels, err = model.LoadLabelTable(args.LabelsPath)
		if err != nil {
			return nil, err
		}
	}

	return &DETR{
		options:      args,
		preprocessor: pre,
		labels:       labels,
	}, nil
}

// Options returns the options for the DETR model.
func (m *DETR) Options() model.Config {
	return m.options
}

// Labels returns the label table.
func (m *DETR) Labels() *model.LabelTable {
	return m.labels
}
