// Package models - registry for models.
package models

import (
	"fmt"

	"github.com/nvr-ai/go-tables/models/detr"
	"github.com/nvr-ai/go-tables/models/model"
)

// Names lists the registered model names.
var Names = []model.Name{model.ModelNameDETR}

// NewModel creates a new detection model instance based on the specified model name.
//
// Arguments:
//   - args: Configuration parameters specifying the model type and location.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: An error if the model name is unsupported or the model configuration is invalid.
//
// Example:
//
// ```go
//
//	m, err := models.NewModel(detr.DefaultConfig("/models/detr-doc-table-detection.onnx"))
//	if err != nil {
//	    return err
//	}
//
// ```
func NewModel(args model.Config) (model.Model, error) {
	switch args.Name {
	case model.ModelNameDETR, "":
		m, err := detr.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model name: %s", args.Name)
	}
}
