package detr

import (
	"image"

	"github.com/nvr-ai/go-tables/inference"
)

// PreProcess resizes and normalizes img and returns the pixel values plus,
// when the model takes one, a mask of ones with the same spatial size.
func (m *DETR) PreProcess(img image.Image) ([]inference.Tensor, error) {
	res, err := m.preprocessor.Preprocess(img)
	if err != nil {
		return nil, err
	}

	tensors := []inference.Tensor{
		inference.NewFloat32Tensor(m.options.Inputs[0], res.Shape, res.Data),
	}
	if len(m.options.OptionalInputs) > 0 {
		tensors = append(tensors, inference.NewInt64Tensor(m.options.OptionalInputs[0], res.MaskShape, res.Mask))
	}
	return tensors, nil
}
