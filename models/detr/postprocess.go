package detr

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-tables/images"
	"github.com/nvr-ai/go-tables/inference"
	"github.com/nvr-ai/go-tables/models/postprocess"
	"github.com/pkg/errors"
)

// PostProcess decodes the class logits and normalized boxes.
//
// For each query the class distribution is a softmax over all logits with
// the trailing "no object" class dropped; the best remaining class gives
// the label and score. Boxes arrive as normalized (cx, cy, w, h) and are
// converted to corners in size, clamped to the image.
//
// Arguments:
//   - outputs: Engine outputs containing the logits and box tensors.
//   - size: Width and height of the source image.
//   - threshold: Scores must be strictly greater than this.
//
// Returns:
//   - []postprocess.Result: Detections in query order, after suppression.
//   - error: If the outputs are missing or malformed.
func (m *DETR) PostProcess(outputs []inference.Tensor, size image.Point, threshold float32) ([]postprocess.Result, error) {
	logits, err := inference.Find(outputs, m.options.Outputs[0])
	if err != nil {
		return nil, err
	}
	boxes, err := inference.Find(outputs, m.options.Outputs[1])
	if err != nil {
		return nil, err
	}

	results, err := Decode(logits, boxes, size, threshold)
	if err != nil {
		return nil, err
	}
	return postprocess.ApplyGreedyNMS(results, m.options.NMS), nil
}

// Decode converts raw DETR outputs to detections without suppression.
func Decode(logits, boxes inference.Tensor, size image.Point, threshold float32) ([]postprocess.Result, error) {
	queries, classes, err := checkShapes(logits, boxes)
	if err != nil {
		return nil, err
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid image size %v", size)
	}

	w, h := float32(size.X), float32(size.Y)
	probs := make([]float32, classes)
	results := make([]postprocess.Result, 0)

	for q := 0; q < queries; q++ {
		Softmax(logits.Float32[q*classes:(q+1)*classes], probs)

		// The last class is "no object".
		label, score := argmax(probs[:classes-1])
		if !(score > threshold) {
			continue
		}

		b := boxes.Float32[q*4 : q*4+4]
		cx, cy, bw, bh := b[0], b[1], b[2], b[3]
		box := images.Box{
			X1: (cx - bw/2) * w,
			Y1: (cy - bh/2) * h,
			X2: (cx + bw/2) * w,
			Y2: (cy + bh/2) * h,
		}.Clamp(w, h)

		results = append(results, postprocess.Result{
			Box:   box,
			Score: score,
			Class: label,
			Query: q,
		})
	}
	return results, nil
}

func checkShapes(logits, boxes inference.Tensor) (queries, classes int, err error) {
	if logits.Float32 == nil || boxes.Float32 == nil {
		return 0, 0, errors.New("DETR outputs must be float32")
	}
	if err := logits.Validate(); err != nil {
		return 0, 0, err
	}
	if err := boxes.Validate(); err != nil {
		return 0, 0, err
	}
	if len(logits.Shape) != 3 || logits.Shape[0] != 1 {
		return 0, 0, fmt.Errorf("logits shape %v, want [1, queries, classes+1]", logits.Shape)
	}
	if len(boxes.Shape) != 3 || boxes.Shape[0] != 1 || boxes.Shape[2] != 4 {
		return 0, 0, fmt.Errorf("boxes shape %v, want [1, queries, 4]", boxes.Shape)
	}
	if logits.Shape[1] != boxes.Shape[1] {
		return 0, 0, fmt.Errorf("logits have %d queries, boxes have %d", logits.Shape[1], boxes.Shape[1])
	}
	if logits.Shape[2] < 2 {
		return 0, 0, fmt.Errorf("logits need at least one class plus no-object, got %d", logits.Shape[2])
	}
	return int(logits.Shape[1]), int(logits.Shape[2]), nil
}

// Softmax writes the softmax of in to out. Both must have the same length.
func Softmax(in, out []float32) {
	maxV := math32.Inf(-1)
	for _, v := range in {
		maxV = math32.Max(maxV, v)
	}
	var sum float32
	for i, v := range in {
		e := math32.Exp(v - maxV)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
}

// argmax returns the first index of the largest value.
func argmax(v []float32) (int, float32) {
	best, bestV := 0, v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > bestV {
			best, bestV = i, v[i]
		}
	}
	return best, bestV
}
