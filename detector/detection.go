package detector

import (
	"math"

	"github.com/nvr-ai/go-tables/images"
	"github.com/nvr-ai/go-tables/models/model"
	"github.com/nvr-ai/go-tables/models/postprocess"
)

// Detection is one table found in an image.
type Detection struct {
	// Label is the class name, e.g. "table".
	Label string `json:"label"`
	// Confidence is in [0, 1], rounded to 3 decimals.
	Confidence float64 `json:"confidence"`
	// Box is x_min, y_min, x_max, y_max in source pixels, rounded to 2 decimals.
	Box [4]float64 `json:"box"`
}

func newDetection(r postprocess.Result, labels *model.LabelTable) Detection {
	return Detection{
		Label:      labels.Name(r.Class),
		Confidence: round(float64(r.Score), 3),
		Box: [4]float64{
			round(float64(r.Box.X1), 2),
			round(float64(r.Box.Y1), 2),
			round(float64(r.Box.X2), 2),
			round(float64(r.Box.Y2), 2),
		},
	}
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

func annotations(detections []Detection) []images.Annotation {
	out := make([]images.Annotation, len(detections))
	for i, d := range detections {
		out[i] = images.Annotation{
			XMin:  d.Box[0],
			YMin:  d.Box[1],
			XMax:  d.Box[2],
			YMax:  d.Box[3],
			Score: d.Confidence,
		}
	}
	return out
}
