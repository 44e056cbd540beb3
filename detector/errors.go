package detector

import "fmt"

// Stage names the pipeline step that failed.
type Stage string

// Pipeline stages after loading.
const (
	StagePreprocess  Stage = "preprocess"
	StageInference   Stage = "inference"
	StagePostprocess Stage = "postprocess"
)

// ImageProcessingError is returned when a loaded image cannot be turned into
// detections.
type ImageProcessingError struct {
	Stage     Stage
	Reference string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("Error processing image %s (%s): %v", e.Reference, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}
