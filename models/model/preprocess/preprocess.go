// Package preprocess - image to tensor conversion for transformer detectors.
package preprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Config defines preprocessing configuration for a specific model.
type Config struct {
	// Name of the model for debugging purposes.
	Name string `json:"name" yaml:"name"`
	// ShortestEdge is the target length of the shorter image side.
	ShortestEdge int `json:"shortest_edge" yaml:"shortest_edge"`
	// LongestEdge caps the longer image side after resizing. 0 disables the cap.
	LongestEdge int `json:"longest_edge" yaml:"longest_edge"`
	// RescaleFactor multiplies 8-bit channel values before normalization.
	RescaleFactor float32 `json:"rescale_factor" yaml:"rescale_factor"`
	// MeanValues for standardization, RGB order.
	MeanValues [3]float32 `json:"mean" yaml:"mean"`
	// StdValues for standardization, RGB order.
	StdValues [3]float32 `json:"std" yaml:"std"`
}

// DefaultDETRConfig mirrors the DETR image processor: shortest edge 800,
// longest edge 1333, rescale by 1/255 and ImageNet mean/std.
func DefaultDETRConfig() Config {
	return Config{
		Name:          "detr",
		ShortestEdge:  800,
		LongestEdge:   1333,
		RescaleFactor: 1.0 / 255.0,
		MeanValues:    [3]float32{0.485, 0.456, 0.406},
		StdValues:     [3]float32{0.229, 0.224, 0.225},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ShortestEdge <= 0 {
		return fmt.Errorf("shortest_edge must be positive, got %d", c.ShortestEdge)
	}
	if c.LongestEdge != 0 && c.LongestEdge < c.ShortestEdge {
		return fmt.Errorf("longest_edge %d is smaller than shortest_edge %d", c.LongestEdge, c.ShortestEdge)
	}
	if c.RescaleFactor <= 0 {
		return fmt.Errorf("rescale_factor must be positive, got %f", c.RescaleFactor)
	}
	for i, s := range c.StdValues {
		if s <= 0 {
			return fmt.Errorf("std[%d] must be positive, got %f", i, s)
		}
	}
	return nil
}

// Result contains the preprocessed image data and metadata.
type Result struct {
	// Data is the normalized float32 tensor in CHW order.
	Data []float32
	// Shape is [1, 3, Height, Width].
	Shape []int64
	// Mask marks valid pixels, all ones for a single unpadded image.
	Mask []int64
	// MaskShape is [1, Height, Width].
	MaskShape []int64
	// OriginalWidth is the original image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the original image height before preprocessing.
	OriginalHeight int
	// Width and Height are the resized dimensions.
	Width  int
	Height int
	// ScaleX is the horizontal scaling factor applied.
	ScaleX float64
	// ScaleY is the vertical scaling factor applied.
	ScaleY float64
}

// Preprocessor handles image preprocessing for ONNX models.
type Preprocessor struct {
	config Config
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//   - error: If the configuration is invalid.
func NewPreprocessor(config Config) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid preprocessing config")
	}
	return &Preprocessor{config: config}, nil
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() Config {
	return p.config
}

// Preprocess resizes, rescales and normalizes img.
//
// Arguments:
//   - img: The decoded RGB input image.
//
// Returns:
//   - *Result: The tensor and its metadata.
//   - error: If the image is empty.
func (p *Preprocessor) Preprocess(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	srcWidth, srcHeight := img.Bounds().Dx(), img.Bounds().Dy()
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", srcWidth, srcHeight)
	}

	width, height := TargetSize(srcWidth, srcHeight, p.config.ShortestEdge, p.config.LongestEdge)
	resized := img
	if width != srcWidth || height != srcHeight {
		resized = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	}

	data := p.imageToTensor(resized)

	mask := make([]int64, width*height)
	for i := range mask {
		mask[i] = 1
	}

	return &Result{
		Data:           data,
		Shape:          []int64{1, 3, int64(height), int64(width)},
		Mask:           mask,
		MaskShape:      []int64{1, int64(height), int64(width)},
		OriginalWidth:  srcWidth,
		OriginalHeight: srcHeight,
		Width:          width,
		Height:         height,
		ScaleX:         float64(width) / float64(srcWidth),
		ScaleY:         float64(height) / float64(srcHeight),
	}, nil
}

// TargetSize computes the resized dimensions for a shortest-edge resize with
// an optional cap on the longest edge. Aspect ratio is kept and the longer
// side is truncated to an integer. When the cap applies, the shorter side is
// the capped size rounded half to even and the longer side is derived from
// the unrounded size, so it never exceeds the cap.
//
// Arguments:
//   - width, height: Source dimensions.
//   - shortest: Target for the shorter side.
//   - longest: Cap for the longer side, 0 for none.
//
// Returns:
//   - int, int: Target width and height.
func TargetSize(width, height, shortest, longest int) (int, int) {
	size := float64(shortest)
	raw := size
	minSide := float64(min(width, height))
	maxSide := float64(max(width, height))

	if longest > 0 && maxSide/minSide*size > float64(longest) {
		raw = float64(longest) * minSide / maxSide
		size = math.RoundToEven(raw)
	}

	s := int(size)
	if (height <= width && height == s) || (width <= height && width == s) {
		return width, height
	}
	if width < height {
		return s, int(raw * float64(height) / float64(width))
	}
	return int(raw * float64(width) / float64(height)), s
}

// imageToTensor converts an image to a normalized CHW float32 tensor.
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height

	tensor := make([]float32, plane*3)

	var scale, shift [3]float32
	for c := 0; c < 3; c++ {
		scale[c] = p.config.RescaleFactor / p.config.StdValues[c]
		shift[c] = p.config.MeanValues[c] / p.config.StdValues[c]
	}

	set := func(i int, r, g, b uint8) {
		tensor[i] = float32(r)*scale[0] - shift[0]
		tensor[plane+i] = float32(g)*scale[1] - shift[1]
		tensor[2*plane+i] = float32(b)*scale[2] - shift[2]
	}

	switch src := img.(type) {
	case *image.RGBA:
		// Opaque inputs, so premultiplied and straight values agree.
		for y := 0; y < height; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := 0; x < width; x++ {
				set(y*width+x, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < height; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := 0; x < width; x++ {
				set(y*width+x, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				set(y*width+x, uint8(r>>8), uint8(g>>8), uint8(b>>8))
			}
		}
	}

	return tensor
}
