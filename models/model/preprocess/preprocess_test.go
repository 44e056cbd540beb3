package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// TestTargetSize validates the shortest-edge resize rule, including the cap
// on the longest edge.
func TestTargetSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{name: "landscape letter page", width: 1100, height: 850, wantW: 1035, wantH: 800},
		{name: "portrait letter page", width: 850, height: 1100, wantW: 800, wantH: 1035},
		{name: "square", width: 400, height: 400, wantW: 800, wantH: 800},
		{name: "already at target", width: 1000, height: 800, wantW: 1000, wantH: 800},
		// 2000/500*800 > 1333, so size = round(1333*500/2000) = 333 and the
		// long side comes from the unrounded 333.25.
		{name: "long strip capped", width: 2000, height: 500, wantW: 1333, wantH: 333},
		{name: "tall strip capped", width: 500, height: 2000, wantW: 333, wantH: 1333},
		// 266.6 rounds up to 267; scaling 267 would give 1335.
		{name: "rounded short side stays under cap", width: 1000, height: 200, wantW: 1333, wantH: 267},
		{name: "rounded short side stays under cap portrait", width: 200, height: 1000, wantW: 267, wantH: 1333},
		{name: "downscale", width: 2480, height: 3508, wantW: 800, wantH: 1131},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.width, tt.height, 800, 1333)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.LessOrEqual(t, max(w, h), 1333)
		})
	}

	// 1333*50/100 = 666.5 rounds to even.
	w, h := TargetSize(100, 50, 800, 1333)
	assert.Equal(t, 1333, w)
	assert.Equal(t, 666, h)

	w, h = TargetSize(2000, 500, 800, 0)
	assert.Equal(t, 3200, w, "no cap without a longest edge")
	assert.Equal(t, 800, h)
}

// TestPreprocess_ShapesAndMask checks the tensor layout and the pixel mask.
func TestPreprocess_ShapesAndMask(t *testing.T) {
	p, err := NewPreprocessor(DefaultDETRConfig())
	require.NoError(t, err)

	res, err := p.Preprocess(solidImage(100, 80, color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 800, 1000}, res.Shape)
	assert.Len(t, res.Data, 3*800*1000)
	assert.Equal(t, []int64{1, 800, 1000}, res.MaskShape)
	assert.Len(t, res.Mask, 800*1000)
	for _, v := range res.Mask {
		require.Equal(t, int64(1), v)
	}
	assert.Equal(t, 100, res.OriginalWidth)
	assert.Equal(t, 80, res.OriginalHeight)
	assert.InDelta(t, 10.0, res.ScaleX, 1e-9)
	assert.InDelta(t, 10.0, res.ScaleY, 1e-9)

	// A flat white page stays flat after bilinear resampling.
	assert.InDelta(t, (1.0-0.485)/0.229, res.Data[0], 0.05)
	assert.InDelta(t, (1.0-0.406)/0.225, res.Data[len(res.Data)-1], 0.05)
}

// TestPreprocess_Normalization validates ImageNet standardization per channel
// in CHW order.
func TestPreprocess_Normalization(t *testing.T) {
	cfg := DefaultDETRConfig()
	cfg.ShortestEdge = 4
	cfg.LongestEdge = 0
	p, err := NewPreprocessor(cfg)
	require.NoError(t, err)

	// 4x4 input stays unresized.
	res, err := p.Preprocess(solidImage(4, 4, color.NRGBA{R: 255, G: 0, B: 128, A: 255}))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, 4, 4}, res.Shape)

	plane := 16
	wantR := (1.0 - 0.485) / 0.229
	wantG := (0.0 - 0.456) / 0.224
	wantB := (128.0/255.0 - 0.406) / 0.225
	for i := 0; i < plane; i++ {
		assert.InDelta(t, wantR, res.Data[i], 1e-4)
		assert.InDelta(t, wantG, res.Data[plane+i], 1e-4)
		assert.InDelta(t, wantB, res.Data[2*plane+i], 1e-4)
	}
}

// TestPreprocess_SubImage makes sure non-zero bounds are read correctly.
func TestPreprocess_SubImage(t *testing.T) {
	cfg := DefaultDETRConfig()
	cfg.ShortestEdge = 2
	cfg.LongestEdge = 0
	p, err := NewPreprocessor(cfg)
	require.NoError(t, err)

	img := solidImage(4, 4, color.NRGBA{A: 255})
	img.SetNRGBA(2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4))

	res, err := p.Preprocess(sub)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, 2, 2}, res.Shape)
	assert.InDelta(t, (1.0-0.485)/0.229, res.Data[0], 1e-4, "top-left of the sub image is white")
	assert.InDelta(t, (0.0-0.485)/0.229, res.Data[1], 1e-4)
}

// TestPreprocess_Validation covers configuration and input errors.
func TestPreprocess_Validation(t *testing.T) {
	bad := DefaultDETRConfig()
	bad.ShortestEdge = 0
	_, err := NewPreprocessor(bad)
	assert.Error(t, err)

	bad = DefaultDETRConfig()
	bad.LongestEdge = 10
	_, err = NewPreprocessor(bad)
	assert.Error(t, err)

	bad = DefaultDETRConfig()
	bad.StdValues[1] = 0
	_, err = NewPreprocessor(bad)
	assert.Error(t, err)

	p, err := NewPreprocessor(DefaultDETRConfig())
	require.NoError(t, err)

	_, err = p.Preprocess(nil)
	assert.Error(t, err)

	_, err = p.Preprocess(image.NewNRGBA(image.Rect(0, 0, 0, 10)))
	assert.Error(t, err)
}
