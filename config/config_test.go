package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-tables/inference/providers"
	"github.com/nvr-ai/go-tables/models/detr"
	"github.com/nvr-ai/go-tables/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, model.ModelNameDETR, cfg.Model.Name)
	assert.Equal(t, float32(0.9), cfg.Model.ConfidenceThreshold)
	assert.Equal(t, []string{detr.InputPixelValues}, cfg.Model.Inputs)
	assert.Equal(t, []string{detr.OutputLogits, detr.OutputPredBoxes}, cfg.Model.Outputs)
	assert.False(t, cfg.Model.NMS.Enabled)
	assert.Equal(t, float32(0.7), cfg.Model.NMS.IoUThreshold)
	assert.Equal(t, 800, cfg.Model.Preprocess.ShortestEdge)
	assert.Equal(t, 1333, cfg.Model.Preprocess.LongestEdge)
	assert.Equal(t, providers.CPUProviderBackend, cfg.Provider.Backend)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, float64(60), cfg.Renderer.TextMargin)
	assert.Equal(t, float64(20), cfg.Renderer.FallbackSize)
	assert.NotEmpty(t, cfg.Renderer.Fonts)
}

func TestParse_Overlay(t *testing.T) {
	cfg, err := Parse([]byte(`
model:
  path: /models/detr-doc-table-detection.onnx
  labels_path: /models/config.json
  confidence_threshold: 0.95
  nms:
    enabled: true
provider:
  backend: cuda
  intra_op_num_threads: 4
  cuda:
    device_id: 1
renderer:
  fonts:
    - path: /usr/share/fonts/DejaVuSans.ttf
      size: 40
http:
  timeout: 5s
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "/models/detr-doc-table-detection.onnx", cfg.Model.Path)
	assert.Equal(t, "/models/config.json", cfg.Model.LabelsPath)
	assert.Equal(t, float32(0.95), cfg.Model.ConfidenceThreshold)
	assert.True(t, cfg.Model.NMS.Enabled)
	assert.Equal(t, float32(0.7), cfg.Model.NMS.IoUThreshold, "unset keys keep defaults")
	assert.Equal(t, 800, cfg.Model.Preprocess.ShortestEdge)
	assert.Equal(t, providers.CUDAProviderBackend, cfg.Provider.Backend)
	assert.Equal(t, 4, cfg.Provider.IntraOpNumThreads)
	assert.Equal(t, 1, cfg.Provider.CUDA.DeviceID)
	require.Len(t, cfg.Renderer.Fonts, 1)
	assert.Equal(t, float64(40), cfg.Renderer.Fonts[0].Size)
	assert.Equal(t, "#ff0000", cfg.Renderer.BoxColor)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"threshold above one":  "model:\n  confidence_threshold: 1.5\n",
		"negative threshold":   "model:\n  confidence_threshold: -0.1\n",
		"iou out of range":     "model:\n  nms:\n    iou_threshold: 0\n",
		"three outputs":        "model:\n  outputs: [a, b, c]\n",
		"bad preprocess":       "model:\n  preprocess:\n    shortest_edge: -1\n",
		"unknown backend":      "provider:\n  backend: tpu\n",
		"unknown log level":    "log:\n  level: chatty\n",
		"negative timeout":     "http:\n  timeout: -1s\n",
		"bad color":            "renderer:\n  box_color: red\n",
		"font without size":    "renderer:\n  fonts:\n    - path: a.ttf\n",
		"not yaml":             "model: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  path: m.onnx\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "m.onnx", cfg.Model.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
