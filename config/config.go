// Package config loads the YAML configuration for the table detector.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/nvr-ai/go-tables/images"
	"github.com/nvr-ai/go-tables/inference/providers"
	"github.com/nvr-ai/go-tables/logging"
	"github.com/nvr-ai/go-tables/models/detr"
	"github.com/nvr-ai/go-tables/models/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration.
type Config struct {
	Model    model.Config           `json:"model"    yaml:"model"`
	Provider providers.Config       `json:"provider" yaml:"provider"`
	Renderer images.RendererOptions `json:"renderer" yaml:"renderer"`
	HTTP     images.LoaderOptions   `json:"http"     yaml:"http"`
	Log      logging.Config         `json:"log"      yaml:"log"`
}

// Default returns the configuration used when no file is given. The model
// path is left empty.
func Default() Config {
	return Config{
		Model:    detr.DefaultConfig(""),
		Provider: providers.DefaultConfig(),
		Renderer: images.DefaultRendererOptions(),
		HTTP: images.LoaderOptions{
			Timeout:   30 * time.Second,
			UserAgent: "go-tables",
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads a YAML file and overlays it on Default.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged and validated configuration.
//   - error: If the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	return Parse(data)
}

// Parse overlays YAML data on Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Validate checks every section. The model path is not required here; the
// detector checks it when it loads the model.
func (c Config) Validate() error {
	m := c.Model
	if m.ConfidenceThreshold < 0 || m.ConfidenceThreshold >= 1 {
		return fmt.Errorf("model.confidence_threshold must be in [0, 1), got %v", m.ConfidenceThreshold)
	}
	if m.NMS.Enabled && (m.NMS.IoUThreshold <= 0 || m.NMS.IoUThreshold > 1) {
		return fmt.Errorf("model.nms.iou_threshold must be in (0, 1], got %v", m.NMS.IoUThreshold)
	}
	if len(m.Outputs) != 0 && len(m.Outputs) != 2 {
		return fmt.Errorf("model.outputs must name the logits and boxes, got %v", m.Outputs)
	}
	if err := m.Preprocess.Validate(); err != nil {
		return errors.Wrap(err, "model.preprocess")
	}
	if err := c.Provider.Validate(); err != nil {
		return errors.Wrap(err, "provider")
	}
	if err := c.Log.Validate(); err != nil {
		return errors.Wrap(err, "log")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	for _, col := range []string{c.Renderer.BoxColor, c.Renderer.TextColor} {
		if col != "" && !hexColor.MatchString(col) {
			return fmt.Errorf("renderer color %q is not a hex color", col)
		}
	}
	for _, f := range c.Renderer.Fonts {
		if f.Size <= 0 {
			return fmt.Errorf("renderer font %s needs a positive size", f.Path)
		}
	}
	return nil
}
