// Package detector finds tables in document images with a DETR model.
package detector

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-tables/config"
	"github.com/nvr-ai/go-tables/images"
	"github.com/nvr-ai/go-tables/inference"
	"github.com/nvr-ai/go-tables/models"
	"github.com/nvr-ai/go-tables/models/model"
	"github.com/nvr-ai/go-tables/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("detector is closed")

// Detector owns a loaded model and turns image references into detections.
// It is safe for concurrent use; forward passes are serialized.
type Detector struct {
	cfg      config.Config
	model    model.Model
	engine   inference.Engine
	loader   *images.Loader
	renderer *images.Renderer
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

type options struct {
	engine inference.Engine
	logger *zap.Logger
	client *http.Client
}

// Option customizes New.
type Option func(*options)

// WithEngine uses engine instead of opening an ONNX Runtime session. The
// Detector takes ownership and closes it.
func WithEngine(engine inference.Engine) Option {
	return func(o *options) { o.engine = engine }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient sets the client used for remote references.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// New loads the model once and returns a ready Detector.
//
// Arguments:
//   - cfg: The configuration; cfg.Model.Path is required unless WithEngine is given.
//   - opts: Optional overrides.
//
// Returns:
//   - *Detector: The detector, to be released with Close.
//   - error: If the configuration is invalid or the model cannot be loaded.
func New(cfg config.Config, opts ...Option) (*Detector, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	m, err := models.NewModel(cfg.Model)
	if err != nil {
		return nil, errors.Wrap(err, "creating model")
	}

	engine := o.engine
	if engine == nil {
		if cfg.Model.Path == "" {
			return nil, errors.New("model path is required")
		}
		mc := m.Options()
		engine, err = inference.NewSession(inference.SessionArgs{
			ModelPath:      mc.Path,
			Inputs:         mc.Inputs,
			OptionalInputs: mc.OptionalInputs,
			Outputs:        mc.Outputs,
			Provider:       cfg.Provider,
			Logger:         o.logger,
		})
		if err != nil {
			return nil, errors.Wrap(err, "loading model")
		}
	}

	loaderOpts := cfg.HTTP
	if o.client != nil {
		loaderOpts.Client = o.client
	}
	renderer := images.NewRenderer(cfg.Renderer)

	d := &Detector{
		cfg:      cfg,
		model:    m,
		engine:   engine,
		loader:   images.NewLoader(loaderOpts),
		renderer: renderer,
		logger:   o.logger,
	}

	o.logger.Info("table detector ready",
		zap.String("model", cfg.Model.Path),
		zap.Float32("threshold", cfg.Model.ConfidenceThreshold),
		zap.Strings("labels", m.Labels().Names()),
		zap.String("font", fontName(renderer)),
	)
	return d, nil
}

func fontName(r *images.Renderer) string {
	if p := r.FontPath(); p != "" {
		return p
	}
	return "goregular (built-in)"
}

// Predict finds tables in the image behind reference.
//
// Arguments:
//   - ctx: Bounds remote fetches; checked again before inference.
//   - reference: An http(s) URL or a local JPEG/PNG path.
//
// Returns:
//   - []Detection: Detections in model query order, possibly empty.
//   - error: *images.UnsupportedFormatError, *images.ImageLoadError or *ImageProcessingError.
func (d *Detector) Predict(ctx context.Context, reference string) ([]Detection, error) {
	img, err := d.load(ctx, reference)
	if err != nil {
		return nil, err
	}
	return d.detect(ctx, reference, img)
}

// PredictImage runs detection on an already decoded image. The image is
// normalized to opaque RGB first.
func (d *Detector) PredictImage(ctx context.Context, img image.Image) ([]Detection, error) {
	return d.detect(ctx, "<image>", images.ToRGB(img))
}

// load validates the format and decodes the image. Local files are sniffed
// before they are read in full; remote bodies are validated after the fetch.
func (d *Detector) load(ctx context.Context, reference string) (image.Image, error) {
	if images.IsRemote(reference) {
		data, name, err := d.loader.Fetch(ctx, reference)
		if err != nil {
			return nil, err
		}
		guess, err := images.ValidateBytes(name, data)
		d.logGuess(reference, guess)
		if err != nil {
			return nil, err
		}
		return images.Decode(reference, data)
	}

	guess, err := images.ValidateFile(reference)
	d.logGuess(reference, guess)
	if err != nil {
		return nil, err
	}
	return d.loader.Load(ctx, reference)
}

func (d *Detector) logGuess(reference string, guess images.FormatGuess) {
	d.logger.Debug("format guess",
		zap.String("reference", reference),
		zap.String("signature", guess.Signature),
		zap.String("extension", guess.Extension),
	)
}

func (d *Detector) detect(ctx context.Context, reference string, img image.Image) ([]Detection, error) {
	start := time.Now()

	inputs, err := d.model.PreProcess(img)
	if err != nil {
		return nil, &ImageProcessingError{Stage: StagePreprocess, Reference: reference, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ImageProcessingError{Stage: StageInference, Reference: reference, Err: err}
	}

	outputs, err := d.run(ctx, inputs)
	if err != nil {
		return nil, &ImageProcessingError{Stage: StageInference, Reference: reference, Err: err}
	}

	size := image.Pt(img.Bounds().Dx(), img.Bounds().Dy())
	results, err := d.model.PostProcess(outputs, size, d.cfg.Model.ConfidenceThreshold)
	if err != nil {
		return nil, &ImageProcessingError{Stage: StagePostprocess, Reference: reference, Err: err}
	}

	detections := d.toDetections(results)
	d.logger.Debug("prediction complete",
		zap.String("reference", reference),
		zap.Int("width", size.X),
		zap.Int("height", size.Y),
		zap.Int("detections", len(detections)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return detections, nil
}

func (d *Detector) run(ctx context.Context, inputs []inference.Tensor) ([]inference.Tensor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	return d.engine.Run(ctx, inputs)
}

func (d *Detector) toDetections(results []postprocess.Result) []Detection {
	labels := d.model.Labels()
	detections := make([]Detection, 0, len(results))
	for _, r := range results {
		detections = append(detections, newDetection(r, labels))
	}
	return detections
}

// DrawBoxes reloads the image behind reference and draws the detections on
// the copy. Nothing is written to disk.
//
// Arguments:
//   - ctx: Bounds remote fetches.
//   - detections: Usually the output of Predict for the same reference.
//   - reference: An http(s) URL or a local JPEG/PNG path.
//   - showScores: Draw each confidence with two decimals above its box.
//
// Returns:
//   - image.Image: The annotated image, same size as the source.
//   - error: *images.UnsupportedFormatError or *images.ImageLoadError.
func (d *Detector) DrawBoxes(ctx context.Context, detections []Detection, reference string, showScores bool) (image.Image, error) {
	img, err := d.load(ctx, reference)
	if err != nil {
		return nil, err
	}
	return d.renderer.Draw(img, annotations(detections), showScores), nil
}

// Info describes the loaded model.
type Info struct {
	ModelPath           string                `json:"model_path"`
	Name                model.Name            `json:"name"`
	Inputs              []string              `json:"inputs"`
	Outputs             []string              `json:"outputs"`
	ConfidenceThreshold float32               `json:"confidence_threshold"`
	NMS                 postprocess.NMSConfig `json:"nms"`
	Labels              []string              `json:"labels"`
	Backend             string                `json:"backend"`
	Font                string                `json:"font"`
	Stats               *inference.Stats      `json:"stats,omitempty"`
}

// ModelInfo returns information about the loaded model.
func (d *Detector) ModelInfo() Info {
	opts := d.model.Options()
	info := Info{
		ModelPath:           opts.Path,
		Name:                opts.Name,
		Inputs:              d.engine.InputNames(),
		Outputs:             d.engine.OutputNames(),
		ConfidenceThreshold: d.cfg.Model.ConfidenceThreshold,
		NMS:                 opts.NMS,
		Labels:              d.model.Labels().Names(),
		Backend:             string(d.cfg.Provider.Backend),
		Font:                fontName(d.renderer),
	}
	if s, ok := d.engine.(interface{ Stats() inference.Stats }); ok {
		stats := s.Stats()
		info.Stats = &stats
	}
	return info
}

// WarmUp runs inference on a blank letter-sized page to prime the runtime.
//
// Arguments:
//   - ctx: Checked before each run.
//   - runs: The number of times to run inference.
//
// Returns:
//   - error: An error if the warmup fails.
func (d *Detector) WarmUp(ctx context.Context, runs int) error {
	page := imaging.New(850, 1100, color.White)

	for i := 0; i < runs; i++ {
		start := time.Now()
		if _, err := d.detect(ctx, "warmup", page); err != nil {
			return err
		}
		d.logger.Debug("warmup run", zap.Int("run", i+1), zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// Close releases the engine. Further calls fail with ErrClosed.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.engine.Close()
}
