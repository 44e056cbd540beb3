// Package providers - ONNX Runtime execution provider selection and session options.
package providers

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// Backends lists every supported backend.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CUDAProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
}

// ParseBackend converts a case-insensitive name into a ProviderBackend.
// An empty name selects the CPU backend.
func ParseBackend(name string) (ProviderBackend, error) {
	n := ProviderBackend(strings.ToLower(strings.TrimSpace(name)))
	if n == "" {
		return CPUProviderBackend, nil
	}
	for _, b := range Backends {
		if b == n {
			return b, nil
		}
	}
	return "", fmt.Errorf("no matching provider backend registered: %s", name)
}

// Config selects the execution provider and tunes the session.
type Config struct {
	// Backend specifies the backend to use
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// LibraryPath is the onnxruntime shared library. The
	// ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable takes precedence.
	LibraryPath string `json:"library_path" yaml:"library_path"`

	// IntraOpNumThreads sets threads for parallelizing ops. 0 lets the runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. 0 lets the runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	// GraphOptimizationLevel is one of "disable_all", "basic", "extended" or "all".
	GraphOptimizationLevel string `json:"graph_optimization_level" yaml:"graph_optimization_level"`

	// ExecutionMode is "sequential" or "parallel".
	ExecutionMode string `json:"execution_mode" yaml:"execution_mode"`

	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration with extended graph optimizations.
func DefaultConfig() Config {
	return Config{
		Backend:                CPUProviderBackend,
		GraphOptimizationLevel: "extended",
		ExecutionMode:          "sequential",
	}
}

// Validate checks the configuration without touching the native runtime.
func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.New("thread counts must not be negative")
	}
	if _, err := graphOptimizationLevel(c.GraphOptimizationLevel); err != nil {
		return err
	}
	if _, err := executionMode(c.ExecutionMode); err != nil {
		return err
	}
	return nil
}

func graphOptimizationLevel(name string) (ort.GraphOptimizationLevel, error) {
	switch strings.ToLower(name) {
	case "disable_all", "none":
		return ort.GraphOptimizationLevelDisableAll, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "", "extended":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, fmt.Errorf("unknown graph optimization level %q", name)
	}
}

func executionMode(name string) (ort.ExecutionMode, error) {
	switch strings.ToLower(name) {
	case "", "sequential":
		return ort.ExecutionModeSequential, nil
	case "parallel":
		return ort.ExecutionModeParallel, nil
	default:
		return 0, fmt.Errorf("unknown execution mode %q", name)
	}
}

// NewSessionOptions builds ONNX Runtime session options for c. The runtime
// environment must already be initialized. The caller owns the returned
// options and must Destroy them.
func NewSessionOptions(c Config) (*ort.SessionOptions, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	backend, _ := ParseBackend(string(c.Backend))
	level, _ := graphOptimizationLevel(c.GraphOptimizationLevel)
	mode, _ := executionMode(c.ExecutionMode)

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := applyTuning(options, c, level, mode); err != nil {
		options.Destroy()
		return nil, err
	}

	switch backend {
	case CUDAProviderBackend:
		err = appendCUDA(options, c.CUDA)
	case CoreMLProviderBackend:
		err = options.AppendExecutionProviderCoreML(c.CoreML.Flags())
		err = errors.Wrap(err, "error enabling CoreML")
	case OpenVINOProviderBackend:
		err = options.AppendExecutionProviderOpenVINO(c.OpenVINO.ProviderOptions())
		err = errors.Wrap(err, "error enabling OpenVINO")
	}
	if err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func applyTuning(options *ort.SessionOptions, c Config, level ort.GraphOptimizationLevel, mode ort.ExecutionMode) error {
	if err := options.SetIntraOpNumThreads(c.IntraOpNumThreads); err != nil {
		return errors.Wrap(err, "setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(c.InterOpNumThreads); err != nil {
		return errors.Wrap(err, "setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return errors.Wrap(err, "setting graph optimization level")
	}
	if err := options.SetExecutionMode(mode); err != nil {
		return errors.Wrap(err, "setting execution mode")
	}
	return nil
}

func appendCUDA(options *ort.SessionOptions, o CUDAOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return errors.Wrap(err, "error creating CUDA options")
	}
	defer cuda.Destroy()

	if err := cuda.Update(o.ProviderOptions()); err != nil {
		return errors.Wrap(err, "error converting CUDA options")
	}
	return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "error enabling CUDA")
}
