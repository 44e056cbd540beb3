// Package inference - Inference sessions.
package inference

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/nvr-ai/go-tables/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var envMu sync.Mutex

// initEnvironment loads the onnxruntime shared library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// SessionArgs represents the arguments for creating a new Session.
type SessionArgs struct {
	// ModelPath is the ONNX model file.
	ModelPath string
	// Inputs must all exist in the model.
	Inputs []string
	// OptionalInputs are used only when the model declares them.
	OptionalInputs []string
	// Outputs are returned by Run in this order.
	Outputs []string
	// Provider selects the execution provider and session tuning.
	Provider providers.Config
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Session is an Engine backed by an ONNX Runtime dynamic session, so input
// shapes may change from call to call.
type Session struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
	logger  *zap.Logger

	mu             sync.Mutex
	inferenceCount int64
	totalTime      time.Duration
}

var _ Engine = (*Session)(nil)

// NewSession loads the model and binds it to the configured execution provider.
//
// Order of operations:
//  1. Environment setup, once per process.
//  2. Model I/O inspection to resolve optional inputs and check names.
//  3. Session options (threads, optimization level, execution provider).
//  4. Session creation.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session, to be released with Close.
//   - error: An error if the session creation fails.
func NewSession(args SessionArgs) (*Session, error) {
	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if args.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model not found")
	}

	libPath := providers.SharedLibPath(args.Provider.LibraryPath)
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, err := resolveNames(args)
	if err != nil {
		return nil, err
	}

	options, err := providers.NewSessionOptions(args.Provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(args.ModelPath, inputs, args.Outputs, options)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	logger.Info("onnx session created",
		zap.String("model", args.ModelPath),
		zap.String("library", libPath),
		zap.String("backend", string(args.Provider.Backend)),
		zap.Strings("inputs", inputs),
		zap.Strings("outputs", args.Outputs),
	)

	return &Session{
		session: session,
		inputs:  inputs,
		outputs: slices.Clone(args.Outputs),
		logger:  logger,
	}, nil
}

func resolveNames(args SessionArgs) ([]string, error) {
	modelInputs, modelOutputs, err := ort.GetInputOutputInfo(args.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading model inputs and outputs")
	}
	declared := func(infos []ort.InputOutputInfo, name string) bool {
		return slices.ContainsFunc(infos, func(i ort.InputOutputInfo) bool { return i.Name == name })
	}

	inputs := slices.Clone(args.Inputs)
	for _, name := range inputs {
		if !declared(modelInputs, name) {
			return nil, fmt.Errorf("model has no input named %q", name)
		}
	}
	for _, name := range args.OptionalInputs {
		if declared(modelInputs, name) {
			inputs = append(inputs, name)
		}
	}
	for _, name := range args.Outputs {
		if !declared(modelOutputs, name) {
			return nil, fmt.Errorf("model has no output named %q", name)
		}
	}
	return inputs, nil
}

// InputNames lists the bound inputs.
func (s *Session) InputNames() []string {
	return slices.Clone(s.inputs)
}

// OutputNames lists the bound outputs.
func (s *Session) OutputNames() []string {
	return slices.Clone(s.outputs)
}

// Run executes one forward pass. Inputs not bound to the session are ignored.
//
// Arguments:
//   - ctx: Checked before the native call; a running pass is not interrupted.
//   - inputs: Tensors addressed by name.
//
// Returns:
//   - []Tensor: Copies of the outputs, in OutputNames order.
//   - error: Execution error if any
func (s *Session) Run(ctx context.Context, inputs []Tensor) ([]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	values := make([]ort.Value, 0, len(s.inputs))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()
	for _, name := range s.inputs {
		t, err := Find(inputs, name)
		if err != nil {
			return nil, errors.Wrap(err, "missing model input")
		}
		v, err := toValue(t)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	// Nil outputs are allocated by the runtime to fit the dynamic shapes.
	outputs := make([]ort.Value, len(s.outputs))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	start := time.Now()
	if err := s.session.Run(values, outputs); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}
	elapsed := time.Since(start)
	s.inferenceCount++
	s.totalTime += elapsed

	result := make([]Tensor, len(outputs))
	for i, v := range outputs {
		t, err := fromValue(s.outputs[i], v)
		if err != nil {
			return nil, err
		}
		result[i] = t
	}

	s.logger.Debug("inference complete", zap.Duration("elapsed", elapsed))
	return result, nil
}

// Stats returns usage counters since creation.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		InferenceCount: s.inferenceCount,
		TotalTimeMs:    float64(s.totalTime.Microseconds()) / 1000,
	}
	if s.inferenceCount > 0 {
		st.AverageTimeMs = st.TotalTimeMs / float64(s.inferenceCount)
	}
	return st
}

// Close releases the native session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

func toValue(t Tensor) (ort.Value, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	shape := ort.NewShape(t.Shape...)
	if t.Float32 != nil {
		v, err := ort.NewTensor(shape, t.Float32)
		return v, errors.Wrapf(err, "creating input tensor %q", t.Name)
	}
	v, err := ort.NewTensor(shape, t.Int64)
	return v, errors.Wrapf(err, "creating input tensor %q", t.Name)
}

func fromValue(name string, v ort.Value) (Tensor, error) {
	switch tv := v.(type) {
	case *ort.Tensor[float32]:
		return NewFloat32Tensor(name, slices.Clone([]int64(tv.GetShape())), slices.Clone(tv.GetData())), nil
	case *ort.Tensor[int64]:
		return NewInt64Tensor(name, slices.Clone([]int64(tv.GetShape())), slices.Clone(tv.GetData())), nil
	default:
		return Tensor{}, fmt.Errorf("output %q has unsupported type %T", name, v)
	}
}
