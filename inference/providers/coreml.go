package providers

// CoreML provider flags, mirroring coreml_provider_factory.h.
const (
	CoreMLFlagUseCPUOnly                 uint32 = 0x001
	CoreMLFlagEnableOnSubgraph           uint32 = 0x002
	CoreMLFlagOnlyEnableDeviceWithANE    uint32 = 0x004
	CoreMLFlagOnlyAllowStaticInputShapes uint32 = 0x008
	CoreMLFlagCreateMLProgram            uint32 = 0x010
	CoreMLFlagUseCPUAndGPU               uint32 = 0x020
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// ModelFormat is "NeuralNetwork" (default) or "MLProgram".
	ModelFormat string `json:"model_format" yaml:"model_format"`
	// MLComputeUnits is "ALL" (default), "CPUOnly", "CPUAndGPU" or "CPUAndNeuralEngine".
	MLComputeUnits string `json:"ml_compute_units" yaml:"ml_compute_units"`
	// RequireStaticInputShapes keeps dynamic-shaped nodes off CoreML. DETR
	// inputs vary with the page size, so this is usually left off.
	RequireStaticInputShapes bool `json:"require_static_input_shapes" yaml:"require_static_input_shapes"`
	// EnableOnSubgraphs lets CoreML run inside control flow operators.
	EnableOnSubgraphs bool `json:"enable_on_subgraphs" yaml:"enable_on_subgraphs"`
}

// Flags folds the options into the provider flag bitmask.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.ModelFormat == "MLProgram" {
		flags |= CoreMLFlagCreateMLProgram
	}
	switch o.MLComputeUnits {
	case "CPUOnly":
		flags |= CoreMLFlagUseCPUOnly
	case "CPUAndGPU":
		flags |= CoreMLFlagUseCPUAndGPU
	case "CPUAndNeuralEngine":
		flags |= CoreMLFlagOnlyEnableDeviceWithANE
	}
	if o.RequireStaticInputShapes {
		flags |= CoreMLFlagOnlyAllowStaticInputShapes
	}
	if o.EnableOnSubgraphs {
		flags |= CoreMLFlagEnableOnSubgraph
	}
	return flags
}
