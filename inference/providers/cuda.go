package providers

import "strconv"

// CUDAOptions contains arguments for the CUDA provider. Zero values are left
// to the runtime defaults.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// The size limit of the device memory arena in bytes.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit"`
	// The strategy for extending the device memory arena, "kNextPowerOfTwo" or "kSameAsRequested".
	ArenaExtendStrategy string `json:"arena_extend_strategy" yaml:"arena_extend_strategy"`
	// The type of search done for cuDNN convolution algorithms: "EXHAUSTIVE", "HEURISTIC" or "DEFAULT".
	CudnnConvAlgoSearch string `json:"cudnn_conv_algo_search" yaml:"cudnn_conv_algo_search"`
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream *bool `json:"do_copy_in_default_stream" yaml:"do_copy_in_default_stream"`
	// TF32 math on Ampere and later.
	UseTF32 *bool `json:"use_tf32" yaml:"use_tf32"`
	// Prefer NHWC operators over NCHW.
	PreferNHWC bool `json:"prefer_nhwc" yaml:"prefer_nhwc"`
}

// ProviderOptions converts the options to the key/value form the runtime accepts.
func (o CUDAOptions) ProviderOptions() map[string]string {
	m := map[string]string{
		"device_id": strconv.Itoa(o.DeviceID),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	if o.ArenaExtendStrategy != "" {
		m["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		m["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	if o.DoCopyInDefaultStream != nil {
		m["do_copy_in_default_stream"] = boolFlag(*o.DoCopyInDefaultStream)
	}
	if o.UseTF32 != nil {
		m["use_tf32"] = boolFlag(*o.UseTF32)
	}
	if o.PreferNHWC {
		m["prefer_nhwc"] = "1"
	}
	return m
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
