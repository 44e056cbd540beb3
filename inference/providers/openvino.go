package providers

import "strconv"

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (e.g. "CPU", "GPU", "NPU").
	DeviceType string `json:"device_type" yaml:"device_type"`
	// Precision is "FP32", "FP16" or "ACCURACY".
	Precision string `json:"precision" yaml:"precision"`
	// Overrides the accelerator default number of threads.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
	// Overrides the accelerator default streams.
	NumStreams int `json:"num_streams" yaml:"num_streams"`
	// Rewrites dynamic shaped models to static shape at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes"`
	// CacheDir stores compiled blobs between runs.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// ProviderOptions converts the options to the key/value form the runtime accepts.
func (o OpenVINOOptions) ProviderOptions() map[string]string {
	m := map[string]string{}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		m["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.DisableDynamicShapes {
		m["disable_dynamic_shapes"] = "true"
	}
	if o.CacheDir != "" {
		m["cache_dir"] = o.CacheDir
	}
	return m
}
