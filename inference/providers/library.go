package providers

import (
	"os"
	"runtime"
)

// LibraryPathEnv overrides every other source for the shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// SharedLibPath returns the onnxruntime shared library to load.
//
// Arguments:
//   - configured: The path from configuration, may be empty.
//
// Returns:
//   - string: The environment override, else configured, else the platform default.
func SharedLibPath(configured string) string {
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p
	}
	if configured != "" {
		return configured
	}
	return DefaultSharedLibPath(runtime.GOOS, runtime.GOARCH)
}

// DefaultSharedLibPath returns the conventional library location for a platform.
func DefaultSharedLibPath(goos, goarch string) string {
	switch goos {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	}
	if goarch == "arm64" {
		return "./third_party/onnxruntime_arm64.so"
	}
	return "./third_party/onnxruntime.so"
}
