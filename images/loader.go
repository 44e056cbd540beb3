package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF bytes may pass validation by name alone.
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageLoadError is returned when a reference cannot be fetched, opened or decoded.
type ImageLoadError struct {
	// Reference is the URL or path that failed.
	Reference string
	// Err is the underlying network, file or decode error.
	Err error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("Error loading image %s: %v", e.Reference, e.Err)
}

// Unwrap returns the underlying error.
func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether reference should be fetched over HTTP.
func IsRemote(reference string) bool {
	lower := strings.ToLower(reference)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Loader resolves image references into decoded RGB images.
type Loader struct {
	client    *http.Client
	userAgent string
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Timeout bounds a remote fetch. Zero means no timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// UserAgent is sent with remote fetches when non-empty.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
	// Client overrides the HTTP client (Timeout is then ignored).
	Client *http.Client `json:"-" yaml:"-"`
}

// NewLoader creates a Loader.
func NewLoader(opts LoaderOptions) *Loader {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Loader{client: client, userAgent: opts.UserAgent}
}

// Fetch returns the raw bytes behind reference along with the name used for
// extension-based type guessing (the path, or the URL path for remote references).
func (l *Loader) Fetch(ctx context.Context, reference string) ([]byte, string, error) {
	if !IsRemote(reference) {
		data, err := os.ReadFile(reference)
		if err != nil {
			return nil, reference, &ImageLoadError{Reference: reference, Err: err}
		}
		if len(data) == 0 {
			return nil, reference, &ImageLoadError{Reference: reference, Err: errors.New("file is empty")}
		}
		return data, reference, nil
	}

	name := reference
	if u, err := url.Parse(reference); err == nil {
		name = u.Path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return nil, name, &ImageLoadError{Reference: reference, Err: errors.Wrap(err, "building request")}
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, name, &ImageLoadError{Reference: reference, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, name, &ImageLoadError{
			Reference: reference,
			Err:       errors.Errorf("unexpected HTTP status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, name, &ImageLoadError{Reference: reference, Err: errors.Wrap(err, "reading body")}
	}
	if len(data) == 0 {
		return nil, name, &ImageLoadError{Reference: reference, Err: errors.New("response body is empty")}
	}
	return data, name, nil
}

// Load fetches and decodes reference into an RGB image.
//
// Arguments:
//   - ctx: Bounds a remote fetch.
//   - reference: An http(s) URL or a local file path.
//
// Returns:
//   - image.Image: An opaque *image.NRGBA with the source dimensions.
//   - error: *ImageLoadError on any fetch, open or decode failure.
func (l *Loader) Load(ctx context.Context, reference string) (image.Image, error) {
	data, _, err := l.Fetch(ctx, reference)
	if err != nil {
		return nil, err
	}
	return Decode(reference, data)
}

// Decode decodes data and normalizes it to RGB. reference is used in errors only.
func Decode(reference string, data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageLoadError{Reference: reference, Err: errors.Wrap(err, "decoding image")}
	}
	return ToRGB(img), nil
}

// ToRGB converts any decoded image (grayscale, paletted, with alpha) into an
// opaque NRGBA copy. Alpha is dropped rather than composited, so the color
// channels are kept as stored.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
