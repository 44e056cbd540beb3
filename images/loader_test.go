package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertOpaqueRGB(t *testing.T, img image.Image) *image.NRGBA {
	t.Helper()
	nrgba, ok := img.(*image.NRGBA)
	require.True(t, ok, "expected *image.NRGBA, got %T", img)
	for i := 3; i < len(nrgba.Pix); i += 4 {
		require.Equal(t, uint8(0xff), nrgba.Pix[i])
	}
	return nrgba
}

func TestLoader_LoadLocal(t *testing.T) {
	loader := NewLoader(LoaderOptions{})

	img, err := loader.Load(context.Background(), writeFile(t, "page.png", encodePNG(t)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	assertOpaqueRGB(t, img)

	img, err = loader.Load(context.Background(), writeFile(t, "page.jpg", encodeJPEG(t)))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assertOpaqueRGB(t, img)

	// GIF bytes behind a .jpg name pass validation, so they must decode too.
	img, err = loader.Load(context.Background(), writeFile(t, "page.jpg", encodeGIF(t)))
	require.NoError(t, err)
	assertOpaqueRGB(t, img)
}

func TestLoader_Normalization(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	gray.SetGray(1, 1, color.Gray{Y: 200})

	out := ToRGB(gray)
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 255}, out.NRGBAAt(1, 1))

	paletted := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{
		color.RGBA{R: 10, G: 20, B: 30, A: 255},
		color.RGBA{R: 250, G: 0, B: 0, A: 255},
	})
	paletted.SetColorIndex(1, 0, 1)
	out = ToRGB(paletted)
	assert.Equal(t, color.NRGBA{R: 250, A: 255}, out.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, out.NRGBAAt(0, 0))

	// Alpha is discarded, the stored color survives.
	alpha := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	alpha.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 128, B: 255, A: 64})
	out = ToRGB(alpha)
	assert.Equal(t, color.NRGBA{R: 0, G: 128, B: 255, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, uint8(64), alpha.NRGBAAt(0, 0).A, "source must not be modified")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, alpha))
	img, err := Decode("alpha.png", buf.Bytes())
	require.NoError(t, err)
	assertOpaqueRGB(t, img)
}

func TestLoader_Errors(t *testing.T) {
	loader := NewLoader(LoaderOptions{})
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
	}{
		{name: "missing file", ref: filepath.Join(t.TempDir(), "nope.png")},
		{name: "empty file", ref: writeFile(t, "empty.png", nil)},
		{name: "undecodable bytes", ref: writeFile(t, "junk.png", []byte("definitely not an image"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(ctx, tt.ref)
			require.Error(t, err)
			var loadErr *ImageLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.ref, loadErr.Reference)
			assert.Contains(t, err.Error(), "Error loading image")
		})
	}
}

func TestLoader_Remote(t *testing.T) {
	pngData := encodePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "tables-test" {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/doc.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngData)
		case "/empty.png":
			w.WriteHeader(http.StatusOK)
		case "/slow.png":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write(pngData)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	loader := NewLoader(LoaderOptions{Timeout: 5 * time.Second, UserAgent: "tables-test"})
	ctx := context.Background()

	t.Run("fetch returns url path as name", func(t *testing.T) {
		data, name, err := loader.Fetch(ctx, srv.URL+"/doc.png?x=1")
		require.NoError(t, err)
		assert.Equal(t, "/doc.png", name)
		assert.Equal(t, pngData, data)
	})

	t.Run("load decodes", func(t *testing.T) {
		img, err := loader.Load(ctx, srv.URL+"/doc.png")
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	})

	for _, path := range []string{"/missing.png", "/empty.png"} {
		t.Run("failure "+path, func(t *testing.T) {
			_, err := loader.Load(ctx, srv.URL+path)
			var loadErr *ImageLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, srv.URL+path, loadErr.Reference)
		})
	}

	t.Run("context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := loader.Load(cctx, srv.URL+"/slow.png")
		var loadErr *ImageLoadError
		require.True(t, errors.As(err, &loadErr))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("http://example.com/a.png"))
	assert.True(t, IsRemote("HTTPS://example.com/a.png"))
	assert.False(t, IsRemote("/tmp/a.png"))
	assert.False(t, IsRemote("ftp://example.com/a.png"))
}
