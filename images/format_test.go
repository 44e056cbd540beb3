package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 90, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, sampleImage(), nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, sampleImage()))
	return buf.Bytes()
}

func encodeGIF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, sampleImage(), nil))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestValidateFile_ORSemantics(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		data     func(t *testing.T) []byte
		accepted bool
	}{
		{name: "jpeg bytes jpg name", file: "page.jpg", data: encodeJPEG, accepted: true},
		{name: "png bytes png name", file: "page.png", data: encodePNG, accepted: true},
		{name: "uppercase extension", file: "PAGE.JPEG", data: encodeJPEG, accepted: true},
		{name: "jpeg bytes gif name", file: "page.gif", data: encodeJPEG, accepted: true},
		{name: "gif bytes jpg name", file: "page.jpg", data: encodeGIF, accepted: true},
		{name: "png bytes no extension", file: "page", data: encodePNG, accepted: true},
		{name: "gif bytes gif name", file: "page.gif", data: encodeGIF, accepted: false},
		{name: "text bytes txt name", file: "notes.txt", data: func(*testing.T) []byte { return []byte("hello") }, accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.data(t))

			guess, err := ValidateFile(path)
			if tt.accepted {
				require.NoError(t, err)
				assert.True(t, guess.Accepted())
				return
			}

			require.Error(t, err)
			var ufe *UnsupportedFormatError
			require.True(t, errors.As(err, &ufe))
			assert.Equal(t, path, ufe.Name)
			assert.Contains(t, strings.ToLower(err.Error()), "unsupported file format")
		})
	}
}

func TestValidateFile_Signatures(t *testing.T) {
	guess, err := ValidateFile(writeFile(t, "scan.gif", encodeGIF(t)))
	require.Error(t, err)
	assert.Equal(t, "image/gif", guess.Signature)
	assert.Equal(t, "image/gif", guess.Extension)

	guess, err = ValidateFile(writeFile(t, "scan.gif", encodePNG(t)))
	require.NoError(t, err)
	format, ok := guess.Format()
	require.True(t, ok)
	assert.Equal(t, FormatPNG, format)
}

func TestValidateFile_Unreadable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.png")

	// The extension alone passes; opening is the loader's problem.
	guess, err := ValidateFile(missing)
	require.NoError(t, err)
	assert.Empty(t, guess.Signature)
	assert.Equal(t, MIMEPNG, guess.Extension)

	_, err = ValidateFile(filepath.Join(t.TempDir(), "missing.bmp"))
	var ufe *UnsupportedFormatError
	assert.True(t, errors.As(err, &ufe))
}

func TestValidateBytes(t *testing.T) {
	_, err := ValidateBytes("/images/doc.png", encodeJPEG(t))
	assert.NoError(t, err)

	_, err = ValidateBytes("/images/doc", encodeGIF(t))
	var ufe *UnsupportedFormatError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, "image/gif", ufe.Signature)
	assert.Empty(t, ufe.Extension)

	_, err = ValidateBytes("/images/doc.gif", nil)
	assert.Error(t, err)
}
