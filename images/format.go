package images

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// MIME types accepted by the validator.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

var acceptedMIME = map[string]ImageFormat{
	MIMEJPEG: FormatJPEG,
	MIMEPNG:  FormatPNG,
}

// UnsupportedFormatError is returned when neither the binary signature nor the
// file name of an input maps to an accepted image type.
type UnsupportedFormatError struct {
	// Name is the path or URL path that was checked.
	Name string
	// Signature is the MIME type sniffed from the leading bytes, empty if unreadable.
	Signature string
	// Extension is the MIME type guessed from the name, empty if unknown.
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("Unsupported file format: %s (signature=%q, extension=%q)",
		e.Name, e.Signature, e.Extension)
}

// FormatGuess holds the two independent type guesses for an input.
type FormatGuess struct {
	// Signature is the MIME type derived from magic bytes.
	Signature string
	// Extension is the MIME type derived from the file name.
	Extension string
}

// Format returns the accepted format the guess resolves to. The signature
// wins when both are accepted and disagree.
func (g FormatGuess) Format() (ImageFormat, bool) {
	if f, ok := acceptedMIME[g.Signature]; ok {
		return f, true
	}
	if f, ok := acceptedMIME[g.Extension]; ok {
		return f, true
	}
	return "", false
}

// Accepted reports whether either guess is in the accepted set.
//
// The two checks are OR'ed: a ".gif" named file with JPEG bytes passes, and so
// does a ".jpg" named file with GIF bytes. Only when both disagree with the
// accepted set is the input rejected.
func (g FormatGuess) Accepted() bool {
	_, ok := g.Format()
	return ok
}

// GuessFile sniffs the file at path and guesses a type from its extension.
// A file that cannot be read yields an empty signature guess.
func GuessFile(path string) FormatGuess {
	guess := FormatGuess{Extension: mimeFromName(path)}
	if m, err := mimetype.DetectFile(path); err == nil {
		guess.Signature = baseMIME(m.String())
	}
	return guess
}

// GuessBytes sniffs data and guesses a type from name.
func GuessBytes(name string, data []byte) FormatGuess {
	guess := FormatGuess{Extension: mimeFromName(name)}
	if len(data) > 0 {
		guess.Signature = baseMIME(mimetype.Detect(data).String())
	}
	return guess
}

// ValidateFile checks that path is a JPEG or PNG by signature or by name.
//
// Arguments:
//   - path: Local file path.
//
// Returns:
//   - FormatGuess: Both guesses, useful for logging.
//   - error: *UnsupportedFormatError if neither guess is accepted.
func ValidateFile(path string) (FormatGuess, error) {
	guess := GuessFile(path)
	if !guess.Accepted() {
		return guess, &UnsupportedFormatError{
			Name:      path,
			Signature: guess.Signature,
			Extension: guess.Extension,
		}
	}
	return guess, nil
}

// ValidateBytes applies the ValidateFile acceptance rule to an in-memory buffer.
// name is used only for the extension guess.
func ValidateBytes(name string, data []byte) (FormatGuess, error) {
	guess := GuessBytes(name, data)
	if !guess.Accepted() {
		return guess, &UnsupportedFormatError{
			Name:      name,
			Signature: guess.Signature,
			Extension: guess.Extension,
		}
	}
	return guess, nil
}

func mimeFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	return baseMIME(mime.TypeByExtension(ext))
}

// baseMIME strips parameters such as "; charset=utf-8".
func baseMIME(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(strings.ToLower(t))
}
