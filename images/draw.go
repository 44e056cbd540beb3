package images

import (
	"fmt"
	"image"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// FontCandidate is a TrueType font file tried when building a Renderer.
type FontCandidate struct {
	Path string  `json:"path" yaml:"path"`
	Size float64 `json:"size" yaml:"size"`
}

// DefaultFontCandidates lists Arial in the usual system locations at 70pt.
func DefaultFontCandidates() []FontCandidate {
	paths := []string{
		"/usr/share/fonts/truetype/msttcorefonts/Arial.ttf",
		"/usr/share/fonts/truetype/msttcorefonts/arial.ttf",
		"/usr/share/fonts/TTF/arial.ttf",
		"/Library/Fonts/Arial.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		`C:\Windows\Fonts\arial.ttf`,
		"arial.ttf",
	}
	out := make([]FontCandidate, len(paths))
	for i, p := range paths {
		out[i] = FontCandidate{Path: p, Size: 70}
	}
	return out
}

// RendererOptions configures a Renderer.
type RendererOptions struct {
	// Fonts are tried in order; the first that parses wins.
	Fonts []FontCandidate `json:"fonts" yaml:"fonts"`
	// FallbackSize is the point size of the built-in Go Regular face.
	FallbackSize float64 `json:"fallback_size" yaml:"fallback_size"`
	// TextMargin is how far above the box the score text starts.
	TextMargin float64 `json:"text_margin" yaml:"text_margin"`
	// LineWidth is the rectangle stroke width.
	LineWidth float64 `json:"line_width" yaml:"line_width"`
	// BoxColor and TextColor are hex colors ("#rrggbb").
	BoxColor  string `json:"box_color" yaml:"box_color"`
	TextColor string `json:"text_color" yaml:"text_color"`
}

// DefaultRendererOptions returns red 2px boxes with blue score text 60px above.
func DefaultRendererOptions() RendererOptions {
	return RendererOptions{
		Fonts:        DefaultFontCandidates(),
		FallbackSize: 20,
		TextMargin:   60,
		LineWidth:    2,
		BoxColor:     "#ff0000",
		TextColor:    "#0000ff",
	}
}

// Annotation is one box to draw, in source pixel coordinates.
type Annotation struct {
	XMin, YMin, XMax, YMax float64
	Score                  float64
}

// Renderer draws detection boxes onto images.
type Renderer struct {
	opts     RendererOptions
	ttf      *truetype.Font
	fontSize float64
	fontPath string
}

var fallbackFont *truetype.Font

func init() {
	var err error
	fallbackFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// NewRenderer resolves the font once and returns a Renderer. It never fails
// for lack of fonts: the built-in face is used when no candidate loads.
func NewRenderer(opts RendererOptions) *Renderer {
	if opts.FallbackSize <= 0 {
		opts.FallbackSize = 20
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}
	if opts.BoxColor == "" {
		opts.BoxColor = "#ff0000"
	}
	if opts.TextColor == "" {
		opts.TextColor = "#0000ff"
	}

	r := &Renderer{opts: opts, ttf: fallbackFont, fontSize: opts.FallbackSize}
	for _, c := range opts.Fonts {
		f, err := loadFont(c.Path)
		if err != nil {
			continue
		}
		r.ttf = f
		r.fontSize = c.Size
		r.fontPath = c.Path
		break
	}
	return r
}

func loadFont(path string) (*truetype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing font %s", path)
	}
	return f, nil
}

// FontPath returns the loaded font file, or "" for the built-in face.
func (r *Renderer) FontPath() string {
	return r.fontPath
}

// FontSize returns the point size in use.
func (r *Renderer) FontSize() float64 {
	return r.fontSize
}

func (r *Renderer) face() font.Face {
	return truetype.NewFace(r.ttf, &truetype.Options{Size: r.fontSize})
}

// Draw returns a copy of img with an unfilled rectangle per annotation and,
// when showScores is set, the score formatted with two decimals above each box.
// img is not modified.
func (r *Renderer) Draw(img image.Image, boxes []Annotation, showScores bool) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(r.opts.LineWidth)

	for _, b := range boxes {
		dc.SetHexColor(r.opts.BoxColor)
		dc.DrawRectangle(b.XMin, b.YMin, b.XMax-b.XMin, b.YMax-b.YMin)
		dc.Stroke()
	}

	if showScores && len(boxes) > 0 {
		face := r.face()
		defer face.Close()
		dc.SetFontFace(face)
		dc.SetHexColor(r.opts.TextColor)
		for _, b := range boxes {
			// Anchor (0,1) puts the top-left corner of the text at (x, y).
			dc.DrawStringAnchored(fmt.Sprintf("%.2f", b.Score), b.XMin, b.YMin-r.opts.TextMargin, 0, 1)
		}
	}

	return dc.Image()
}
