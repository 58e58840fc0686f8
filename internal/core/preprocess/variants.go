// Package preprocess renders a page into the ordered set of variants that are
// fed to OCR. OpenCV operations go through gocv; the unsharp mask and sharpen
// filters are built on disintegration/imaging.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// Variant names in generation order
const (
	VariantGray     = "grayscale"
	VariantUpscaled = "upscaled"
	VariantDeskewed = "deskewed"
	VariantOtsu     = "otsu"
	VariantAdaptive = "adaptive"
	VariantDenoised = "denoised"
	VariantUnsharp  = "unsharp_mask"
	VariantSharpen  = "sharpen"
)

// Options tunes the generator. Zero values fall back to DefaultOptions.
type Options struct {
	MinHeight int
	MinWidth  int

	OtsuSeed float32

	AdaptiveBlockSize int
	AdaptiveC         float32

	DenoiseStrength float32
	TemplateWindow  int
	SearchWindow    int

	UnsharpRadius    float64
	UnsharpPercent   int
	UnsharpThreshold int
}

func DefaultOptions() Options {
	return Options{
		MinHeight:         1000,
		MinWidth:          700,
		OtsuSeed:          150,
		AdaptiveBlockSize: 31,
		AdaptiveC:         2,
		DenoiseStrength:   30,
		TemplateWindow:    7,
		SearchWindow:      21,
		UnsharpRadius:     2,
		UnsharpPercent:    150,
		UnsharpThreshold:  3,
	}
}

// Generator produces OCR variants of a page image
type Generator struct {
	opts Options
}

func New() *Generator {
	return &Generator{opts: DefaultOptions()}
}

func NewWithOptions(opts Options) *Generator {
	def := DefaultOptions()
	if opts.MinHeight <= 0 {
		opts.MinHeight = def.MinHeight
	}
	if opts.MinWidth <= 0 {
		opts.MinWidth = def.MinWidth
	}
	if opts.OtsuSeed <= 0 {
		opts.OtsuSeed = def.OtsuSeed
	}
	if opts.AdaptiveBlockSize <= 1 || opts.AdaptiveBlockSize%2 == 0 {
		opts.AdaptiveBlockSize = def.AdaptiveBlockSize
	}
	if opts.AdaptiveC == 0 {
		opts.AdaptiveC = def.AdaptiveC
	}
	if opts.DenoiseStrength <= 0 {
		opts.DenoiseStrength = def.DenoiseStrength
	}
	if opts.TemplateWindow <= 0 {
		opts.TemplateWindow = def.TemplateWindow
	}
	if opts.SearchWindow <= 0 {
		opts.SearchWindow = def.SearchWindow
	}
	if opts.UnsharpRadius <= 0 {
		opts.UnsharpRadius = def.UnsharpRadius
	}
	if opts.UnsharpPercent <= 0 {
		opts.UnsharpPercent = def.UnsharpPercent
	}
	if opts.UnsharpThreshold < 0 {
		opts.UnsharpThreshold = def.UnsharpThreshold
	}
	return &Generator{opts: opts}
}

// NeedsUpscale reports whether a page is below the minimum legible size
func (g *Generator) NeedsUpscale(width, height int) bool {
	return height < g.opts.MinHeight || width < g.opts.MinWidth
}

// Generate returns the variants of src. The first variant is always the
// plain grayscale conversion with the dimensions of src.
func (g *Generator) Generate(src image.Image) ([]marksheet.Variant, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, errors.New("preprocess: empty page image")
	}

	gray, err := toGrayMat(src)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	w, h := gray.Cols(), gray.Rows()
	variants := make([]marksheet.Variant, 0, 8)

	base, err := grayImage(gray)
	if err != nil {
		return nil, fmt.Errorf("preprocess: grayscale: %w", err)
	}
	variants = append(variants, marksheet.Variant{Name: VariantGray, Image: base})

	steps := []struct {
		name string
		skip bool
		run  func(dst *gocv.Mat) error
	}{
		{VariantUpscaled, !g.NeedsUpscale(w, h), func(dst *gocv.Mat) error {
			gocv.Resize(gray, dst, image.Pt(w*2, h*2), 0, 0, gocv.InterpolationCubic)
			return nil
		}},
		{VariantDeskewed, false, func(dst *gocv.Mat) error {
			return deskew(gray, dst)
		}},
		{VariantOtsu, false, func(dst *gocv.Mat) error {
			gocv.Threshold(gray, dst, g.opts.OtsuSeed, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
			return nil
		}},
		{VariantAdaptive, false, func(dst *gocv.Mat) error {
			gocv.AdaptiveThreshold(gray, dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary,
				g.opts.AdaptiveBlockSize, g.opts.AdaptiveC)
			return nil
		}},
		{VariantDenoised, false, func(dst *gocv.Mat) error {
			gocv.FastNlMeansDenoisingWithParams(gray, dst, g.opts.DenoiseStrength, g.opts.TemplateWindow, g.opts.SearchWindow)
			return nil
		}},
	}

	for _, step := range steps {
		if step.skip {
			continue
		}
		img, err := runStep(step.run)
		if err != nil {
			return nil, fmt.Errorf("preprocess: %s: %w", step.name, err)
		}
		variants = append(variants, marksheet.Variant{Name: step.name, Image: img})
	}

	variants = append(variants,
		marksheet.Variant{Name: VariantUnsharp, Image: UnsharpMask(base, g.opts.UnsharpRadius, g.opts.UnsharpPercent, g.opts.UnsharpThreshold)},
		marksheet.Variant{Name: VariantSharpen, Image: Sharpen(base)},
	)
	return variants, nil
}

// runStep renders one OpenCV step into a Go image and frees the native buffer
func runStep(run func(dst *gocv.Mat) error) (*image.Gray, error) {
	dst := gocv.NewMat()
	defer dst.Close()
	if err := run(&dst); err != nil {
		return nil, err
	}
	if dst.Empty() {
		return nil, errors.New("empty output")
	}
	return grayImage(dst)
}

func toGrayMat(src image.Image) (gocv.Mat, error) {
	if g, ok := src.(*image.Gray); ok {
		m, err := gocv.ImageGrayToMatGray(g)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("preprocess: load gray image: %w", err)
		}
		return m, nil
	}
	bgr, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("preprocess: load image: %w", err)
	}
	defer bgr.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

func grayImage(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, err
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return g, nil
}

// deskew levels the text block by rotating the page about its centre by the
// measured skew. Border pixels are replicated.
func deskew(gray gocv.Mat, dst *gocv.Mat) error {
	w, h := gray.Cols(), gray.Rows()
	rot := gocv.GetRotationMatrix2D(image.Pt(w/2, h/2), Skew(gray), 1.0)
	defer rot.Close()
	gocv.WarpAffineWithParams(gray, dst, rot, image.Pt(w, h), gocv.InterpolationCubic, gocv.BorderReplicate, color.RGBA{})
	return nil
}

// Skew returns the counter-clockwise rotation in degrees that levels the
// minimum-area rectangle around every non-white pixel of gray. A blank page
// has no skew.
func Skew(gray gocv.Mat) float64 {
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 254, 255, gocv.ThresholdBinaryInv)

	points := gocv.NewMat()
	defer points.Close()
	gocv.FindNonZero(mask, &points)
	if points.Empty() {
		return 0
	}

	pv := gocv.NewPointVectorFromMat(points)
	defer pv.Close()
	return DeskewAngle(gocv.MinAreaRect(pv).Angle)
}

// DeskewAngle maps a minAreaRect angle over (x, y) points to the correcting
// rotation in (-45, 45]. The rectangle's edges repeat every 90°, so the angle
// is reduced modulo 90 first; this covers both the [-90, 0) range of older
// OpenCV releases and the (0, 90] range of 4.5+. In image coordinates a
// positive angle is a clockwise tilt, which a counter-clockwise rotation of
// the same size undoes.
func DeskewAngle(angle float64) float64 {
	a := math.Mod(angle, 90)
	if a < 0 {
		a += 90
	}
	if a > 45 {
		a -= 90
	}
	return a
}
