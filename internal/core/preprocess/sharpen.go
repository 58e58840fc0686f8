package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// sharpenKernel is the classic 3x3 sharpen filter; it is normalized by its sum (16)
var sharpenKernel = [9]float64{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// UnsharpMask boosts local contrast by percent wherever a pixel differs from
// its Gaussian-blurred neighbourhood by at least threshold levels.
func UnsharpMask(src *image.Gray, radius float64, percent, threshold int) *image.Gray {
	b := src.Bounds()
	blurred := imaging.Blur(src, radius)
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			orig := int(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			diff := orig - int(blurred.NRGBAAt(x, y).R)
			v := orig
			if abs(diff) >= threshold {
				v = orig + diff*percent/100
			}
			dst.SetGray(x, y, color.Gray{Y: clamp8(v)})
		}
	}
	return dst
}

// Sharpen applies the fixed sharpen kernel
func Sharpen(src *image.Gray) *image.Gray {
	out := imaging.Convolve3x3(src, sharpenKernel, &imaging.ConvolveOptions{Normalize: true})
	return grayFromNRGBA(out)
}

func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetGray(x, y, color.Gray{Y: src.NRGBAAt(b.Min.X+x, b.Min.Y+y).R})
		}
	}
	return dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp8(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
