package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// ContrastScale maps every pixel to saturate(|p*alpha + beta|)
func ContrastScale(src *image.Gray, alpha, beta float64) *image.Gray {
	var lut [256]uint8
	for i := range lut {
		lut[i] = saturate(math.Abs(float64(i)*alpha + beta))
	}
	return toGray(imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		v := lut[c.R]
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	}))
}

// GaussianBlur smooths src with a ksize x ksize Gaussian. Size 3 uses the
// exact binomial kernel; larger odd sizes derive sigma the way OpenCV does.
func GaussianBlur(src *image.Gray, ksize int) *image.Gray {
	if ksize <= 1 {
		return cloneGray(src)
	}
	if ksize == 3 {
		kernel := [9]float64{
			1, 2, 1,
			2, 4, 2,
			1, 2, 1,
		}
		return toGray(imaging.Convolve3x3(src, kernel, &imaging.ConvolveOptions{Normalize: true}))
	}
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	return toGray(imaging.Blur(src, sigma))
}

// Invert returns the photographic negative of src
func Invert(src *image.Gray) *image.Gray {
	return toGray(imaging.Invert(src))
}

func saturate(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
