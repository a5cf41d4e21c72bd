package imageproc

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// toMat copies src into a single-channel OpenCV matrix. The caller closes it.
func toMat(src *image.Gray) (gocv.Mat, error) {
	mat, err := gocv.ImageGrayToMatGray(cloneGray(src))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image to mat: %w", err)
	}
	return mat, nil
}

func fromMat(mat gocv.Mat) (*image.Gray, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("opencv returned an empty mat")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat to image: %w", err)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	return Grayscale(img), nil
}

// otsu binarizes src at the level chosen by Otsu's method and reports it
func otsu(src *image.Gray) (*image.Gray, uint8, error) {
	mat, err := toMat(src)
	if err != nil {
		return nil, 0, err
	}
	defer mat.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	level := gocv.Threshold(mat, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	out, err := fromMat(binary)
	if err != nil {
		return nil, 0, err
	}
	return out, uint8(level), nil
}

// OtsuThreshold returns the level that maximises between-class variance.
// Pixels <= the level form the dark class.
func OtsuThreshold(src *image.Gray) (uint8, error) {
	_, level, err := otsu(src)
	return level, err
}

// BinarizeOtsu sets pixels above the Otsu level to 255 and the rest to 0
func BinarizeOtsu(src *image.Gray) (*image.Gray, error) {
	out, _, err := otsu(src)
	return out, err
}

// CLAHE performs contrast-limited adaptive histogram equalization over a
// tilesX x tilesY grid. The grid is shrunk for images smaller than it.
func CLAHE(src *image.Gray, tilesX, tilesY int, clipLimit float64) (*image.Gray, error) {
	b := src.Bounds()
	tilesX = clampInt(tilesX, 1, max(b.Dx(), 1))
	tilesY = clampInt(tilesY, 1, max(b.Dy(), 1))

	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	clahe := gocv.NewCLAHEWithParams(clipLimit, image.Pt(tilesX, tilesY))
	defer clahe.Close()

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(mat, &enhanced)

	return fromMat(enhanced)
}

// Denoise runs non-local means denoising with OpenCV's default strength
func Denoise(src *image.Gray) (*image.Gray, error) {
	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoising(mat, &denoised)

	return fromMat(denoised)
}

// UpscaleToMax enlarges src with bicubic interpolation so its larger side
// equals target, preserving aspect ratio. Images whose larger side already
// reaches target are returned as a copy.
func UpscaleToMax(src *image.Gray, target int) (*image.Gray, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if longest == 0 || longest >= target {
		return cloneGray(src), nil
	}

	scale := float64(target) / float64(longest)
	size := image.Pt(int(float64(w)*scale), int(float64(h)*scale))

	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(mat, &scaled, size, 0, 0, gocv.InterpolationCubic)

	return fromMat(scaled)
}
