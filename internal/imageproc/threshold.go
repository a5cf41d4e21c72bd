package imageproc

import "image"

// Histogram counts pixel intensities
func Histogram(src *image.Gray) (hist [256]int, total int) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, y) : src.PixOffset(b.Min.X, y)+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist, b.Dx() * b.Dy()
}

// BlackRatio is the fraction of pixels equal to 0
func BlackRatio(src *image.Gray) float64 {
	hist, total := Histogram(src)
	if total == 0 {
		return 0
	}
	return float64(hist[0]) / float64(total)
}

// Mean is the average intensity of src
func Mean(src *image.Gray) float64 {
	hist, total := Histogram(src)
	if total == 0 {
		return 0
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}
	return sum / float64(total)
}
