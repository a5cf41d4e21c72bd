// Package imageproc holds the pixel-buffer primitives used by the OCR
// preprocessors. Every function treats its input as immutable and returns a
// freshly allocated image.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"

	// Decoders registered for image.Decode (imaging registers jpeg/png/gif/bmp/tiff)
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"

	apperrors "github.com/Kuronne/Japanese-OCR-Interpreter/internal/errors"
)

// Decode reads an image file with its pixels as stored. EXIF orientation is
// not applied: engines reading the path see the stored layout, and every
// in-memory pass has to see the same one.
func Decode(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewInvalidImageError(path, nil)
		}
		return nil, apperrors.NewInvalidImageError(path, err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, apperrors.NewInvalidImageError(path, err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory encoded image, ignoring EXIF orientation
// like Decode
func DecodeBytes(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("<buffer>", err)
	}
	return img, nil
}

// EncodePNG encodes img losslessly so engines receive the exact pixels
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Grayscale converts img to 8-bit luma (0.299R + 0.587G + 0.114B)
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return cloneGray(g)
	}
	return toGray(imaging.Grayscale(img))
}

// toGray copies the red channel of an already-gray NRGBA image
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x := range dstRow {
			dstRow[x] = srcRow[x*4]
		}
	}
	return dst
}

func cloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
