// Package barcode renders compressed signaling strings as scannable QR
// rasters and decodes scanned rasters back to text. It is purely an optional
// carrier for the codec's output — the paste path uses the same strings.
package barcode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/liyue201/goqr"
	qrcode "github.com/skip2/go-qrcode"
)

// MinDimension is the smallest output raster edge in pixels. Anything
// smaller is unreliable to scan with a phone camera at arm's length.
const MinDimension = 256

// Render draws text as a QR code, moduleScale pixels per module. It never
// fails: any encode error (text over QR capacity, for one) yields a visibly
// distinct placeholder raster instead, so an operator can tell that
// rendering failed rather than scanning a wrong image.
func Render(text string, moduleScale int) image.Image {
	if moduleScale < 1 {
		moduleScale = 1
	}

	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return placeholder(MinDimension)
	}

	// Bitmap includes the 4-module quiet zone on each side, so sizing off it
	// preserves the margin at any scale.
	dim := len(qr.Bitmap()) * moduleScale
	if dim < MinDimension {
		dim = MinDimension
	}
	return qr.Image(dim)
}

// Decode recognizes a QR code in img and returns its text payload.
func Decode(img image.Image) (string, error) {
	codes, err := goqr.Recognize(img)
	if err != nil {
		return "", fmt.Errorf("recognize QR: %w", err)
	}
	if len(codes) == 0 {
		return "", fmt.Errorf("no QR code found in image")
	}
	return string(codes[0].Payload), nil
}

// placeholder returns the failure raster: a white square crossed by two red
// diagonals. No valid QR code looks like this.
func placeholder(dim int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, dim, dim))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	red := color.RGBA{R: 0xCC, A: 0xFF}
	const thickness = 6
	for x := 0; x < dim; x++ {
		for t := -thickness / 2; t <= thickness/2; t++ {
			if y := x + t; y >= 0 && y < dim {
				img.Set(x, y, red)
			}
			if y := dim - 1 - x + t; y >= 0 && y < dim {
				img.Set(x, y, red)
			}
		}
	}
	return img
}
