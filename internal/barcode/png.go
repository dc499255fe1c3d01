package barcode

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// WritePNG writes img to path. Used by the CLI to hand the QR raster to
// whatever image viewer the user points a camera at.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}
	return nil
}

// ReadPNG loads a PNG raster from path, typically a saved camera frame or a
// screenshot of the remote party's QR code.
func ReadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode PNG: %w", err)
	}
	return img, nil
}
