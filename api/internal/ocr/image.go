package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	// декодеры, которые умеет image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnidentifiedImage is returned when the payload is not a decodable image.
var ErrUnidentifiedImage = errors.New("cannot identify image file")

// ErrImageTooLarge is returned when the declared dimensions exceed MaxPixels.
var ErrImageTooLarge = errors.New("image too large")

// MaxPixels caps width*height of any image the service decodes.
const MaxPixels = 18_000_000

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes. Decode failures,
// empty input included, are reported as ErrUnidentifiedImage. The header is
// read first and images above MaxPixels fail with ErrImageTooLarge before any
// pixel buffer is allocated.
func DecodeImage(b []byte) (image.Image, string, error) {
	if len(b) == 0 {
		return nil, "", ErrUnidentifiedImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, "", errors.Join(ErrUnidentifiedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", ErrUnidentifiedImage
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", errors.Join(ErrUnidentifiedImage, err)
	}
	if r := img.Bounds(); r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, "", ErrUnidentifiedImage
	}
	return img, format, nil
}

// Grayscale converts any colour mode to 8-bit luminance. Alpha is dropped, not
// composited, and luma uses the ITU-R 601-2 weights.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := img.(*image.Gray); ok {
		draw.Draw(dst, dst.Bounds(), g, b.Min, draw.Src)
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * dst.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			l := (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B) + 500) / 1000
			dst.Pix[row+(x-b.Min.X)] = uint8(l)
		}
	}
	return dst
}
