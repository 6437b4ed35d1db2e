package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	// Register decoders.
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// Decode decodes a png, jpeg or webp image and reports its format name.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("failed to decode image: empty bounds")
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
