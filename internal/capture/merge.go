package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// MergeVertical stacks bottom under top on a white canvas. The result is as
// tall as both inputs together and as wide as the wider one.
func MergeVertical(top, bottom image.Image) *image.RGBA {
	tb, bb := top.Bounds(), bottom.Bounds()

	width := tb.Dx()
	if bb.Dx() > width {
		width = bb.Dx()
	}
	out := image.NewRGBA(image.Rect(0, 0, width, tb.Dy()+bb.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	draw.Draw(out, image.Rect(0, 0, tb.Dx(), tb.Dy()), top, tb.Min, draw.Over)
	draw.Draw(out, image.Rect(0, tb.Dy(), bb.Dx(), tb.Dy()+bb.Dy()), bottom, bb.Min, draw.Over)
	return out
}

// EncodePNG encodes a captured frame.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL renders data as a data: URL used for previews.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
