// Package testutil builds fixture documents for package tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"layerkit/internal/document"
)

// NewDocument returns an in-memory document with n evenly spaced layers,
// 0.05mm apart, the first two being bottom layers.
func NewDocument(n int) *document.Document {
	doc := &document.Document{
		Path:     "cube.layers.yaml",
		Filename: "cube.layers.yaml",
		Format:   document.FindFormat("cube.layers.yaml"),
		Properties: document.Properties{
			MachineName:        "Elegoo Mars 3",
			ResolutionX:        4098,
			ResolutionY:        2560,
			DisplayWidth:       143.43,
			DisplayHeight:      89.6,
			MachineZ:           175,
			LayerHeight:        0.05,
			BottomLayerCount:   2,
			BottomExposureTime: 30,
			ExposureTime:       2.5,
			BottomLiftHeight:   7,
			LiftHeight:         5,
			LiftSpeed:          60,
			RetractSpeed:       150,
			BottomLightPWM:     255,
			LightPWM:           200,
		},
		Layers: make([]document.Layer, n),
	}
	if n < 2 {
		doc.Properties.BottomLayerCount = uint32(n)
	}
	for i := range doc.Layers {
		exp := 2.5
		if i < 2 {
			exp = 30
		}
		doc.Layers[i] = document.Layer{
			PositionZ:    0.05 * float64(i+1),
			ExposureTime: exp,
			LiftHeight:   5,
			LiftSpeed:    60,
			RetractSpeed: 150,
			LightPWM:     200,
			PixelCount:   1000 + uint32(i),
		}
	}
	return doc
}

// PNG returns a w x h solid PNG image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WriteDocument saves doc as dir/name and returns the path.
func WriteDocument(t testing.TB, dir, name string, doc *document.Document) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, doc.SaveAs(context.Background(), path, nil))
	return path
}
