package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
)

// Thumbnail is an embedded preview image, stored base64-encoded.
type Thumbnail struct {
	Width  uint32 `yaml:"width" json:"width"`
	Height uint32 `yaml:"height" json:"height"`
	Format string `yaml:"format" json:"format"`
	Data   string `yaml:"data" json:"data"`
}

// NewThumbnail builds a thumbnail from raw PNG or JPEG bytes.
func NewThumbnail(raw []byte) (Thumbnail, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("decode image: %w", err)
	}
	return Thumbnail{
		Width:  uint32(cfg.Width),
		Height: uint32(cfg.Height),
		Format: format,
		Data:   base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// Bytes returns the decoded image bytes.
func (t Thumbnail) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(t.Data)
}

// Ext returns the file extension matching the image format.
func (t Thumbnail) Ext() string {
	switch t.Format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".bin"
	default:
		return "." + t.Format
	}
}

func (t Thumbnail) String() string {
	return fmt.Sprintf("%dx%d %s", t.Width, t.Height, t.Format)
}
