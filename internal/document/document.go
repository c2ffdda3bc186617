// Package document is the in-memory model of a layer document: print
// properties, thumbnails, per-layer parameters and optional g-code, plus the
// codecs that read and write it.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"layerkit/internal/progress"
	"layerkit/internal/util"
)

// Errors returned by Open and SaveAs.
var (
	ErrUnknownFormat   = errors.New("unknown file format")
	ErrInvalidDocument = errors.New("invalid file")
)

// Layer holds the print parameters of one layer. Values are copied around
// whole, so replacing a layer is a single assignment.
type Layer struct {
	PositionZ    float64 `yaml:"position_z" json:"position_z"`
	ExposureTime float64 `yaml:"exposure_time" json:"exposure_time"`
	LiftHeight   float64 `yaml:"lift_height" json:"lift_height"`
	LiftSpeed    float64 `yaml:"lift_speed" json:"lift_speed"`
	RetractSpeed float64 `yaml:"retract_speed" json:"retract_speed"`
	LightPWM     uint8   `yaml:"light_pwm" json:"light_pwm"`
	PixelCount   uint32  `yaml:"pixel_count" json:"pixel_count"`
}

// WithParametersFrom returns l with the exposure, lift, retract and PWM values
// of src. Position and pixel data are kept.
func (l Layer) WithParametersFrom(src Layer) Layer {
	l.ExposureTime = src.ExposureTime
	l.LiftHeight = src.LiftHeight
	l.LiftSpeed = src.LiftSpeed
	l.RetractSpeed = src.RetractSpeed
	l.LightPWM = src.LightPWM
	return l
}

// Document is an opened layer document.
type Document struct {
	Path     string
	Filename string
	Format   *Format

	Properties Properties
	Thumbnails []Thumbnail
	Layers     []Layer
	GCode      string
}

// LayerCount returns the number of layers.
func (d *Document) LayerCount() uint32 {
	return uint32(len(d.Layers))
}

// Layer returns a copy of layer i.
func (d *Document) Layer(i uint32) Layer {
	return d.Layers[i]
}

// SetLayer replaces layer i.
func (d *Document) SetLayer(i uint32, l Layer) {
	d.Layers[i] = l
}

// IsBottomLayer reports whether layer i is one of the bottom layers.
func (d *Document) IsBottomLayer(i uint32) bool {
	return i < d.Properties.BottomLayerCount
}

// Open decodes the document at path. The format is chosen from the
// extension; decoding reports per-layer progress on t.
func Open(ctx context.Context, path string, t *progress.Tracker) (*Document, error) {
	name := filepath.Base(path)
	f := FindFormat(path)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, name, err)
	}

	doc := &Document{Path: path, Filename: name, Format: f}
	if err := f.decode(ctx, data, doc, orNew(t)); err != nil {
		if errors.Is(err, progress.ErrCanceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, name, err)
	}
	if err := doc.check(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, name, err)
	}
	return doc, nil
}

// SaveAs encodes the document and writes it atomically. An empty path saves
// over the document's own file. The output format follows the target
// extension, so saving under another extension converts.
func (d *Document) SaveAs(ctx context.Context, path string, t *progress.Tracker) error {
	if path == "" {
		path = d.Path
	}
	f := FindFormat(path)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
	}
	data, err := f.encode(ctx, d, orNew(t))
	if err != nil {
		return err
	}
	if err := util.AtomicWrite(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	d.Path = path
	d.Filename = filepath.Base(path)
	d.Format = f
	return nil
}

// Clone returns a deep copy. Tests and compare use it to keep a pristine
// version around.
func (d *Document) Clone() *Document {
	c := *d
	c.Layers = append([]Layer(nil), d.Layers...)
	c.Thumbnails = append([]Thumbnail(nil), d.Thumbnails...)
	return &c
}

func (d *Document) check() error {
	if d.Properties.BottomLayerCount > d.LayerCount() {
		return fmt.Errorf("bottom_layer_count %d exceeds layer count %d", d.Properties.BottomLayerCount, d.LayerCount())
	}
	for i, th := range d.Thumbnails {
		if th.Data == "" {
			return fmt.Errorf("thumbnail %d has no data", i)
		}
	}
	return nil
}

func orNew(t *progress.Tracker) *progress.Tracker {
	if t == nil {
		return progress.NewTracker()
	}
	return t
}
