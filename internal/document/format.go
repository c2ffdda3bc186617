package document

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"layerkit/internal/progress"
)

// FormatVersion is written into every encoded document.
const FormatVersion = 1

// Format is a registered document encoding.
type Format struct {
	Name        string
	Description string
	Extensions  []string

	decode func(ctx context.Context, data []byte, doc *Document, t *progress.Tracker) error
	encode func(ctx context.Context, doc *Document, t *progress.Tracker) ([]byte, error)
}

// envelope is the on-disk layout. L is the per-format raw layer type, so the
// header decodes in one pass and layers decode one at a time.
type envelope[L any] struct {
	Version    int         `yaml:"version" json:"version"`
	Properties Properties  `yaml:"properties" json:"properties"`
	Thumbnails []Thumbnail `yaml:"thumbnails,omitempty" json:"thumbnails,omitempty"`
	GCode      string      `yaml:"gcode,omitempty" json:"gcode,omitempty"`
	Layers     []L         `yaml:"layers" json:"layers"`
}

type codec[L any] struct {
	unmarshal   func([]byte, any) error
	marshal     func(any) ([]byte, error)
	decodeLayer func(L, *Layer) error
	encodeLayer func(Layer) (L, error)
}

func (c codec[L]) decode(_ context.Context, data []byte, doc *Document, t *progress.Tracker) error {
	var env envelope[L]
	if err := c.unmarshal(data, &env); err != nil {
		return err
	}
	if env.Version != FormatVersion {
		return fmt.Errorf("unsupported version %d", env.Version)
	}
	doc.Properties = env.Properties
	doc.Thumbnails = env.Thumbnails
	doc.GCode = env.GCode
	doc.Layers = make([]Layer, len(env.Layers))

	t.Reset("Decoded layers", uint64(len(env.Layers)))
	for i, raw := range env.Layers {
		if err := t.CheckCancellationOrPause(); err != nil {
			return err
		}
		var l Layer
		if err := c.decodeLayer(raw, &l); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		doc.Layers[i] = l
		t.Inc()
	}
	return nil
}

func (c codec[L]) encode(_ context.Context, doc *Document, t *progress.Tracker) ([]byte, error) {
	env := envelope[L]{
		Version:    FormatVersion,
		Properties: doc.Properties,
		Thumbnails: doc.Thumbnails,
		GCode:      doc.GCode,
		Layers:     make([]L, len(doc.Layers)),
	}
	t.Reset("Encoded layers", uint64(len(doc.Layers)))
	for i, l := range doc.Layers {
		if err := t.CheckCancellationOrPause(); err != nil {
			return nil, err
		}
		raw, err := c.encodeLayer(l)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		env.Layers[i] = raw
		t.Inc()
	}
	return c.marshal(env)
}

var yamlCodec = codec[yaml.Node]{
	unmarshal:   yaml.Unmarshal,
	marshal:     marshalYAML,
	decodeLayer: func(n yaml.Node, l *Layer) error { return n.Decode(l) },
	encodeLayer: func(l Layer) (yaml.Node, error) {
		var n yaml.Node
		err := n.Encode(l)
		n.Style = yaml.FlowStyle
		return n, err
	},
}

var jsonCodec = codec[json.RawMessage]{
	unmarshal: json.Unmarshal,
	marshal: func(v any) ([]byte, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	},
	decodeLayer: func(raw json.RawMessage, l *Layer) error { return json.Unmarshal(raw, l) },
	encodeLayer: func(l Layer) (json.RawMessage, error) { return json.Marshal(l) },
}

var formats = []*Format{
	{
		Name:        "yaml",
		Description: "Layer document (YAML)",
		Extensions:  []string{".layers.yaml", ".layers.yml", ".yaml", ".yml"},
		decode:      yamlCodec.decode,
		encode:      yamlCodec.encode,
	},
	{
		Name:        "json",
		Description: "Layer document (JSON)",
		Extensions:  []string{".layers.json", ".json"},
		decode:      jsonCodec.decode,
		encode:      jsonCodec.encode,
	},
}

// Formats returns the registered formats.
func Formats() []*Format {
	return formats
}

// FindFormat returns the format whose extension matches path, or nil.
func FindFormat(path string) *Format {
	lower := strings.ToLower(path)
	for _, f := range formats {
		for _, ext := range f.Extensions {
			if strings.HasSuffix(lower, ext) {
				return f
			}
		}
	}
	return nil
}

// AllExtensions returns every known extension, longest first per format.
func AllExtensions() []string {
	var exts []string
	for _, f := range formats {
		exts = append(exts, f.Extensions...)
	}
	return exts
}
