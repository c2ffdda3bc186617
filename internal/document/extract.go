package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"layerkit/internal/progress"
	"layerkit/internal/util"
)

// Extract unpacks the document into dir: properties.yaml, layers.yaml, one
// image file per thumbnail and run.gcode when g-code is embedded. Each file
// is one progress item.
func Extract(doc *Document, dir string, t *progress.Tracker) ([]string, error) {
	t = orNew(t)
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	type entry struct {
		name string
		data func() ([]byte, error)
	}
	entries := []entry{
		{name: "properties.yaml", data: func() ([]byte, error) { return marshalYAML(doc.Properties) }},
		{name: "layers.yaml", data: func() ([]byte, error) { return marshalYAML(doc.Layers) }},
	}
	for i, th := range doc.Thumbnails {
		th := th
		entries = append(entries, entry{
			name: fmt.Sprintf("thumbnail%d%s", i, th.Ext()),
			data: th.Bytes,
		})
	}
	if doc.GCode != "" {
		entries = append(entries, entry{name: "run.gcode", data: func() ([]byte, error) { return []byte(doc.GCode), nil }})
	}

	t.Reset("Extracted files", uint64(len(entries)))
	written := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := t.CheckCancellationOrPause(); err != nil {
			return written, err
		}
		data, err := e.data()
		if err != nil {
			return written, fmt.Errorf("%s: %w", e.name, err)
		}
		path := filepath.Join(dir, e.name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", e.name, err)
		}
		written = append(written, path)
		t.Inc()
	}
	return written, nil
}

func marshalYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
