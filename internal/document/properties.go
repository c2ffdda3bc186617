package document

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Errors returned by the property table.
var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrInvalidValue    = errors.New("invalid property value")
)

// Properties are the document-wide print settings.
type Properties struct {
	MachineName   string  `yaml:"machine_name" json:"machine_name"`
	ResolutionX   uint32  `yaml:"resolution_x" json:"resolution_x"`
	ResolutionY   uint32  `yaml:"resolution_y" json:"resolution_y"`
	DisplayWidth  float64 `yaml:"display_width" json:"display_width"`
	DisplayHeight float64 `yaml:"display_height" json:"display_height"`
	MachineZ      float64 `yaml:"machine_z" json:"machine_z"`

	LayerHeight      float64 `yaml:"layer_height" json:"layer_height"`
	BottomLayerCount uint32  `yaml:"bottom_layer_count" json:"bottom_layer_count"`

	BottomExposureTime float64 `yaml:"bottom_exposure_time" json:"bottom_exposure_time"`
	ExposureTime       float64 `yaml:"exposure_time" json:"exposure_time"`
	BottomLiftHeight   float64 `yaml:"bottom_lift_height" json:"bottom_lift_height"`
	LiftHeight         float64 `yaml:"lift_height" json:"lift_height"`
	LiftSpeed          float64 `yaml:"lift_speed" json:"lift_speed"`
	RetractSpeed       float64 `yaml:"retract_speed" json:"retract_speed"`
	BottomLightPWM     uint8   `yaml:"bottom_light_pwm" json:"bottom_light_pwm"`
	LightPWM           uint8   `yaml:"light_pwm" json:"light_pwm"`

	MaterialName        string  `yaml:"material_name,omitempty" json:"material_name,omitempty"`
	MaterialMilliliters float64 `yaml:"material_milliliters,omitempty" json:"material_milliliters,omitempty"`
}

// CopyPrintParameters copies exposure, lift, retract and PWM settings from
// src. Machine, resolution and layer geometry are left alone.
func (p *Properties) CopyPrintParameters(src Properties) {
	p.BottomExposureTime = src.BottomExposureTime
	p.ExposureTime = src.ExposureTime
	p.BottomLiftHeight = src.BottomLiftHeight
	p.LiftHeight = src.LiftHeight
	p.LiftSpeed = src.LiftSpeed
	p.RetractSpeed = src.RetractSpeed
	p.BottomLightPWM = src.BottomLightPWM
	p.LightPWM = src.LightPWM
}

type property struct {
	get func(*Properties) string
	set func(*Properties, string) error
}

func floatProp(field func(*Properties) *float64) property {
	return property{
		get: func(p *Properties) string { return strconv.FormatFloat(*field(p), 'f', -1, 64) },
		set: func(p *Properties, s string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil || v < 0 {
				return fmt.Errorf("want a non-negative number, got %q", s)
			}
			*field(p) = v
			return nil
		},
	}
}

func uintProp(field func(*Properties) *uint32) property {
	return property{
		get: func(p *Properties) string { return strconv.FormatUint(uint64(*field(p)), 10) },
		set: func(p *Properties, s string) error {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return fmt.Errorf("want an unsigned integer, got %q", s)
			}
			*field(p) = uint32(v)
			return nil
		},
	}
}

func pwmProp(field func(*Properties) *uint8) property {
	return property{
		get: func(p *Properties) string { return strconv.FormatUint(uint64(*field(p)), 10) },
		set: func(p *Properties, s string) error {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
			if err != nil {
				return fmt.Errorf("want 0..255, got %q", s)
			}
			*field(p) = uint8(v)
			return nil
		},
	}
}

func stringProp(field func(*Properties) *string) property {
	return property{
		get: func(p *Properties) string { return *field(p) },
		set: func(p *Properties, s string) error {
			*field(p) = s
			return nil
		},
	}
}

var properties = map[string]property{
	"machine_name":         stringProp(func(p *Properties) *string { return &p.MachineName }),
	"resolution_x":         uintProp(func(p *Properties) *uint32 { return &p.ResolutionX }),
	"resolution_y":         uintProp(func(p *Properties) *uint32 { return &p.ResolutionY }),
	"display_width":        floatProp(func(p *Properties) *float64 { return &p.DisplayWidth }),
	"display_height":       floatProp(func(p *Properties) *float64 { return &p.DisplayHeight }),
	"machine_z":            floatProp(func(p *Properties) *float64 { return &p.MachineZ }),
	"layer_height":         floatProp(func(p *Properties) *float64 { return &p.LayerHeight }),
	"bottom_layer_count":   uintProp(func(p *Properties) *uint32 { return &p.BottomLayerCount }),
	"bottom_exposure_time": floatProp(func(p *Properties) *float64 { return &p.BottomExposureTime }),
	"exposure_time":        floatProp(func(p *Properties) *float64 { return &p.ExposureTime }),
	"bottom_lift_height":   floatProp(func(p *Properties) *float64 { return &p.BottomLiftHeight }),
	"lift_height":          floatProp(func(p *Properties) *float64 { return &p.LiftHeight }),
	"lift_speed":           floatProp(func(p *Properties) *float64 { return &p.LiftSpeed }),
	"retract_speed":        floatProp(func(p *Properties) *float64 { return &p.RetractSpeed }),
	"bottom_light_pwm":     pwmProp(func(p *Properties) *uint8 { return &p.BottomLightPWM }),
	"light_pwm":            pwmProp(func(p *Properties) *uint8 { return &p.LightPWM }),
	"material_name":        stringProp(func(p *Properties) *string { return &p.MaterialName }),
	"material_milliliters": floatProp(func(p *Properties) *float64 { return &p.MaterialMilliliters }),
}

// PropertyNames lists every addressable property, sorted.
func PropertyNames() []string {
	names := make([]string, 0, len(properties))
	for n := range properties {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PropertyValue is one name/value row.
type PropertyValue struct {
	Name  string
	Value string
}

// Property returns the formatted value of a named property.
func (d *Document) Property(name string) (string, error) {
	p, ok := properties[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return p.get(&d.Properties), nil
}

// SetProperty parses value and assigns it. The document is unchanged on error.
func (d *Document) SetProperty(name, value string) error {
	p, ok := properties[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	next := d.Properties
	if err := p.set(&next, value); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
	}
	d.Properties = next
	return nil
}

// CheckProperty reports whether name=value would be accepted, without
// touching the document.
func CheckProperty(name, value string) error {
	p, ok := properties[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	var scratch Properties
	if err := p.set(&scratch, value); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
	}
	return nil
}

// PropertyList returns every property with its value, sorted by name, plus
// the derived layer and thumbnail counts.
func (d *Document) PropertyList() []PropertyValue {
	names := PropertyNames()
	out := make([]PropertyValue, 0, len(names)+2)
	for _, n := range names {
		out = append(out, PropertyValue{Name: n, Value: properties[n].get(&d.Properties)})
	}
	out = append(out,
		PropertyValue{Name: "layer_count", Value: strconv.FormatUint(uint64(d.LayerCount()), 10)},
		PropertyValue{Name: "thumbnail_count", Value: strconv.Itoa(len(d.Thumbnails))},
	)
	return out
}
