package document

import (
	"fmt"
	"strings"
)

// BuildGCode renders a motion program from the layer table: move to the
// layer, expose, lift and retract. Speeds are mm/min, exposure is seconds.
func BuildGCode(d *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, ";MACHINE:%s\n", d.Properties.MachineName)
	fmt.Fprintf(&b, ";LAYER_COUNT:%d\n", d.LayerCount())
	b.WriteString("G21 ;mm\nG90 ;absolute\nM17 ;enable motors\nG28 Z0\n")
	for i, l := range d.Layers {
		fmt.Fprintf(&b, ";LAYER_START:%d\n", i)
		fmt.Fprintf(&b, "G1 Z%.3f F%.0f\n", l.PositionZ, l.RetractSpeed)
		fmt.Fprintf(&b, "M106 S%d\n", l.LightPWM)
		fmt.Fprintf(&b, "G4 P%.0f\n", l.ExposureTime*1000)
		b.WriteString("M106 S0\n")
		if l.LiftHeight > 0 {
			fmt.Fprintf(&b, "G1 Z%.3f F%.0f\n", l.PositionZ+l.LiftHeight, l.LiftSpeed)
		}
		fmt.Fprintf(&b, ";LAYER_END\n")
	}
	b.WriteString("M18 ;disable motors\n")
	return b.String()
}

// GCodeOrBuild returns the stored g-code, or a generated program when the
// document carries none. The flag reports which one was returned.
func (d *Document) GCodeOrBuild() (string, bool) {
	if strings.TrimSpace(d.GCode) != "" {
		return d.GCode, false
	}
	return BuildGCode(d), true
}
