package document

import "sort"

// Machine describes a known printer.
type Machine struct {
	Brand         string
	Name          string
	ResolutionX   uint32
	ResolutionY   uint32
	DisplayWidth  float64
	DisplayHeight float64
	MachineZ      float64
}

// FullName is "Brand Name".
func (m Machine) FullName() string {
	return m.Brand + " " + m.Name
}

var machines = []Machine{
	{Brand: "Anycubic", Name: "Photon Mono X", ResolutionX: 3840, ResolutionY: 2400, DisplayWidth: 192, DisplayHeight: 120, MachineZ: 245},
	{Brand: "Anycubic", Name: "Photon Mono 4K", ResolutionX: 3840, ResolutionY: 2400, DisplayWidth: 134.4, DisplayHeight: 84, MachineZ: 165},
	{Brand: "Creality", Name: "HALOT-ONE", ResolutionX: 1620, ResolutionY: 2560, DisplayWidth: 81, DisplayHeight: 128, MachineZ: 160},
	{Brand: "Elegoo", Name: "Mars 3", ResolutionX: 4098, ResolutionY: 2560, DisplayWidth: 143.43, DisplayHeight: 89.6, MachineZ: 175},
	{Brand: "Elegoo", Name: "Saturn 2", ResolutionX: 7680, ResolutionY: 4320, DisplayWidth: 218.88, DisplayHeight: 123.12, MachineZ: 250},
	{Brand: "Phrozen", Name: "Sonic Mini 8K", ResolutionX: 7500, ResolutionY: 3240, DisplayWidth: 165, DisplayHeight: 72, MachineZ: 170},
	{Brand: "Prusa", Name: "SL1S Speed", ResolutionX: 1620, ResolutionY: 2560, DisplayWidth: 77.76, DisplayHeight: 122.88, MachineZ: 150},
}

// Machines returns the catalog sorted by brand then name.
func Machines() []Machine {
	out := append([]Machine(nil), machines...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Brand != out[j].Brand {
			return out[i].Brand < out[j].Brand
		}
		return out[i].Name < out[j].Name
	})
	return out
}
